package model

import (
	"time"

	"gorm.io/gorm"
)

// StaffAuditLog is the audit trail for staff mutations that move money or
// seats: manual settlement, payroll edits, group changes.
type StaffAuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Action      string         `gorm:"type:varchar(100);not null" json:"action"` // e.g., "invoice_mark_paid", "salary_upsert"
	Resource    string         `gorm:"type:varchar(100)" json:"resource"`        // e.g., "invoices", "groups"
	ResourceID  uint           `json:"resource_id"`
	RequestBody string         `gorm:"type:jsonb" json:"request_body"`
	IPAddress   string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent   string         `gorm:"type:text" json:"user_agent"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for StaffAuditLog
func (StaffAuditLog) TableName() string {
	return "staff_audit_logs"
}
