package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmployeeSalary is the fixed monthly salary for a non-mentor staff member.
// Month is stored as "YYYY-MM"; one row per (employee, month).
type EmployeeSalary struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	EmployeeID  uint            `gorm:"not null;uniqueIndex:idx_salary_employee_month" json:"employee_id"`
	Month       string          `gorm:"type:varchar(7);not null;uniqueIndex:idx_salary_employee_month;index" json:"month"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsPaid      bool            `gorm:"default:false" json:"is_paid"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`

	Employee Employee `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"employee,omitempty"`
}

// TableName specifies the table name for EmployeeSalary
func (EmployeeSalary) TableName() string {
	return "employee_salaries"
}

// MentorPayment is the computed (or overridden) monthly payout for a mentor.
// One row per (mentor, month).
type MentorPayment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	MentorID    uint            `gorm:"not null;uniqueIndex:idx_mentor_payment_month" json:"mentor_id"`
	Month       string          `gorm:"type:varchar(7);not null;uniqueIndex:idx_mentor_payment_month;index" json:"month"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsPaid      bool            `gorm:"default:false" json:"is_paid"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`

	Mentor Employee `gorm:"foreignKey:MentorID;constraint:OnDelete:CASCADE" json:"mentor,omitempty"`
}

// TableName specifies the table name for MentorPayment
func (MentorPayment) TableName() string {
	return "mentor_payments"
}
