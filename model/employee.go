package model

import (
	"time"

	"gorm.io/gorm"
)

// Employee is the staff profile attached to a user account. The Role column
// is duplicated from User so payroll queries never need a join on users.
type Employee struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	FullName  string         `gorm:"not null" json:"full_name"`
	Role      string         `gorm:"type:varchar(20);not null;index" json:"role"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for Employee
func (Employee) TableName() string {
	return "employees"
}

// IsMentor reports whether the employee may be assigned as a group mentor.
func (e *Employee) IsMentor() bool {
	return e.Role == RoleMentor
}
