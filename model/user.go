package model

import (
	"time"

	"gorm.io/gorm"
)

// Role values for employee accounts. Student accounts use RoleStudent.
const (
	RoleStudent       = "student"
	RoleDeveloper     = "developer"
	RoleDirector      = "director"
	RoleAdministrator = "administrator"
	RoleSalesAgent    = "sales_agent"
	RoleMentor        = "mentor"
	RoleAccountant    = "accountant"
	RoleAssistant     = "assistant"
)

// EmployeeRoles lists every role an Employee record may carry.
var EmployeeRoles = []string{
	RoleDeveloper,
	RoleDirector,
	RoleAdministrator,
	RoleSalesAgent,
	RoleMentor,
	RoleAccountant,
	RoleAssistant,
}

// User represents a login account. Every student and employee has exactly
// one user row; the profile tables hang off it.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	FullName     string         `gorm:"not null" json:"full_name"`
	Phone        string         `gorm:"type:varchar(20);index" json:"phone"`
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsEmployee reports whether the account belongs to a staff member.
func (u *User) IsEmployee() bool {
	return u.Role != RoleStudent
}
