package model

import (
	"time"

	"gorm.io/gorm"
)

// Student lead sources.
const (
	SourceInstagram = "instagram"
	SourceFacebook  = "facebook"
	SourceTelegram  = "telegram"
	SourceReferral  = "referral"
	SourceOther     = "other"
)

// Student is the lead/enrollee profile. GroupID is the booking: a student
// belongs to zero or one group at any instant.
type Student struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    *uint          `gorm:"uniqueIndex" json:"user_id,omitempty"`
	FullName  string         `gorm:"not null" json:"full_name"`
	Phone     string         `gorm:"type:varchar(20);index" json:"phone"`
	Source    string         `gorm:"type:varchar(20)" json:"source"`
	GroupID   *uint          `gorm:"index" json:"group_id,omitempty"`

	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
}

// TableName specifies the table name for Student
func (Student) TableName() string {
	return "students"
}

// IsBooked reports whether the student currently holds a seat in a group.
func (s *Student) IsBooked() bool {
	return s.GroupID != nil
}
