package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Course specialities offered by the center.
const (
	SpecialityRevitArchitecture = "revit_architecture"
	SpecialityRevitStructure    = "revit_structure"
	SpecialityTeklaStructure    = "tekla_structure"
)

// Weekday schedules a group can run on.
const (
	ScheduleMonWedFri = "mon_wed_fri"
	ScheduleTueThuSat = "tue_thu_sat"
)

// LateJoinWindowDays is the grace period after a group's start date during
// which new bookings are still accepted.
const LateJoinWindowDays = 10

// Group is a scheduled course offering with a fixed number of seats.
type Group struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
	Speciality   string          `gorm:"type:varchar(50);not null;index" json:"speciality"`
	Schedule     string          `gorm:"type:varchar(20);not null" json:"schedule"`
	LessonTime   string          `gorm:"type:varchar(5);not null" json:"lesson_time"` // "14:00"
	StartingDate *time.Time      `gorm:"type:date" json:"starting_date,omitempty"`
	IsActive     bool            `gorm:"not null;default:false" json:"is_active"` // one-way flip to true once starting_date is reached (or unset)
	Seats        int             `gorm:"not null" json:"seats"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	TotalLessons *int            `json:"total_lessons,omitempty"`
	MentorID     *uint           `gorm:"index" json:"mentor_id,omitempty"`

	Mentor   *Employee `gorm:"foreignKey:MentorID;constraint:OnDelete:SET NULL" json:"mentor,omitempty"`
	Students []Student `gorm:"foreignKey:GroupID" json:"students,omitempty"`
}

// TableName specifies the table name for Group
func (Group) TableName() string {
	return "groups"
}

// lessonWeekdays maps a schedule to the weekdays lessons run on.
func (g *Group) lessonWeekdays() map[time.Weekday]bool {
	switch g.Schedule {
	case ScheduleMonWedFri:
		return map[time.Weekday]bool{time.Monday: true, time.Wednesday: true, time.Friday: true}
	case ScheduleTueThuSat:
		return map[time.Weekday]bool{time.Tuesday: true, time.Thursday: true, time.Saturday: true}
	default:
		return nil
	}
}

// IsPlanned reports whether the group has not started yet as of today.
func (g *Group) IsPlanned(today time.Time) bool {
	if g.StartingDate == nil {
		return false
	}
	return dateOf(*g.StartingDate).After(dateOf(today))
}

// ShouldBeActive recomputes the cached is_active flag: a group with no start
// date, or a start date that is today or past, is active. The flip is
// one-way; callers must never clear IsActive once set.
func (g *Group) ShouldBeActive(today time.Time) bool {
	return g.StartingDate == nil || !g.IsPlanned(today)
}

// DaysSinceStart returns the number of calendar days since the group
// started, or -1 if the group has no start date or has not started.
func (g *Group) DaysSinceStart(today time.Time) int {
	if g.StartingDate == nil {
		return -1
	}
	start := dateOf(*g.StartingDate)
	day := dateOf(today)
	if start.After(day) {
		return -1
	}
	return int(day.Sub(start).Hours() / 24)
}

// CanAcceptBookings applies the late-join window rule: a group with no start
// date or a future start date is open; a started group stays open while fewer
// than LateJoinWindowDays calendar days have passed.
func (g *Group) CanAcceptBookings(today time.Time) bool {
	if g.StartingDate == nil {
		return true
	}
	if g.IsPlanned(today) {
		return true
	}
	return g.DaysSinceStart(today) < LateJoinWindowDays
}

// FinishDate walks forward from the starting date counting only scheduled
// lesson weekdays until TotalLessons lessons are reached. The starting date
// itself counts as lesson one. Returns nil when the walk is undefined.
func (g *Group) FinishDate() *time.Time {
	if g.StartingDate == nil || g.TotalLessons == nil || *g.TotalLessons < 1 {
		return nil
	}
	weekdays := g.lessonWeekdays()
	if weekdays == nil {
		return nil
	}
	current := dateOf(*g.StartingDate)
	counted := 1
	for counted < *g.TotalLessons {
		current = current.AddDate(0, 0, 1)
		if weekdays[current.Weekday()] {
			counted++
		}
	}
	return &current
}

// AvailableSeats returns the free seat count given the live enrollment
// count; never negative.
func (g *Group) AvailableSeats(enrolled int) int {
	free := g.Seats - enrolled
	if free < 0 {
		return 0
	}
	return free
}

// dateOf truncates a timestamp to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
