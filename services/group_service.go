package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bimuz/bimuz-api/model"
)

// GroupService manages the group catalog: creation, edits that may ripple
// into open invoices, and the activation sweep for started groups.
type GroupService struct {
	db       *gorm.DB
	invoices *InvoiceService
	now      func() time.Time
}

// NewGroupService creates a new group service.
func NewGroupService(db *gorm.DB, invoices *InvoiceService) *GroupService {
	return &GroupService{db: db, invoices: invoices, now: time.Now}
}

// CreateGroupInput carries the fields for a new group.
type CreateGroupInput struct {
	Speciality   string          `json:"speciality" validate:"required,oneof=revit_architecture revit_structure tekla_structure"`
	Schedule     string          `json:"schedule" validate:"required,oneof=mon_wed_fri tue_thu_sat"`
	LessonTime   string          `json:"lesson_time" validate:"required,len=5"`
	StartingDate *time.Time      `json:"starting_date,omitempty"`
	Seats        int             `json:"seats" validate:"required,min=1,max=100"`
	Price        decimal.Decimal `json:"price"`
	TotalLessons *int            `json:"total_lessons,omitempty" validate:"omitempty,min=1"`
	MentorID     *uint           `json:"mentor_id,omitempty"`
}

// UpdateGroupInput carries optional field updates; nil means keep.
type UpdateGroupInput struct {
	Speciality   *string          `json:"speciality,omitempty" validate:"omitempty,oneof=revit_architecture revit_structure tekla_structure"`
	Schedule     *string          `json:"schedule,omitempty" validate:"omitempty,oneof=mon_wed_fri tue_thu_sat"`
	LessonTime   *string          `json:"lesson_time,omitempty" validate:"omitempty,len=5"`
	StartingDate *time.Time       `json:"starting_date,omitempty"`
	Seats        *int             `json:"seats,omitempty" validate:"omitempty,min=1,max=100"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	TotalLessons *int             `json:"total_lessons,omitempty" validate:"omitempty,min=1"`
	MentorID     *uint            `json:"mentor_id,omitempty"`
	ClearMentor  bool             `json:"clear_mentor,omitempty"`
}

// verifyMentorTx checks that the referenced employee exists and carries the
// mentor role.
func verifyMentorTx(tx *gorm.DB, mentorID uint) error {
	var mentor model.Employee
	err := tx.First(&mentor, mentorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMentorNotFound
	}
	if err != nil {
		return err
	}
	if !mentor.IsMentor() {
		return ErrMentorRoleRequired
	}
	return nil
}

// Create inserts a new group. Only employees with the mentor role can be
// assigned as the group's mentor.
func (s *GroupService) Create(ctx context.Context, in CreateGroupInput) (*model.Group, error) {
	group := model.Group{
		Speciality:   in.Speciality,
		Schedule:     in.Schedule,
		LessonTime:   in.LessonTime,
		StartingDate: in.StartingDate,
		Seats:        in.Seats,
		Price:        in.Price,
		TotalLessons: in.TotalLessons,
		MentorID:     in.MentorID,
	}
	group.IsActive = group.ShouldBeActive(s.now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.MentorID != nil {
			if err := verifyMentorTx(tx, *in.MentorID); err != nil {
				return err
			}
		}
		return tx.Create(&group).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// Update edits a group. A price change recalculates every open invoice of the
// group in the same transaction so no booking is charged against a stale
// price.
func (s *GroupService) Update(ctx context.Context, groupID uint, in UpdateGroupInput) (*model.Group, error) {
	var group model.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, groupID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		if err != nil {
			return err
		}

		if in.Speciality != nil {
			group.Speciality = *in.Speciality
		}
		if in.Schedule != nil {
			group.Schedule = *in.Schedule
		}
		if in.LessonTime != nil {
			group.LessonTime = *in.LessonTime
		}
		if in.StartingDate != nil {
			group.StartingDate = in.StartingDate
		}
		if in.Seats != nil {
			group.Seats = *in.Seats
		}
		if in.TotalLessons != nil {
			group.TotalLessons = in.TotalLessons
		}
		switch {
		case in.ClearMentor:
			group.MentorID = nil
		case in.MentorID != nil:
			if err := verifyMentorTx(tx, *in.MentorID); err != nil {
				return err
			}
			group.MentorID = in.MentorID
		}

		priceChanged := false
		if in.Price != nil && !in.Price.Equal(group.Price) {
			group.Price = *in.Price
			priceChanged = true
		}

		// is_active is recomputed at write time; the flip is one-way and the
		// cron sweep covers groups nobody touches.
		if !group.IsActive && group.ShouldBeActive(s.now()) {
			group.IsActive = true
		}

		if err := tx.Save(&group).Error; err != nil {
			return err
		}

		if priceChanged {
			updated, err := s.invoices.RecalculateOpenInvoicesTx(tx, group.ID, group.Price)
			if err != nil {
				return err
			}
			if updated > 0 {
				log.Printf("group %d price change: recalculated %d open invoice(s)", group.ID, updated)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GroupFilter narrows the group listing.
type GroupFilter struct {
	Speciality string
	Schedule   string
	MentorID   *uint
	ActiveOnly bool
	Page       int
	PageSize   int
}

// List returns groups matching the filter, soonest starting date first with
// unscheduled groups last.
func (s *GroupService) List(ctx context.Context, f GroupFilter) ([]model.Group, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Group{})
	if f.Speciality != "" {
		q = q.Where("speciality = ?", f.Speciality)
	}
	if f.Schedule != "" {
		q = q.Where("schedule = ?", f.Schedule)
	}
	if f.MentorID != nil {
		q = q.Where("mentor_id = ?", *f.MentorID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var groups []model.Group
	err := q.Preload("Mentor").
		Order("starting_date ASC NULLS LAST, created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&groups).Error
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// Get loads one group with its mentor and enrolled students.
func (s *GroupService) Get(ctx context.Context, groupID uint) (*model.Group, error) {
	var group model.Group
	err := s.db.WithContext(ctx).Preload("Mentor").Preload("Students").First(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ActivateStartedGroups flips is_active to true for every inactive group
// whose starting date has been reached (or was never set). The flip is
// one-way. Returns the number of groups updated; the cron sweep calls this
// daily.
func (s *GroupService) ActivateStartedGroups(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Group{}).
		Where("is_active = ? AND (starting_date IS NULL OR starting_date <= ?)", false, s.now().UTC()).
		Update("is_active", true)
	return res.RowsAffected, res.Error
}
