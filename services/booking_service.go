package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bimuz/bimuz-api/model"
)

// maxAlternativeGroups caps the number of alternative suggestions attached
// to capacity/window rejections.
const maxAlternativeGroups = 5

// Notifier receives booking side-effect notifications after the surrounding
// transaction has committed. Implementations must not block.
type Notifier interface {
	BookingConfirmed(student model.Student, group model.Group, invoice *model.Invoice)
	BookingCancelled(student model.Student, group model.Group)
}

// BookingService allocates and deallocates students to groups under
// row-level locking. All seat and uniqueness checks run after the locks are
// held; the invoice side effects run inside the same transaction.
type BookingService struct {
	db       *gorm.DB
	invoices *InvoiceService
	notifier Notifier
	now      func() time.Time
}

// NewBookingService creates a new booking service. notifier may be nil.
func NewBookingService(db *gorm.DB, invoices *InvoiceService, notifier Notifier) *BookingService {
	return &BookingService{
		db:       db,
		invoices: invoices,
		notifier: notifier,
		now:      time.Now,
	}
}

// InstallmentInfo describes one of the two tuition installments.
type InstallmentInfo struct {
	Amount      decimal.Decimal `json:"amount"`
	Percentage  int             `json:"percentage"`
	DueByLesson *int            `json:"due_by_lesson,omitempty"`
	Description string          `json:"description"`
}

// PaymentInfo summarizes the payment plan attached to a fresh booking.
type PaymentInfo struct {
	TotalPrice        decimal.Decimal `json:"total_price"`
	Currency          string          `json:"currency"`
	FirstInstallment  InstallmentInfo `json:"first_installment"`
	SecondInstallment InstallmentInfo `json:"second_installment"`
	TotalLessons      *int            `json:"total_lessons,omitempty"`
	FirstInvoice      *model.Invoice  `json:"first_invoice,omitempty"`
}

// BookingResult is the observable postcondition of a successful Book call.
type BookingResult struct {
	Student     model.Student `json:"student"`
	Group       model.Group   `json:"group"`
	PaymentInfo PaymentInfo   `json:"payment_info"`
}

// Book enrolls a student into a group. Locks are taken student-first, then
// group, so concurrent Book/Cancel/ChangeGroup calls cannot deadlock.
func (s *BookingService) Book(ctx context.Context, studentID, groupID uint) (*BookingResult, error) {
	var result *BookingResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		var group model.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		if student.IsBooked() {
			return ErrAlreadyBooked
		}

		enrolled, err := s.enrollmentCount(tx, group.ID)
		if err != nil {
			return err
		}
		if group.AvailableSeats(enrolled) <= 0 {
			return &CapacityError{
				GroupID:      group.ID,
				Alternatives: s.alternativeGroups(tx, group),
			}
		}

		today := s.now()
		if !group.CanAcceptBookings(today) {
			return &WindowError{
				GroupID:        group.ID,
				DaysSinceStart: group.DaysSinceStart(today),
				Alternatives:   s.alternativeGroups(tx, group),
			}
		}

		if err := tx.Model(&student).Update("group_id", group.ID).Error; err != nil {
			return fmt.Errorf("assign student to group: %w", err)
		}
		student.GroupID = &group.ID

		// The invoice is part of the booking's postcondition, so it is
		// created before this transaction commits.
		invoice, err := s.invoices.CreateFirstInstallmentTx(tx, student, group)
		if err != nil {
			return err
		}

		result = &BookingResult{
			Student:     student,
			Group:       group,
			PaymentInfo: buildPaymentInfo(group, invoice),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.BookingConfirmed(result.Student, result.Group, result.PaymentInfo.FirstInvoice)
	}
	return result, nil
}

// CancelResult reports what a successful Cancel did.
type CancelResult struct {
	Student           model.Student `json:"student"`
	Group             model.Group   `json:"group"`
	CancelledInvoices int64         `json:"cancelled_invoices"`
}

// Cancel removes a student's booking. Students may self-cancel only while
// the group has not started; after that only administrator/mentor-role
// actors may cancel.
func (s *BookingService) Cancel(ctx context.Context, studentID uint, actor Actor) (*CancelResult, error) {
	var result *CancelResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		if !student.IsBooked() {
			return ErrNoActiveBooking
		}

		var group model.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&group, *student.GroupID).Error; err != nil {
			return fmt.Errorf("load booked group: %w", err)
		}

		if !group.IsPlanned(s.now()) && group.StartingDate != nil && !actor.CanCancelStartedBooking() {
			return ErrForbidden
		}

		if err := tx.Model(&student).Update("group_id", nil).Error; err != nil {
			return fmt.Errorf("clear booking: %w", err)
		}
		student.GroupID = nil

		cancelled, err := s.invoices.CancelOpenInvoicesTx(tx, student.ID, group.ID)
		if err != nil {
			return err
		}

		result = &CancelResult{Student: student, Group: group, CancelledInvoices: cancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.BookingCancelled(result.Student, result.Group)
	}
	return result, nil
}

// GroupChangeResult reports the money consequences of moving a student
// between groups. Refunds are advisory: this engine computes amounts but
// never moves money.
type GroupChangeResult struct {
	Student           model.Student   `json:"student"`
	OldGroup          model.Group     `json:"old_group"`
	NewGroup          model.Group     `json:"new_group"`
	OldPrice          decimal.Decimal `json:"old_price"`
	NewPrice          decimal.Decimal `json:"new_price"`
	PriceDifference   decimal.Decimal `json:"price_difference"`
	TotalPaidOldGroup decimal.Decimal `json:"total_paid_old_group"`
	CancelledInvoices int64           `json:"cancelled_invoices"`
	NewInvoice        *model.Invoice  `json:"new_invoice,omitempty"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	RefundRequired    bool            `json:"refund_required"`
}

// groupChangePlan is the pure money outcome of a group change.
type groupChangePlan struct {
	PriceDifference decimal.Decimal
	RefundAmount    decimal.Decimal
	RefundRequired  bool
	CreateInvoice   bool
	InvoiceAmount   decimal.Decimal
}

// planGroupChange decides, from prices and the amount already paid, whether
// the change produces a fresh first-installment invoice, an advisory refund,
// or both-neither. The first installment is always half the new group price.
func planGroupChange(oldPrice, newPrice, totalPaid decimal.Decimal) groupChangePlan {
	plan := groupChangePlan{
		PriceDifference: newPrice.Sub(oldPrice),
		RefundAmount:    decimal.Zero,
	}

	firstInstallment := newPrice.Div(decimal.NewFromInt(2))

	switch {
	case plan.PriceDifference.IsNegative():
		if totalPaid.GreaterThan(newPrice) {
			// Already paid more than the cheaper group costs.
			plan.RefundAmount = totalPaid.Sub(newPrice)
			plan.RefundRequired = true
		} else {
			plan.CreateInvoice = true
			plan.InvoiceAmount = firstInstallment
		}
	default:
		// Same price or more expensive: bill a fresh first installment.
		plan.CreateInvoice = true
		plan.InvoiceAmount = firstInstallment
	}
	return plan
}

// ChangeGroup atomically moves a student into a different group, cancelling
// the old group's open invoices and billing or refunding per the price
// difference. Privileged operation; authorization is checked here so the
// policy lives with the engine.
func (s *BookingService) ChangeGroup(ctx context.Context, studentID, newGroupID uint, actor Actor) (*GroupChangeResult, error) {
	if !actor.CanChangeGroup() {
		return nil, ErrForbidden
	}

	var result *GroupChangeResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student model.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return err
		}

		if !student.IsBooked() {
			return ErrNoActiveBooking
		}

		var newGroup model.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&newGroup, newGroupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		if *student.GroupID == newGroup.ID {
			return ErrSameGroup
		}

		var oldGroup model.Group
		if err := tx.First(&oldGroup, *student.GroupID).Error; err != nil {
			return fmt.Errorf("load current group: %w", err)
		}

		enrolled, err := s.enrollmentCount(tx, newGroup.ID)
		if err != nil {
			return err
		}
		if newGroup.AvailableSeats(enrolled) <= 0 {
			return &CapacityError{
				GroupID:      newGroup.ID,
				Alternatives: s.alternativeGroups(tx, newGroup),
			}
		}

		totalPaid, err := s.invoices.TotalPaidTx(tx, student.ID, oldGroup.ID)
		if err != nil {
			return err
		}

		cancelled, err := s.invoices.CancelOpenInvoicesTx(tx, student.ID, oldGroup.ID)
		if err != nil {
			return err
		}

		if err := tx.Model(&student).Update("group_id", newGroup.ID).Error; err != nil {
			return fmt.Errorf("reassign student: %w", err)
		}
		student.GroupID = &newGroup.ID

		plan := planGroupChange(oldGroup.Price, newGroup.Price, totalPaid)

		var newInvoice *model.Invoice
		if plan.CreateInvoice {
			note := fmt.Sprintf(
				"First installment (50%%) for group change. Old group: %d, new group: %d. Price difference: %s UZS. Total paid for old group: %s UZS.",
				oldGroup.ID, newGroup.ID, plan.PriceDifference.StringFixed(2), totalPaid.StringFixed(2))
			newInvoice, err = s.invoices.CreateInvoiceTx(tx, student.ID, newGroup.ID, plan.InvoiceAmount, note)
			if err != nil {
				return err
			}
		}

		result = &GroupChangeResult{
			Student:           student,
			OldGroup:          oldGroup,
			NewGroup:          newGroup,
			OldPrice:          oldGroup.Price,
			NewPrice:          newGroup.Price,
			PriceDifference:   plan.PriceDifference,
			TotalPaidOldGroup: totalPaid,
			CancelledInvoices: cancelled,
			NewInvoice:        newInvoice,
			RefundAmount:      plan.RefundAmount,
			RefundRequired:    plan.RefundRequired,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BookableGroup is a group plus derived booking state for listings.
type BookableGroup struct {
	model.Group
	AvailableSeats    int        `json:"available_seats"`
	EnrolledCount     int        `json:"enrolled_count"`
	AcceptingBookings bool       `json:"accepting_bookings"`
	DaysSinceStart    *int       `json:"days_since_start,omitempty"`
	FinishDate        *time.Time `json:"finish_date,omitempty"`
	IsPlanned         bool       `json:"is_planned"`
}

// ListBookableGroups returns every group with its derived capacity/window
// state so callers can render availability.
func (s *BookingService) ListBookableGroups(ctx context.Context) ([]BookableGroup, error) {
	var groups []model.Group
	if err := s.db.WithContext(ctx).
		Preload("Students").
		Preload("Mentor").
		Order("created_at DESC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	today := s.now()
	out := make([]BookableGroup, 0, len(groups))
	for _, g := range groups {
		enrolled := len(g.Students)
		bg := BookableGroup{
			Group:             g,
			AvailableSeats:    g.AvailableSeats(enrolled),
			EnrolledCount:     enrolled,
			AcceptingBookings: g.CanAcceptBookings(today),
			FinishDate:        g.FinishDate(),
			IsPlanned:         g.IsPlanned(today),
		}
		if days := g.DaysSinceStart(today); days >= 0 {
			bg.DaysSinceStart = &days
		}
		out = append(out, bg)
	}
	return out, nil
}

// enrollmentCount counts live bookings for a group. Called with the group
// row already locked so the count cannot move under us.
func (s *BookingService) enrollmentCount(tx *gorm.DB, groupID uint) (int, error) {
	var count int64
	if err := tx.Model(&model.Student{}).
		Where("group_id = ?", groupID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count enrollment: %w", err)
	}
	return int(count), nil
}

// alternativeGroups suggests up to maxAlternativeGroups active groups of the
// same speciality that can still accept bookings, ordered soonest start
// first (groups without a start date last), newest-created breaking ties.
func (s *BookingService) alternativeGroups(tx *gorm.DB, original model.Group) []model.Group {
	var candidates []model.Group
	if err := tx.
		Preload("Students").
		Preload("Mentor").
		Where("speciality = ? AND is_active = ? AND id <> ?", original.Speciality, true, original.ID).
		Find(&candidates).Error; err != nil {
		log.Printf("failed to load alternative groups for group %d: %v", original.ID, err)
		return nil
	}

	today := s.now()
	alternatives := make([]model.Group, 0, len(candidates))
	for _, g := range candidates {
		if g.CanAcceptBookings(today) && g.AvailableSeats(len(g.Students)) > 0 {
			alternatives = append(alternatives, g)
		}
	}

	sort.SliceStable(alternatives, func(i, j int) bool {
		a, b := alternatives[i], alternatives[j]
		switch {
		case a.StartingDate == nil && b.StartingDate == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.StartingDate == nil:
			return false
		case b.StartingDate == nil:
			return true
		case !a.StartingDate.Equal(*b.StartingDate):
			return a.StartingDate.Before(*b.StartingDate)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	if len(alternatives) > maxAlternativeGroups {
		alternatives = alternatives[:maxAlternativeGroups]
	}
	return alternatives
}

// buildPaymentInfo assembles the installment plan shown to a student after
// booking. Milestones depend on the group's total lesson count.
func buildPaymentInfo(group model.Group, invoice *model.Invoice) PaymentInfo {
	half := group.Price.Div(decimal.NewFromInt(2))
	second := group.Price.Sub(half)

	info := PaymentInfo{
		TotalPrice:   group.Price,
		Currency:     "UZS",
		TotalLessons: group.TotalLessons,
		FirstInvoice: invoice,
		FirstInstallment: InstallmentInfo{
			Amount:      half,
			Percentage:  50,
			Description: "First payment (50%)",
		},
		SecondInstallment: InstallmentInfo{
			Amount:      second,
			Percentage:  50,
			Description: "Second payment (50%)",
		},
	}

	if group.TotalLessons != nil && *group.TotalLessons > 0 {
		midpoint := *group.TotalLessons / 2
		final := *group.TotalLessons
		info.FirstInstallment.DueByLesson = &midpoint
		info.FirstInstallment.Description = fmt.Sprintf("First payment (50%%) must be paid by lesson %d", midpoint)
		info.SecondInstallment.DueByLesson = &final
		info.SecondInstallment.Description = fmt.Sprintf("Second payment (50%%) must be paid by lesson %d", final)
	}
	return info
}
