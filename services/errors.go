package services

import (
	"errors"
	"fmt"

	"github.com/bimuz/bimuz-api/model"
)

// Sentinel errors for business-rule rejections. Handlers map these onto
// machine-checkable reason codes; none of them should ever leak a raw
// storage-layer error to the caller.
var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrMentorNotFound   = errors.New("mentor not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrSalaryNotFound   = errors.New("salary record not found")

	ErrMentorRoleRequired = errors.New("assigned employee must have the mentor role")

	ErrAlreadyBooked   = errors.New("student is already booked into a group")
	ErrNoActiveBooking = errors.New("student has no active booking")
	ErrSameGroup       = errors.New("new group is the same as the current group")
	ErrAlreadyPaid     = errors.New("invoice is already paid")
	ErrInvoiceClosed   = errors.New("invoice is cancelled or expired")

	ErrForbidden = errors.New("actor is not allowed to perform this operation")

	ErrSignatureInvalid   = errors.New("gateway signature verification failed")
	ErrAmountMismatch     = errors.New("gateway amount does not match invoice amount")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// CapacityError rejects a booking because the group is full. It carries
// alternative group suggestions for the caller to render.
type CapacityError struct {
	GroupID      uint
	Alternatives []model.Group
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("group %d has no available seats", e.GroupID)
}

// WindowError rejects a booking because the late-join window has closed.
type WindowError struct {
	GroupID        uint
	DaysSinceStart int
	Alternatives   []model.Group
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("group %d started %d days ago; the %d-day booking window has closed",
		e.GroupID, e.DaysSinceStart, model.LateJoinWindowDays)
}

// TransitionError rejects an illegal invoice state-machine step.
type TransitionError struct {
	InvoiceID uint
	From      model.InvoiceStatus
	To        model.InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invoice %d: illegal transition %s -> %s", e.InvoiceID, e.From, e.To)
}

// InvariantError flags a state that correct code can never produce. It is
// logged loudly and aborts the surrounding transaction.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Detail
}
