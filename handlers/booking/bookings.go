package booking

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/utils/middleware"
	"github.com/bimuz/bimuz-api/utils/response"
	"github.com/bimuz/bimuz-api/utils/validation"
)

// BookingHandler handles seat allocation requests
type BookingHandler struct {
	bookings  *services.BookingService
	validator *validation.Validator
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookings:  bookings,
		validator: validation.NewValidator(),
	}
}

// BookRequest represents a booking request
type BookRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
	GroupID   uint `json:"group_id" validate:"required"`
}

// CancelRequest represents a booking cancellation request
type CancelRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
}

// ChangeGroupRequest represents a group change request
type ChangeGroupRequest struct {
	StudentID  uint `json:"student_id" validate:"required"`
	NewGroupID uint `json:"new_group_id" validate:"required"`
}

// ListGroups returns all groups with derived availability state
func (h *BookingHandler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.bookings.ListBookableGroups(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load groups")
	}
	return response.Success(c, groups)
}

// Book reserves a seat for a student. Students may only book for themselves.
func (h *BookingHandler) Book(c *fiber.Ctx) error {
	var req BookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	if actor.Kind == services.ActorStudent && actor.StudentID != req.StudentID {
		return response.Forbidden(c, "Students can only book for themselves")
	}

	result, err := h.bookings.Book(c.Context(), req.StudentID, req.GroupID)
	if err != nil {
		return bookingError(c, err)
	}
	return response.Created(c, result)
}

// Cancel releases a student's booking
func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	var req CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	if actor.Kind == services.ActorStudent && actor.StudentID != req.StudentID {
		return response.Forbidden(c, "Students can only cancel their own booking")
	}

	result, err := h.bookings.Cancel(c.Context(), req.StudentID, actor)
	if err != nil {
		return bookingError(c, err)
	}
	return response.Success(c, result)
}

// ChangeGroup moves a student to a different group. Staff only.
func (h *BookingHandler) ChangeGroup(c *fiber.Ctx) error {
	var req ChangeGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	result, err := h.bookings.ChangeGroup(c.Context(), req.StudentID, req.NewGroupID, actor)
	if err != nil {
		return bookingError(c, err)
	}
	return response.Success(c, result)
}

// alternativeView is the trimmed group representation attached to booking
// rejections.
type alternativeView struct {
	ID           uint        `json:"id"`
	Speciality   string      `json:"speciality"`
	Schedule     string      `json:"schedule"`
	LessonTime   string      `json:"lesson_time"`
	StartingDate interface{} `json:"starting_date,omitempty"`
	Price        string      `json:"price"`
	MentorName   string      `json:"mentor_name,omitempty"`
}

func alternativeViews(groups []model.Group) []alternativeView {
	out := make([]alternativeView, 0, len(groups))
	for _, g := range groups {
		v := alternativeView{
			ID:         g.ID,
			Speciality: g.Speciality,
			Schedule:   g.Schedule,
			LessonTime: g.LessonTime,
			Price:      g.Price.StringFixed(2),
		}
		if g.StartingDate != nil {
			v.StartingDate = g.StartingDate
		}
		if g.Mentor != nil {
			v.MentorName = g.Mentor.FullName
		}
		out = append(out, v)
	}
	return out
}

// bookingError maps booking engine errors onto the response envelope
func bookingError(c *fiber.Ctx, err error) error {
	var capErr *services.CapacityError
	var winErr *services.WindowError

	switch {
	case errors.As(err, &capErr):
		return response.ErrorWithAlternatives(c, fiber.StatusConflict,
			"Group is full", "CAPACITY_EXCEEDED", alternativeViews(capErr.Alternatives))
	case errors.As(err, &winErr):
		return response.ErrorWithAlternatives(c, fiber.StatusConflict,
			"Bookings close 10 days after the group starts", "WINDOW_EXPIRED",
			alternativeViews(winErr.Alternatives))
	case errors.Is(err, services.ErrAlreadyBooked):
		return response.Error(c, fiber.StatusConflict, "Student is already booked into a group", "ALREADY_BOOKED")
	case errors.Is(err, services.ErrNoActiveBooking):
		return response.Conflict(c, "Student has no active booking")
	case errors.Is(err, services.ErrSameGroup):
		return response.BadRequest(c, "Student is already in this group")
	case errors.Is(err, services.ErrStudentNotFound):
		return response.NotFound(c, "Student not found")
	case errors.Is(err, services.ErrGroupNotFound):
		return response.NotFound(c, "Group not found")
	case errors.Is(err, services.ErrForbidden):
		return response.Forbidden(c, "")
	default:
		return response.InternalServerError(c, "Booking operation failed")
	}
}
