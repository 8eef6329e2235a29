package group

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/utils/response"
	"github.com/bimuz/bimuz-api/utils/validation"
)

// GroupHandler handles group catalog management
type GroupHandler struct {
	groups    *services.GroupService
	validator *validation.Validator
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groups *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groups:    groups,
		validator: validation.NewValidator(),
	}
}

// List returns groups matching the query filters
func (h *GroupHandler) List(c *fiber.Ctx) error {
	filter := services.GroupFilter{
		Speciality: c.Query("speciality"),
		Schedule:   c.Query("schedule"),
		ActiveOnly: c.QueryBool("active_only"),
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", 20),
	}
	if mentorID := c.QueryInt("mentor_id"); mentorID > 0 {
		id := uint(mentorID)
		filter.MentorID = &id
	}

	groups, total, err := h.groups.List(c.Context(), filter)
	if err != nil {
		return response.InternalServerError(c, "Failed to load groups")
	}
	return response.Paginated(c, groups, response.CalculatePagination(filter.Page, filter.PageSize, total))
}

// Get returns one group with its mentor and students
func (h *GroupHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid group id")
	}

	group, err := h.groups.Get(c.Context(), uint(id))
	if err != nil {
		return groupError(c, err)
	}
	return response.Success(c, group)
}

// Create adds a group to the catalog. Staff only (enforced in router).
func (h *GroupHandler) Create(c *fiber.Ctx) error {
	var req services.CreateGroupInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	group, err := h.groups.Create(c.Context(), req)
	if err != nil {
		return groupError(c, err)
	}
	return response.Created(c, group)
}

// Update edits a group. Price changes ripple into open invoices.
func (h *GroupHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid group id")
	}

	var req services.UpdateGroupInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	group, err := h.groups.Update(c.Context(), uint(id), req)
	if err != nil {
		return groupError(c, err)
	}
	return response.Success(c, group)
}

// groupError maps group service errors onto the response envelope
func groupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		return response.NotFound(c, "Group not found")
	case errors.Is(err, services.ErrMentorNotFound):
		return response.NotFound(c, "Mentor not found")
	case errors.Is(err, services.ErrMentorRoleRequired):
		return response.Error(c, fiber.StatusUnprocessableEntity,
			"Assigned employee must have the mentor role", "MENTOR_ROLE_REQUIRED")
	default:
		return response.InternalServerError(c, "Group operation failed")
	}
}
