package invoice

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/utils/middleware"
	"github.com/bimuz/bimuz-api/utils/response"
)

// InvoiceHandler handles invoice browsing for staff and students
type InvoiceHandler struct {
	invoices *services.InvoiceService
	db       *gorm.DB
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices *services.InvoiceService, db *gorm.DB) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, db: db}
}

// List returns invoices, newest first. Mentors see only invoices of groups
// they teach; students see only their own.
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}

	filter := services.InvoiceFilter{
		Status: model.InvoiceStatus(c.Query("status")),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if studentID := c.QueryInt("student_id"); studentID > 0 {
		filter.StudentID = uint(studentID)
	}

	role, _ := middleware.GetUserRole(c)
	switch role {
	case model.RoleStudent:
		studentID, ok := middleware.GetStudentID(c)
		if !ok {
			return response.Forbidden(c, "")
		}
		filter.StudentID = studentID
	case model.RoleMentor:
		mentorID, err := h.mentorEmployeeID(c)
		if err != nil {
			return response.Forbidden(c, "No mentor profile for this account")
		}
		filter.MentorID = mentorID
	}

	invoices, total, err := h.invoices.List(c.Context(), filter)
	if err != nil {
		return response.InternalServerError(c, "Failed to load invoices")
	}
	return response.Paginated(c, invoices, response.CalculatePagination(page, limit, total))
}

// Get returns one invoice. Students may only read their own.
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid invoice id")
	}

	invoice, err := h.invoices.Get(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			return response.NotFound(c, "Invoice not found")
		}
		return response.InternalServerError(c, "Failed to load invoice")
	}

	if role, _ := middleware.GetUserRole(c); role == model.RoleStudent {
		studentID, ok := middleware.GetStudentID(c)
		if !ok || invoice.StudentID != studentID {
			return response.Forbidden(c, "")
		}
	}
	return response.Success(c, invoice)
}

// mentorEmployeeID resolves the employee profile of the authenticated mentor.
func (h *InvoiceHandler) mentorEmployeeID(c *fiber.Ctx) (uint, error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return 0, errors.New("not authenticated")
	}
	var employee model.Employee
	if err := h.db.Where("user_id = ?", userID).First(&employee).Error; err != nil {
		return 0, err
	}
	return employee.ID, nil
}
