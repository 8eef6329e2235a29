package report

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/utils/response"
	"github.com/bimuz/bimuz-api/utils/validation"
)

// monthLayout is the YYYY-MM month key used across the settlement surface.
const monthLayout = "2006-01"

// ReportHandler handles monthly settlement reports and payroll mutations
type ReportHandler struct {
	settlements *services.SettlementService
	validator   *validation.Validator
}

// NewReportHandler creates a new report handler
func NewReportHandler(settlements *services.SettlementService) *ReportHandler {
	return &ReportHandler{
		settlements: settlements,
		validator:   validation.NewValidator(),
	}
}

// parseMonth validates a "YYYY-MM" month key.
func parseMonth(raw string) (year int, month int, err error) {
	t, err := time.Parse(monthLayout, raw)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), int(t.Month()), nil
}

// Monthly returns the settlement report for one month
func (h *ReportHandler) Monthly(c *fiber.Ctx) error {
	raw := c.Query("month")
	if raw == "" {
		raw = time.Now().UTC().Format(monthLayout)
	}
	year, month, err := parseMonth(raw)
	if err != nil {
		return response.BadRequest(c, "month must be in YYYY-MM format")
	}

	report, err := h.settlements.MonthlyReport(c.Context(), year, month)
	if err != nil {
		return response.InternalServerError(c, "Failed to build monthly report")
	}
	return response.Success(c, report)
}

// SalaryRequest represents an employee salary upsert
type SalaryRequest struct {
	EmployeeID uint    `json:"employee_id" validate:"required"`
	Month      string  `json:"month" validate:"required,len=7"`
	Amount     float64 `json:"amount" validate:"required,gte=0"`
	Notes      string  `json:"notes,omitempty"`
}

// SetSalary upserts the salary row keyed by (employee, month)
func (h *ReportHandler) SetSalary(c *fiber.Ctx) error {
	var req SalaryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if _, _, err := parseMonth(req.Month); err != nil {
		return response.BadRequest(c, "month must be in YYYY-MM format")
	}

	salary, err := h.settlements.SetEmployeeSalary(c.Context(), req.EmployeeID, req.Month,
		decimal.NewFromFloat(req.Amount), req.Notes)
	if err != nil {
		return reportError(c, err)
	}
	return response.Success(c, salary)
}

// MarkSalaryPaidRequest represents a salary paid-flag flip
type MarkSalaryPaidRequest struct {
	EmployeeID uint   `json:"employee_id" validate:"required"`
	Month      string `json:"month" validate:"required,len=7"`
	IsPaid     bool   `json:"is_paid"`
}

// MarkSalaryPaid flips the paid flag on a salary row
func (h *ReportHandler) MarkSalaryPaid(c *fiber.Ctx) error {
	var req MarkSalaryPaidRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	salary, err := h.settlements.MarkSalaryPaid(c.Context(), req.EmployeeID, req.Month, req.IsPaid)
	if err != nil {
		return reportError(c, err)
	}
	return response.Success(c, salary)
}

// MarkMentorPaidRequest represents a mentor payout upsert + paid flip
type MarkMentorPaidRequest struct {
	MentorID uint    `json:"mentor_id" validate:"required"`
	Month    string  `json:"month" validate:"required,len=7"`
	Amount   float64 `json:"amount" validate:"required,gte=0"`
	IsPaid   bool    `json:"is_paid"`
}

// MarkMentorPaid upserts the mentor payout row and flips its paid flag
func (h *ReportHandler) MarkMentorPaid(c *fiber.Ctx) error {
	var req MarkMentorPaidRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if _, _, err := parseMonth(req.Month); err != nil {
		return response.BadRequest(c, "month must be in YYYY-MM format")
	}

	payment, err := h.settlements.MarkMentorPaymentPaid(c.Context(), req.MentorID, req.Month,
		decimal.NewFromFloat(req.Amount), req.IsPaid)
	if err != nil {
		return reportError(c, err)
	}
	return response.Success(c, payment)
}

// reportError maps payroll errors onto the response envelope
func reportError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrEmployeeNotFound):
		return response.NotFound(c, "Employee not found")
	case errors.Is(err, services.ErrMentorNotFound):
		return response.NotFound(c, "Mentor not found")
	case errors.Is(err, services.ErrSalaryNotFound):
		return response.NotFound(c, "No salary record for this employee and month")
	case errors.Is(err, services.ErrForbidden):
		return response.Forbidden(c, "")
	default:
		return response.InternalServerError(c, "Report operation failed")
	}
}
