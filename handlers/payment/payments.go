package payment

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bimuz/bimuz-api/services"
	"github.com/bimuz/bimuz-api/utils/middleware"
	"github.com/bimuz/bimuz-api/utils/response"
	"github.com/bimuz/bimuz-api/utils/validation"
)

// gatewayTimeLayout is the timestamp format the gateway uses in callbacks.
const gatewayTimeLayout = "2006-01-02 15:04:05"

// PaymentHandler handles payment links, gateway notifications, and manual
// settlement
type PaymentHandler struct {
	invoices  *services.InvoiceService
	validator *validation.Validator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(invoices *services.InvoiceService) *PaymentHandler {
	return &PaymentHandler{
		invoices:  invoices,
		validator: validation.NewValidator(),
	}
}

// CreatePaymentRequest represents a payment link request
type CreatePaymentRequest struct {
	InvoiceID uint   `json:"invoice_id" validate:"required"`
	Lang      string `json:"lang,omitempty" validate:"omitempty,oneof=uz ru en"`
	ReturnURL string `json:"return_url,omitempty" validate:"omitempty,url"`
	SMSPhone  string `json:"sms_phone,omitempty" validate:"omitempty,uzphone"`
}

// CreateLink opens a gateway checkout session for an invoice
func (h *PaymentHandler) CreateLink(c *fiber.Ctx) error {
	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.invoices.CreatePaymentLink(c.Context(), req.InvoiceID, req.Lang, req.ReturnURL, req.SMSPhone)
	if err != nil {
		return paymentError(c, err)
	}
	return response.Success(c, result)
}

// callbackPayload is the gateway's payment-confirmation body
type callbackPayload struct {
	StoreID       string `json:"store_id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceUUID   string `json:"invoice_uuid"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"` // tiyins
	Sign          string `json:"sign"`
	PaymentTime   string `json:"payment_time,omitempty"`
	ReceiptURL    string `json:"receipt_url,omitempty"`
	PaymentMethod string `json:"ps,omitempty"`
	CardPAN       string `json:"card_pan,omitempty"`
}

// Callback receives payment confirmations from the gateway. The gateway
// retries on any non-2xx, so this endpoint acknowledges with 200 even when
// the payload is rejected; rejections are logged and not applied.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var payload callbackPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("gateway callback with unparseable body: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	cb := services.GatewayCallback{
		UUID:          payload.InvoiceUUID,
		InvoiceID:     payload.InvoiceID,
		Status:        payload.Status,
		AmountTiyin:   payload.Amount,
		Sign:          payload.Sign,
		ReceiptURL:    payload.ReceiptURL,
		PaymentMethod: payload.PaymentMethod,
		CardPAN:       payload.CardPAN,
		Raw:           append([]byte(nil), c.Body()...),
	}
	if payload.PaymentTime != "" {
		if t, err := time.Parse(gatewayTimeLayout, payload.PaymentTime); err == nil {
			cb.PaymentTime = &t
		}
	}

	if err := h.invoices.HandleCallback(c.Context(), cb); err != nil {
		log.Printf("gateway callback for invoice %q not applied: %v", payload.InvoiceID, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// webhookPayload is the gateway's status-update body
type webhookPayload struct {
	UUID          string `json:"uuid"`
	InvoiceID     string `json:"invoice_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"` // tiyins
	Sign          string `json:"sign"`
	ReceiptURL    string `json:"receipt_url,omitempty"`
	PaymentMethod string `json:"ps,omitempty"`
	CardPAN       string `json:"card_pan,omitempty"`
}

// Webhook receives status pushes from the gateway; same always-200 contract
// as Callback.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("gateway webhook with unparseable body: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	wh := services.GatewayWebhook{
		UUID:          payload.UUID,
		InvoiceID:     payload.InvoiceID,
		Status:        payload.Status,
		AmountTiyin:   payload.Amount,
		Sign:          payload.Sign,
		ReceiptURL:    payload.ReceiptURL,
		PaymentMethod: payload.PaymentMethod,
		CardPAN:       payload.CardPAN,
	}

	if err := h.invoices.HandleWebhook(c.Context(), wh); err != nil {
		log.Printf("gateway webhook for invoice %q not applied: %v", payload.InvoiceID, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// CheckStatus pulls the gateway status for an invoice and reconciles it
func (h *PaymentHandler) CheckStatus(c *fiber.Ctx) error {
	invoiceID := c.QueryInt("invoice_id")
	if invoiceID <= 0 {
		return response.BadRequest(c, "invoice_id query parameter is required")
	}

	invoice, err := h.invoices.ReconcileStatus(c.Context(), uint(invoiceID))
	if err != nil {
		return paymentError(c, err)
	}
	return response.Success(c, invoice)
}

// MarkPaidRequest represents a manual batch settlement request
type MarkPaidRequest struct {
	InvoiceIDs    []uint `json:"invoice_ids" validate:"required,min=1,dive,required"`
	PaymentTime   string `json:"payment_time,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// MarkPaid batch-marks invoices paid for cash/offline payments
func (h *PaymentHandler) MarkPaid(c *fiber.Ctx) error {
	var req MarkPaidRequest
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

	var paymentTime *time.Time
	if req.PaymentTime != "" {
		t, err := time.Parse(time.RFC3339, req.PaymentTime)
		if err != nil {
			return response.BadRequest(c, "payment_time must be RFC3339")
		}
		paymentTime = &t
	}

	result, err := h.invoices.MarkInvoicesPaid(c.Context(), actor, req.InvoiceIDs, paymentTime, req.PaymentMethod)
	if err != nil {
		return paymentError(c, err)
	}
	return response.Success(c, result)
}

// paymentError maps invoice lifecycle errors onto the response envelope
func paymentError(c *fiber.Ctx, err error) error {
	var trErr *services.TransitionError

	switch {
	case errors.Is(err, services.ErrInvoiceNotFound):
		return response.NotFound(c, "Invoice not found")
	case errors.Is(err, services.ErrAlreadyPaid):
		return response.Error(c, fiber.StatusConflict, "Invoice is already paid", "ALREADY_PAID")
	case errors.Is(err, services.ErrInvoiceClosed):
		return response.Error(c, fiber.StatusConflict, "Invoice is closed", "INVOICE_CLOSED")
	case errors.As(err, &trErr):
		return response.Error(c, fiber.StatusConflict, trErr.Error(), "INVALID_TRANSITION")
	case errors.Is(err, services.ErrForbidden):
		return response.Forbidden(c, "")
	case errors.Is(err, services.ErrGatewayUnavailable):
		return response.ServiceUnavailable(c, "Payment gateway is unavailable")
	default:
		return response.InternalServerError(c, "Payment operation failed")
	}
}
