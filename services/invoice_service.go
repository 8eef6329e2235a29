package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bimuz/bimuz-api/model"
)

// CheckoutRequest asks the payment gateway to open a checkout session for
// an invoice. Amount is in tiyins (1 sum = 100 tiyins).
type CheckoutRequest struct {
	InvoiceID   string
	AmountTiyin int64
	Lang        string
	ReturnURL   string
	SMSPhone    string
}

// CheckoutSession is the gateway's answer to CheckoutRequest.
type CheckoutSession struct {
	UUID        string
	CheckoutURL string
	ShortLink   string
}

// GatewayStatus is the gateway's view of an invoice, already mapped into the
// internal status vocabulary.
type GatewayStatus struct {
	Status     model.InvoiceStatus
	ReceiptURL string
}

// PaymentGateway abstracts the card-payment provider. Implementations must
// apply short timeouts; the invoice service never calls the gateway while
// holding row locks.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CheckStatus(ctx context.Context, gatewayInvoiceID string) (*GatewayStatus, error)
	VerifyCallbackSignature(invoiceID string, amountTiyin int64, sign string) bool
	VerifyWebhookSignature(uuid, invoiceID string, amountTiyin int64, sign string) bool
	MapStatus(external string) model.InvoiceStatus
}

// InvoiceService owns the invoice lifecycle state machine and its gateway
// reconciliation.
type InvoiceService struct {
	db      *gorm.DB
	gateway PaymentGateway
	now     func() time.Time
}

// NewInvoiceService creates a new invoice service. gateway may be nil when
// card payments are disabled (manual settlement still works).
func NewInvoiceService(db *gorm.DB, gateway PaymentGateway) *InvoiceService {
	return &InvoiceService{db: db, gateway: gateway, now: time.Now}
}

// FirstInstallment returns half of a group price, the amount billed at
// booking time.
func FirstInstallment(price decimal.Decimal) decimal.Decimal {
	return price.Div(decimal.NewFromInt(2))
}

// CreateFirstInstallmentTx creates the 50% first-installment invoice for a
// fresh booking inside the caller's transaction. It is idempotent: if an
// open or paid invoice already exists for the (student, group) pair, or the
// group has nothing to bill, no invoice is created and nil is returned.
func (s *InvoiceService) CreateFirstInstallmentTx(tx *gorm.DB, student model.Student, group model.Group) (*model.Invoice, error) {
	var existing int64
	err := tx.Model(&model.Invoice{}).
		Where("student_id = ? AND group_id = ? AND status IN ?",
			student.ID, group.ID,
			[]model.InvoiceStatus{model.InvoiceCreated, model.InvoicePending, model.InvoicePaid}).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("check existing invoices: %w", err)
	}
	if existing > 0 {
		log.Printf("invoices already exist for student %d and group %d, skipping creation", student.ID, group.ID)
		return nil, nil
	}

	if !group.Price.IsPositive() {
		log.Printf("group %d has no price set, invoice not created", group.ID)
		return nil, nil
	}

	note := fmt.Sprintf("First installment (50%%) for group %d. Full group price: %s UZS.",
		group.ID, group.Price.StringFixed(2))
	return s.CreateInvoiceTx(tx, student.ID, group.ID, FirstInstallment(group.Price), note)
}

// CreateInvoiceTx inserts a CREATED invoice inside the caller's transaction.
func (s *InvoiceService) CreateInvoiceTx(tx *gorm.DB, studentID, groupID uint, amount decimal.Decimal, note string) (*model.Invoice, error) {
	if !amount.IsPositive() {
		return nil, &InvariantError{Detail: fmt.Sprintf("invoice amount must be positive, got %s", amount)}
	}
	invoice := &model.Invoice{
		StudentID: studentID,
		GroupID:   groupID,
		Amount:    amount,
		Status:    model.InvoiceCreated,
		Notes:     note,
	}
	if err := tx.Create(invoice).Error; err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

// CancelOpenInvoicesTx moves every open invoice for the (student, group)
// pair to CANCELLED and returns how many were affected.
func (s *InvoiceService) CancelOpenInvoicesTx(tx *gorm.DB, studentID, groupID uint) (int64, error) {
	res := tx.Model(&model.Invoice{}).
		Where("student_id = ? AND group_id = ? AND status IN ?", studentID, groupID, model.OpenInvoiceStatuses).
		Update("status", model.InvoiceCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("cancel open invoices: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// TotalPaidTx sums the PAID invoice amounts for a (student, group) pair.
func (s *InvoiceService) TotalPaidTx(tx *gorm.DB, studentID, groupID uint) (decimal.Decimal, error) {
	var invoices []model.Invoice
	err := tx.Where("student_id = ? AND group_id = ? AND status = ?", studentID, groupID, model.InvoicePaid).
		Find(&invoices).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("load paid invoices: %w", err)
	}
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Amount)
	}
	return total, nil
}

// RecalculateOpenInvoicesTx repoints every open invoice of a group at the
// new first-installment amount after a price edit. Paid invoices are
// historical record and are never touched.
func (s *InvoiceService) RecalculateOpenInvoicesTx(tx *gorm.DB, groupID uint, newPrice decimal.Decimal) (int64, error) {
	if !newPrice.IsPositive() {
		return 0, nil
	}
	res := tx.Model(&model.Invoice{}).
		Where("group_id = ? AND status IN ?", groupID, model.OpenInvoiceStatuses).
		Update("amount", FirstInstallment(newPrice))
	if res.Error != nil {
		return 0, fmt.Errorf("recalculate open invoices: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CreatePaymentResult carries the checkout session back to the caller.
type CreatePaymentResult struct {
	Invoice     model.Invoice `json:"invoice"`
	CheckoutURL string        `json:"checkout_url"`
	ShortLink   string        `json:"short_link,omitempty"`
	UUID        string        `json:"uuid"`
}

// CreatePaymentLink opens a gateway checkout session for an invoice and
// moves it CREATED -> PENDING. The gateway call happens before the update
// transaction so no row lock is held across network I/O.
func (s *InvoiceService) CreatePaymentLink(ctx context.Context, invoiceID uint, lang, returnURL, smsPhone string) (*CreatePaymentResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var invoice model.Invoice
	if err := s.db.WithContext(ctx).Preload("Student").Preload("Group").
		First(&invoice, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	if invoice.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if !invoice.IsOpen() {
		return nil, ErrInvoiceClosed
	}

	session, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		InvoiceID:   fmt.Sprintf("%d", invoice.ID),
		AmountTiyin: invoice.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Lang:        lang,
		ReturnURL:   returnURL,
		SMSPhone:    smsPhone,
	})
	if err != nil {
		return nil, err
	}

	// The invoice may have been cancelled or paid while the gateway call was
	// in flight. Re-check under the row lock; the pre-gateway read above is
	// only an early reject.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, invoice.ID).Error; err != nil {
			return err
		}
		if current.IsPaid() {
			return ErrAlreadyPaid
		}
		if !current.IsOpen() {
			return ErrInvoiceClosed
		}
		return tx.Model(&current).Updates(map[string]interface{}{
			"gateway_uuid":       session.UUID,
			"gateway_invoice_id": fmt.Sprintf("%d", current.ID),
			"checkout_url":       session.CheckoutURL,
			"status":             model.InvoicePending,
			"pending_at":         s.now(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyPaid) || errors.Is(err, ErrInvoiceClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("store checkout session: %w", err)
	}
	invoice.Status = model.InvoicePending
	invoice.GatewayUUID = session.UUID
	invoice.CheckoutURL = session.CheckoutURL

	return &CreatePaymentResult{
		Invoice:     invoice,
		CheckoutURL: session.CheckoutURL,
		ShortLink:   session.ShortLink,
		UUID:        session.UUID,
	}, nil
}

// GatewayCallback is the verified-at-the-edge payload the gateway posts
// after a payment attempt. Amount is in tiyins.
type GatewayCallback struct {
	UUID          string
	InvoiceID     string
	Status        string
	AmountTiyin   int64
	Sign          string
	PaymentTime   *time.Time
	ReceiptURL    string
	PaymentMethod string
	CardPAN       string
	Raw           []byte
}

// HandleCallback applies a payment confirmation. It is idempotent: a
// duplicate confirmation for an already-PAID invoice succeeds without side
// effects. A bad signature rejects without mutating state; the transport
// layer still acknowledges with a 2xx to stop the gateway's retry storm.
func (s *InvoiceService) HandleCallback(ctx context.Context, cb GatewayCallback) error {
	if s.gateway == nil {
		return ErrGatewayUnavailable
	}

	if !s.gateway.VerifyCallbackSignature(cb.InvoiceID, cb.AmountTiyin, cb.Sign) {
		log.Printf("SECURITY: rejected gateway callback with invalid signature for invoice %q", cb.InvoiceID)
		return ErrSignatureInvalid
	}

	target := s.gateway.MapStatus(cb.Status)
	if target != model.InvoicePaid {
		log.Printf("gateway callback for invoice %q carries status %q, not marking paid", cb.InvoiceID, cb.Status)
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice model.Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_invoice_id = ?", cb.InvoiceID).
			First(&invoice).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}

		if invoice.IsPaid() {
			// Duplicate confirmation; nothing to re-apply.
			return nil
		}
		if !invoice.Status.CanTransitionTo(model.InvoicePaid) {
			return &TransitionError{InvoiceID: invoice.ID, From: invoice.Status, To: model.InvoicePaid}
		}

		// A price recalculation may have repointed the invoice after the
		// checkout session was issued; a payment against the stale amount
		// must not settle the new one.
		expectedTiyin := invoice.Amount.Mul(decimal.NewFromInt(100)).IntPart()
		if cb.AmountTiyin != expectedTiyin {
			log.Printf("SECURITY: gateway callback for invoice %d carries %d tiyin, expected %d, not applied",
				invoice.ID, cb.AmountTiyin, expectedTiyin)
			return ErrAmountMismatch
		}

		paymentTime := s.now()
		if cb.PaymentTime != nil {
			paymentTime = *cb.PaymentTime
		}

		updates := map[string]interface{}{
			"status":         model.InvoicePaid,
			"payment_time":   paymentTime,
			"receipt_url":    cb.ReceiptURL,
			"payment_method": cb.PaymentMethod,
			"card_pan":       cb.CardPAN,
			"gateway_uuid":   cb.UUID,
		}
		if len(cb.Raw) > 0 {
			updates["raw_callback"] = datatypes.JSON(cb.Raw)
		}
		if err := tx.Model(&invoice).Updates(updates).Error; err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		log.Printf("invoice %d marked paid via gateway callback, uuid %s", invoice.ID, cb.UUID)
		return nil
	})
}

// GatewayWebhook is a status-update push from the gateway, signed with the
// webhook scheme.
type GatewayWebhook struct {
	UUID          string
	InvoiceID     string
	Status        string
	AmountTiyin   int64
	Sign          string
	ReceiptURL    string
	PaymentMethod string
	CardPAN       string
}

// HandleWebhook reconciles an invoice with a pushed gateway status. Illegal
// transitions (e.g. regressing a PAID invoice to PENDING) are ignored, not
// applied.
func (s *InvoiceService) HandleWebhook(ctx context.Context, wh GatewayWebhook) error {
	if s.gateway == nil {
		return ErrGatewayUnavailable
	}

	if !s.gateway.VerifyWebhookSignature(wh.UUID, wh.InvoiceID, wh.AmountTiyin, wh.Sign) {
		log.Printf("SECURITY: rejected gateway webhook with invalid signature for invoice %q", wh.InvoiceID)
		return ErrSignatureInvalid
	}

	target := s.gateway.MapStatus(wh.Status)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice model.Invoice
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("gateway_invoice_id = ?", wh.InvoiceID).
			First(&invoice).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}

		if invoice.Status == target {
			return nil
		}
		if !invoice.Status.CanTransitionTo(target) {
			log.Printf("ignoring gateway webhook for invoice %d: illegal transition %s -> %s",
				invoice.ID, invoice.Status, target)
			return nil
		}

		updates := map[string]interface{}{
			"status":       target,
			"gateway_uuid": wh.UUID,
		}
		if target == model.InvoicePaid {
			expectedTiyin := invoice.Amount.Mul(decimal.NewFromInt(100)).IntPart()
			if wh.AmountTiyin != expectedTiyin {
				log.Printf("SECURITY: gateway webhook for invoice %d carries %d tiyin, expected %d, not applied",
					invoice.ID, wh.AmountTiyin, expectedTiyin)
				return nil
			}
			if invoice.PaymentTime == nil {
				updates["payment_time"] = s.now()
				updates["receipt_url"] = wh.ReceiptURL
				updates["payment_method"] = wh.PaymentMethod
				updates["card_pan"] = wh.CardPAN
			}
		}
		if target == model.InvoicePending && invoice.PendingAt == nil {
			updates["pending_at"] = s.now()
		}
		if err := tx.Model(&invoice).Updates(updates).Error; err != nil {
			return fmt.Errorf("apply webhook status: %w", err)
		}
		log.Printf("invoice %d status updated to %s via gateway webhook", invoice.ID, target)
		return nil
	})
}

// ReconcileStatus pulls the gateway's view of an invoice and applies it if
// the transition is legal. Used for the on-demand status check surface.
func (s *InvoiceService) ReconcileStatus(ctx context.Context, invoiceID uint) (*model.Invoice, error) {
	if s.gateway == nil {
		return nil, ErrGatewayUnavailable
	}

	var invoice model.Invoice
	if err := s.db.WithContext(ctx).First(&invoice, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if invoice.GatewayInvoiceID == "" {
		return &invoice, nil
	}

	status, err := s.gateway.CheckStatus(ctx, invoice.GatewayInvoiceID)
	if err != nil {
		return nil, err
	}

	// Re-check under the row lock: a callback may have settled the invoice
	// while the gateway call was in flight, and the pulled status must never
	// win over a transition it cannot legally make.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, invoice.ID).Error; err != nil {
			return err
		}

		if status.Status == current.Status || !current.Status.CanTransitionTo(status.Status) {
			invoice = current
			return nil
		}

		updates := map[string]interface{}{"status": status.Status}
		if status.Status == model.InvoicePaid && current.PaymentTime == nil {
			updates["payment_time"] = s.now()
			updates["receipt_url"] = status.ReceiptURL
		}
		if status.Status == model.InvoicePending && current.PendingAt == nil {
			updates["pending_at"] = s.now()
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return err
		}
		current.Status = status.Status
		invoice = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile invoice status: %w", err)
	}
	return &invoice, nil
}

// MarkPaidResult reports a manual batch settlement.
type MarkPaidResult struct {
	UpdatedCount int `json:"updated_count"`
	SkippedCount int `json:"skipped_count"`
	TotalCount   int `json:"total_count"`
}

// MarkInvoicesPaid batch-marks invoices as paid for offline/cash payments.
// Ids already PAID are skipped and reported, not errors.
func (s *InvoiceService) MarkInvoicesPaid(ctx context.Context, actor Actor, invoiceIDs []uint, paymentTime *time.Time, method string) (*MarkPaidResult, error) {
	if !actor.CanSettleInvoices() {
		return nil, ErrForbidden
	}
	if method == "" {
		method = "manual"
	}
	when := s.now()
	if paymentTime != nil {
		when = *paymentTime
	}

	result := &MarkPaidResult{TotalCount: len(invoiceIDs)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoices []model.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", invoiceIDs).
			Find(&invoices).Error; err != nil {
			return fmt.Errorf("load invoices: %w", err)
		}

		for i := range invoices {
			inv := &invoices[i]
			if inv.IsPaid() || !inv.Status.CanTransitionTo(model.InvoicePaid) {
				result.SkippedCount++
				continue
			}
			err := tx.Model(inv).Updates(map[string]interface{}{
				"status":         model.InvoicePaid,
				"payment_time":   when,
				"payment_method": method,
			}).Error
			if err != nil {
				return fmt.Errorf("mark invoice %d paid: %w", inv.ID, err)
			}
			result.UpdatedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireStalePending moves PENDING invoices whose checkout session is older
// than the horizon to EXPIRED. Staleness is measured from pending_at, not
// updated_at, so unrelated touches (price recalculation, webhook metadata)
// do not keep a dead checkout alive. Rows from before pending_at existed
// fall back to updated_at. Returns how many were expired.
func (s *InvoiceService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status = ? AND COALESCE(pending_at, updated_at) < ?", model.InvoicePending, cutoff).
		Update("status", model.InvoiceExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expire stale invoices: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status    model.InvoiceStatus
	StudentID uint
	MentorID  uint // restricts to invoices of groups taught by this mentor
	Search    string
	Limit     int
	Offset    int
}

// List returns invoices newest first with optional filters. Mentor actors
// are restricted by the caller via MentorID.
func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Preload("Student").Preload("Group").Preload("Group.Mentor")

	if f.Status != "" {
		query = query.Where("invoices.status = ?", f.Status)
	}
	if f.StudentID != 0 {
		query = query.Where("invoices.student_id = ?", f.StudentID)
	}
	if f.MentorID != 0 {
		query = query.Joins("JOIN groups ON groups.id = invoices.group_id").
			Where("groups.mentor_id = ?", f.MentorID)
	}
	if f.Search != "" {
		query = query.Joins("JOIN students ON students.id = invoices.student_id").
			Where("students.full_name ILIKE ? OR students.phone ILIKE ?",
				"%"+f.Search+"%", "%"+f.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	var invoices []model.Invoice
	if err := query.Order("invoices.created_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}

// Get loads one invoice with its student and group.
func (s *InvoiceService) Get(ctx context.Context, invoiceID uint) (*model.Invoice, error) {
	var invoice model.Invoice
	err := s.db.WithContext(ctx).Preload("Student").Preload("Group").
		First(&invoice, invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}
