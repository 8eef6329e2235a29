package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bimuz/bimuz-api/model"
)

// setupIntegrationDB connects to the database configured in the environment.
// These tests exercise row locking and transactional behavior, so they need
// a real Postgres instance.
func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}

	sslMode := os.Getenv("DB_SSL_MODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(&model.User{}, &model.Student{}, &model.Employee{},
		&model.Group{}, &model.Invoice{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// stubGateway is a PaymentGateway test double. The func fields let a test
// interleave database writes with the gateway call, simulating callbacks that
// land while a request is in flight.
type stubGateway struct {
	onCreateCheckout func(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	onCheckStatus    func(ctx context.Context, gatewayInvoiceID string) (*GatewayStatus, error)
}

func (g *stubGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if g.onCreateCheckout != nil {
		return g.onCreateCheckout(ctx, req)
	}
	return &CheckoutSession{UUID: "stub-uuid", CheckoutURL: "https://checkout.test/stub"}, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, gatewayInvoiceID string) (*GatewayStatus, error) {
	if g.onCheckStatus != nil {
		return g.onCheckStatus(ctx, gatewayInvoiceID)
	}
	return &GatewayStatus{Status: model.InvoicePending}, nil
}

func (g *stubGateway) VerifyCallbackSignature(string, int64, string) bool { return true }

func (g *stubGateway) VerifyWebhookSignature(string, string, int64, string) bool { return true }

func (g *stubGateway) MapStatus(external string) model.InvoiceStatus {
	switch external {
	case "success":
		return model.InvoicePaid
	case "error":
		return model.InvoiceCancelled
	default:
		return model.InvoicePending
	}
}

func integrationGroup(t *testing.T, db *gorm.DB, seats int, price string) *model.Group {
	t.Helper()
	group := &model.Group{
		Speciality: model.SpecialityRevitArchitecture,
		Schedule:   model.ScheduleMonWedFri,
		LessonTime: "14:00",
		IsActive:   true,
		Seats:      seats,
		Price:      decimal.RequireFromString(price),
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("group_id = ?", group.ID).Delete(&model.Invoice{})
		db.Unscoped().Delete(group)
	})
	return group
}

func integrationStudent(t *testing.T, db *gorm.DB, name string) *model.Student {
	t.Helper()
	student := &model.Student{
		FullName: name,
		Phone:    fmt.Sprintf("+99890%07d", time.Now().UnixNano()%10000000),
		Source:   model.SourceOther,
	}
	if err := db.Create(student).Error; err != nil {
		t.Fatalf("create student: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("student_id = ?", student.ID).Delete(&model.Invoice{})
		db.Unscoped().Delete(student)
	})
	return student
}

func integrationInvoice(t *testing.T, db *gorm.DB, studentID, groupID uint, amount string, status model.InvoiceStatus) *model.Invoice {
	t.Helper()
	invoice := &model.Invoice{
		StudentID: studentID,
		GroupID:   groupID,
		Amount:    decimal.RequireFromString(amount),
		Status:    status,
	}
	if err := db.Create(invoice).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	err := db.Model(invoice).Update("gateway_invoice_id", fmt.Sprintf("%d", invoice.ID)).Error
	if err != nil {
		t.Fatalf("set gateway invoice id: %v", err)
	}
	invoice.GatewayInvoiceID = fmt.Sprintf("%d", invoice.ID)
	t.Cleanup(func() { db.Unscoped().Delete(invoice) })
	return invoice
}

func reloadInvoice(t *testing.T, db *gorm.DB, id uint) model.Invoice {
	t.Helper()
	var invoice model.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		t.Fatalf("reload invoice %d: %v", id, err)
	}
	return invoice
}

// Two students race for the last seat; row locks on the group must let
// exactly one of them through.
func TestBookingOversellUnderConcurrency(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	invoices := NewInvoiceService(db, &stubGateway{})
	bookings := NewBookingService(db, invoices, nil)

	group := integrationGroup(t, db, 1, "2000000")
	first := integrationStudent(t, db, "Race One")
	second := integrationStudent(t, db, "Race Two")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, studentID := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(slot int, id uint) {
			defer wg.Done()
			_, errs[slot] = bookings.Book(ctx, id, group.ID)
		}(i, studentID)
	}
	wg.Wait()

	booked, rejected := 0, 0
	for _, err := range errs {
		var capErr *CapacityError
		switch {
		case err == nil:
			booked++
		case errors.As(err, &capErr):
			rejected++
		default:
			t.Fatalf("expected nil or CapacityError, got %v", err)
		}
	}
	if booked != 1 || rejected != 1 {
		t.Fatalf("expected exactly one booking and one capacity rejection, got %d booked, %d rejected", booked, rejected)
	}

	var enrolled int64
	if err := db.Model(&model.Student{}).Where("group_id = ?", group.ID).Count(&enrolled).Error; err != nil {
		t.Fatalf("count enrolled: %v", err)
	}
	if enrolled != 1 {
		t.Fatalf("expected 1 enrolled student, got %d", enrolled)
	}
}

// A duplicate payment confirmation must settle the invoice once and succeed
// silently the second time.
func TestCallbackConfirmationIdempotence(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	invoices := NewInvoiceService(db, &stubGateway{})
	group := integrationGroup(t, db, 10, "2000000")
	student := integrationStudent(t, db, "Callback Twice")
	invoice := integrationInvoice(t, db, student.ID, group.ID, "1000000", model.InvoicePending)

	cb := GatewayCallback{
		UUID:        "uuid-first",
		InvoiceID:   invoice.GatewayInvoiceID,
		Status:      "success",
		AmountTiyin: 100000000,
		Sign:        "ok",
	}
	if err := invoices.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	afterFirst := reloadInvoice(t, db, invoice.ID)
	if afterFirst.Status != model.InvoicePaid {
		t.Fatalf("expected paid after first callback, got %s", afterFirst.Status)
	}
	if afterFirst.PaymentTime == nil {
		t.Fatal("expected payment_time to be set")
	}

	cb.UUID = "uuid-duplicate"
	if err := invoices.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("duplicate callback should be a no-op, got %v", err)
	}
	afterSecond := reloadInvoice(t, db, invoice.ID)
	if afterSecond.Status != model.InvoicePaid {
		t.Fatalf("expected paid after duplicate callback, got %s", afterSecond.Status)
	}
	if !afterSecond.PaymentTime.Equal(*afterFirst.PaymentTime) {
		t.Fatal("duplicate callback must not rewrite payment_time")
	}
	if afterSecond.GatewayUUID != "uuid-first" {
		t.Fatalf("duplicate callback must not overwrite gateway uuid, got %q", afterSecond.GatewayUUID)
	}
}

// A callback whose signed amount differs from the invoice amount must not
// settle the invoice.
func TestCallbackRejectsAmountMismatch(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	invoices := NewInvoiceService(db, &stubGateway{})
	group := integrationGroup(t, db, 10, "2000000")
	student := integrationStudent(t, db, "Stale Amount")
	invoice := integrationInvoice(t, db, student.ID, group.ID, "1500000", model.InvoicePending)

	err := invoices.HandleCallback(ctx, GatewayCallback{
		UUID:        "uuid-stale",
		InvoiceID:   invoice.GatewayInvoiceID,
		Status:      "success",
		AmountTiyin: 100000000, // pays the pre-recalculation amount
		Sign:        "ok",
	})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected amount-mismatch rejection, got %v", err)
	}
	if got := reloadInvoice(t, db, invoice.ID); got.Status != model.InvoicePending {
		t.Fatalf("invoice must stay pending on amount mismatch, got %s", got.Status)
	}
}

// A price edit repoints open invoices at the new first installment and leaves
// paid invoices untouched.
func TestPriceChangePropagation(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	invoices := NewInvoiceService(db, &stubGateway{})
	groups := NewGroupService(db, invoices)

	group := integrationGroup(t, db, 10, "2000000")
	payer := integrationStudent(t, db, "Already Paid")
	debtor := integrationStudent(t, db, "Still Owes")
	paid := integrationInvoice(t, db, payer.ID, group.ID, "1000000", model.InvoicePaid)
	open := integrationInvoice(t, db, debtor.ID, group.ID, "1000000", model.InvoiceCreated)

	newPrice := decimal.RequireFromString("3000000")
	if _, err := groups.Update(ctx, group.ID, UpdateGroupInput{Price: &newPrice}); err != nil {
		t.Fatalf("update group price: %v", err)
	}

	if got := reloadInvoice(t, db, open.ID); !got.Amount.Equal(decimal.RequireFromString("1500000")) {
		t.Fatalf("open invoice should follow the new price, got %s", got.Amount)
	}
	if got := reloadInvoice(t, db, paid.ID); !got.Amount.Equal(decimal.RequireFromString("1000000")) {
		t.Fatalf("paid invoice is historical record, got %s", got.Amount)
	}
}

// A payment confirmed while the status pull is in flight must win: the pulled
// status may not regress a PAID invoice.
func TestReconcileStatusKeepsPaidInvoice(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	group := integrationGroup(t, db, 10, "2000000")
	student := integrationStudent(t, db, "Paid Mid Pull")
	invoice := integrationInvoice(t, db, student.ID, group.ID, "1000000", model.InvoicePending)

	gateway := &stubGateway{
		onCheckStatus: func(context.Context, string) (*GatewayStatus, error) {
			// A callback lands while the pull is in flight.
			err := db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
				Update("status", model.InvoicePaid).Error
			if err != nil {
				t.Fatalf("mark paid mid-pull: %v", err)
			}
			return &GatewayStatus{Status: model.InvoiceCancelled}, nil
		},
	}
	invoices := NewInvoiceService(db, gateway)

	result, err := invoices.ReconcileStatus(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Status != model.InvoicePaid {
		t.Fatalf("reconcile returned %s, want paid", result.Status)
	}
	if got := reloadInvoice(t, db, invoice.ID); got.Status != model.InvoicePaid {
		t.Fatalf("paid invoice regressed to %s via reconcile", got.Status)
	}
}

// An invoice closed while the checkout call is in flight must not be
// resurrected to PENDING by the session write.
func TestPaymentLinkDoesNotReopenClosedInvoice(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	group := integrationGroup(t, db, 10, "2000000")
	student := integrationStudent(t, db, "Cancelled Mid Checkout")
	invoice := integrationInvoice(t, db, student.ID, group.ID, "1000000", model.InvoiceCreated)

	gateway := &stubGateway{
		onCreateCheckout: func(context.Context, CheckoutRequest) (*CheckoutSession, error) {
			// The booking is cancelled while the gateway call is in flight.
			err := db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
				Update("status", model.InvoiceCancelled).Error
			if err != nil {
				t.Fatalf("cancel mid-checkout: %v", err)
			}
			return &CheckoutSession{UUID: "late-session", CheckoutURL: "https://checkout.test/late"}, nil
		},
	}
	invoices := NewInvoiceService(db, gateway)

	_, err := invoices.CreatePaymentLink(ctx, invoice.ID, "uz", "", "")
	if !errors.Is(err, ErrInvoiceClosed) {
		t.Fatalf("expected closed-invoice rejection, got %v", err)
	}
	if got := reloadInvoice(t, db, invoice.ID); got.Status != model.InvoiceCancelled {
		t.Fatalf("cancelled invoice resurrected to %s via payment link", got.Status)
	}
}

// Expiry is measured from when the invoice entered PENDING; later touches to
// the row must not keep a dead checkout alive.
func TestExpireStalePendingIgnoresRowTouches(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()

	invoices := NewInvoiceService(db, &stubGateway{})
	group := integrationGroup(t, db, 10, "2000000")
	student := integrationStudent(t, db, "Stale Checkout")
	invoice := integrationInvoice(t, db, student.ID, group.ID, "1000000", model.InvoicePending)

	pendingAt := time.Now().Add(-8 * 24 * time.Hour)
	if err := db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
		Update("pending_at", pendingAt).Error; err != nil {
		t.Fatalf("backdate pending_at: %v", err)
	}
	// A later touch bumps updated_at without restarting the horizon.
	if err := db.Model(&model.Invoice{}).Where("id = ?", invoice.ID).
		Update("notes", "touched").Error; err != nil {
		t.Fatalf("touch invoice: %v", err)
	}

	expired, err := invoices.ExpireStalePending(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("expire sweep: %v", err)
	}
	if expired < 1 {
		t.Fatalf("expected at least one expiry, got %d", expired)
	}
	if got := reloadInvoice(t, db, invoice.ID); got.Status != model.InvoiceExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}
