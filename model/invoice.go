package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of a tuition invoice.
type InvoiceStatus string

const (
	InvoiceCreated   InvoiceStatus = "created"
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceRefunded  InvoiceStatus = "refunded"
	InvoiceExpired   InvoiceStatus = "expired"
)

// OpenInvoiceStatuses are the states in which an invoice still awaits payment.
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceCreated, InvoicePending}

// validTransitions encodes the invoice state machine. PAID is terminal except
// for the administrative refund path; CANCELLED, REFUNDED and EXPIRED are
// terminal.
var validTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceCreated: {InvoicePending, InvoicePaid, InvoiceCancelled, InvoiceExpired},
	InvoicePending: {InvoicePaid, InvoiceCancelled, InvoiceExpired},
	InvoicePaid:    {InvoiceRefunded},
}

// CanTransitionTo reports whether moving from s to target is a legal
// lifecycle step.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s InvoiceStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Invoice is one tuition payment obligation tied to a (student, group) pair.
type Invoice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
	StudentID uint            `gorm:"not null;index:idx_invoices_student_status" json:"student_id"`
	GroupID   uint            `gorm:"not null;index:idx_invoices_group_status" json:"group_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status    InvoiceStatus   `gorm:"type:varchar(20);not null;default:'created';index:idx_invoices_student_status;index:idx_invoices_group_status" json:"status"`

	// Payment gateway correlation fields.
	GatewayUUID      string     `gorm:"type:varchar(255);index" json:"gateway_uuid,omitempty"`
	GatewayInvoiceID string     `gorm:"type:varchar(255);index" json:"gateway_invoice_id,omitempty"`
	CheckoutURL      string     `json:"checkout_url,omitempty"`
	ReceiptURL       string     `json:"receipt_url,omitempty"`
	PendingAt        *time.Time `json:"-"` // when the invoice entered PENDING; drives checkout expiry

	// Payment details filled on confirmation.
	PaymentTime   *time.Time     `json:"payment_time,omitempty"`
	PaymentMethod string         `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	CardPAN       string         `gorm:"type:varchar(16)" json:"card_pan,omitempty"` // masked
	RawCallback   datatypes.JSON `json:"-"`                                          // last verified gateway payload, kept for audit

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Student Student `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Group   Group   `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// IsPaid reports whether the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoicePaid
}

// IsOpen reports whether the invoice still awaits payment.
func (i *Invoice) IsOpen() bool {
	return i.Status == InvoiceCreated || i.Status == InvoicePending
}

// CanBeUpdated reports whether the amount may still change. Paid invoices
// are historical record.
func (i *Invoice) CanBeUpdated() bool {
	return i.IsOpen()
}
