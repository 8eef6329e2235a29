package model

import "testing"

func TestInvoiceStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from InvoiceStatus
		to   InvoiceStatus
		want bool
	}{
		{InvoiceCreated, InvoicePending, true},
		{InvoiceCreated, InvoicePaid, true},
		{InvoiceCreated, InvoiceCancelled, true},
		{InvoiceCreated, InvoiceExpired, true},
		{InvoiceCreated, InvoiceRefunded, false},

		{InvoicePending, InvoicePaid, true},
		{InvoicePending, InvoiceCancelled, true},
		{InvoicePending, InvoiceExpired, true},
		{InvoicePending, InvoiceCreated, false},
		{InvoicePending, InvoiceRefunded, false},

		{InvoicePaid, InvoiceRefunded, true},
		{InvoicePaid, InvoicePending, false},
		{InvoicePaid, InvoiceCancelled, false},

		{InvoiceCancelled, InvoicePaid, false},
		{InvoiceRefunded, InvoicePaid, false},
		{InvoiceExpired, InvoicePaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestInvoiceStatusIsTerminal(t *testing.T) {
	terminal := []InvoiceStatus{InvoiceCancelled, InvoiceRefunded, InvoiceExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	open := []InvoiceStatus{InvoiceCreated, InvoicePending, InvoicePaid}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestInvoiceIsOpen(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		want   bool
	}{
		{InvoiceCreated, true},
		{InvoicePending, true},
		{InvoicePaid, false},
		{InvoiceCancelled, false},
		{InvoiceRefunded, false},
		{InvoiceExpired, false},
	}

	for _, tt := range tests {
		inv := &Invoice{Status: tt.status}
		if got := inv.IsOpen(); got != tt.want {
			t.Errorf("IsOpen() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}
