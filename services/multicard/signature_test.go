package multicard

import (
	"testing"

	"github.com/bimuz/bimuz-api/model"
)

func TestCallbackSignature(t *testing.T) {
	got := callbackSignature("store-77", "inv-1001", 50000000, "s3cr3t")
	want := "676eb17e11b173061d6ed2e3ebfddbc8"
	if got != want {
		t.Errorf("callbackSignature() = %s, want %s", got, want)
	}
}

func TestWebhookSignature(t *testing.T) {
	got := webhookSignature("a1b2c3d4", "inv-1001", 50000000, "s3cr3t")
	want := "080a8f7c5cdf6f1f03247c2324bd2bbd8fb890ef"
	if got != want {
		t.Errorf("webhookSignature() = %s, want %s", got, want)
	}
}

func TestVerifyCallbackSignature(t *testing.T) {
	c := NewClient(Config{StoreID: "store-77", Secret: "s3cr3t"}, nil)

	if !c.VerifyCallbackSignature("inv-1001", 50000000, "676eb17e11b173061d6ed2e3ebfddbc8") {
		t.Error("expected valid signature to verify")
	}
	// Gateway sometimes uppercases hex digests.
	if !c.VerifyCallbackSignature("inv-1001", 50000000, "676EB17E11B173061D6ED2E3EBFDDBC8") {
		t.Error("expected uppercase signature to verify")
	}
	if c.VerifyCallbackSignature("inv-1001", 50000001, "676eb17e11b173061d6ed2e3ebfddbc8") {
		t.Error("expected amount mismatch to fail verification")
	}
	if c.VerifyCallbackSignature("inv-1002", 50000000, "676eb17e11b173061d6ed2e3ebfddbc8") {
		t.Error("expected invoice mismatch to fail verification")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewClient(Config{StoreID: "store-77", Secret: "s3cr3t"}, nil)

	if !c.VerifyWebhookSignature("a1b2c3d4", "inv-1001", 50000000, "080a8f7c5cdf6f1f03247c2324bd2bbd8fb890ef") {
		t.Error("expected valid signature to verify")
	}
	if c.VerifyWebhookSignature("zzzz", "inv-1001", 50000000, "080a8f7c5cdf6f1f03247c2324bd2bbd8fb890ef") {
		t.Error("expected uuid mismatch to fail verification")
	}
}

func TestMapStatus(t *testing.T) {
	c := NewClient(Config{}, nil)

	tests := []struct {
		external string
		want     model.InvoiceStatus
	}{
		{"draft", model.InvoiceCreated},
		{"progress", model.InvoicePending},
		{"success", model.InvoicePaid},
		{"SUCCESS", model.InvoicePaid},
		{"error", model.InvoiceCancelled},
		{"revert", model.InvoiceRefunded},
		{"something_new", model.InvoicePending},
		{"", model.InvoicePending},
	}

	for _, tt := range tests {
		if got := c.MapStatus(tt.external); got != tt.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tt.external, got, tt.want)
		}
	}
}
