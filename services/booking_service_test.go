package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bimuz/bimuz-api/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPlanGroupChange(t *testing.T) {
	tests := []struct {
		name           string
		oldPrice       string
		newPrice       string
		totalPaid      string
		wantDifference string
		wantInvoice    bool
		wantAmount     string
		wantRefund     bool
		wantRefundAmt  string
	}{
		{
			name:           "upgrade to pricier group bills a fresh half",
			oldPrice:       "500000",
			newPrice:       "1000000",
			totalPaid:      "250000",
			wantDifference: "500000",
			wantInvoice:    true,
			wantAmount:     "500000",
		},
		{
			name:           "same price still bills a fresh half",
			oldPrice:       "800000",
			newPrice:       "800000",
			totalPaid:      "400000",
			wantDifference: "0",
			wantInvoice:    true,
			wantAmount:     "400000",
		},
		{
			name:           "downgrade with overpayment refunds the surplus",
			oldPrice:       "1000000",
			newPrice:       "800000",
			totalPaid:      "1000000",
			wantDifference: "-200000",
			wantInvoice:    false,
			wantRefund:     true,
			wantRefundAmt:  "200000",
		},
		{
			name:           "downgrade without overpayment bills a fresh half",
			oldPrice:       "1000000",
			newPrice:       "800000",
			totalPaid:      "500000",
			wantDifference: "-200000",
			wantInvoice:    true,
			wantAmount:     "400000",
		},
		{
			name:           "downgrade paid exactly the new price",
			oldPrice:       "1000000",
			newPrice:       "800000",
			totalPaid:      "800000",
			wantDifference: "-200000",
			wantInvoice:    true,
			wantAmount:     "400000",
		},
		{
			name:           "nothing paid yet on an upgrade",
			oldPrice:       "600000",
			newPrice:       "900000",
			totalPaid:      "0",
			wantDifference: "300000",
			wantInvoice:    true,
			wantAmount:     "450000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planGroupChange(dec(tt.oldPrice), dec(tt.newPrice), dec(tt.totalPaid))

			if !plan.PriceDifference.Equal(dec(tt.wantDifference)) {
				t.Errorf("price difference = %s, want %s", plan.PriceDifference, tt.wantDifference)
			}
			if plan.CreateInvoice != tt.wantInvoice {
				t.Errorf("create invoice = %v, want %v", plan.CreateInvoice, tt.wantInvoice)
			}
			if tt.wantInvoice && !plan.InvoiceAmount.Equal(dec(tt.wantAmount)) {
				t.Errorf("invoice amount = %s, want %s", plan.InvoiceAmount, tt.wantAmount)
			}
			if plan.RefundRequired != tt.wantRefund {
				t.Errorf("refund required = %v, want %v", plan.RefundRequired, tt.wantRefund)
			}
			if tt.wantRefund && !plan.RefundAmount.Equal(dec(tt.wantRefundAmt)) {
				t.Errorf("refund amount = %s, want %s", plan.RefundAmount, tt.wantRefundAmt)
			}
			if !tt.wantRefund && !plan.RefundAmount.IsZero() {
				t.Errorf("refund amount = %s, want 0", plan.RefundAmount)
			}
		})
	}
}

func TestBuildPaymentInfoHalves(t *testing.T) {
	lessons := 24
	group := model.Group{
		Price:        dec("1000001"), // odd amount: halves must still sum to the price
		TotalLessons: &lessons,
	}

	info := buildPaymentInfo(group, nil)

	if info.Currency != "UZS" {
		t.Errorf("currency = %q, want UZS", info.Currency)
	}
	sum := info.FirstInstallment.Amount.Add(info.SecondInstallment.Amount)
	if !sum.Equal(group.Price) {
		t.Errorf("installments sum to %s, want %s", sum, group.Price)
	}
	if info.FirstInstallment.DueByLesson == nil || *info.FirstInstallment.DueByLesson != 12 {
		t.Errorf("first installment due lesson = %v, want 12", info.FirstInstallment.DueByLesson)
	}
	if info.SecondInstallment.DueByLesson == nil || *info.SecondInstallment.DueByLesson != 24 {
		t.Errorf("second installment due lesson = %v, want 24", info.SecondInstallment.DueByLesson)
	}
}

func TestBuildPaymentInfoWithoutLessonCount(t *testing.T) {
	group := model.Group{Price: dec("500000")}

	info := buildPaymentInfo(group, nil)

	if info.FirstInstallment.DueByLesson != nil || info.SecondInstallment.DueByLesson != nil {
		t.Error("expected no lesson milestones when total lessons is unset")
	}
	if !info.FirstInstallment.Amount.Equal(dec("250000")) {
		t.Errorf("first installment = %s, want 250000", info.FirstInstallment.Amount)
	}
}
