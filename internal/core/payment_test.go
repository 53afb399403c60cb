package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidatePayment(t *testing.T) {
	noBalance := decimal.Zero

	tests := []struct {
		name    string
		in      PaymentInput
		credit  string
		deposit string
		wantErr bool
	}{
		{
			name: "cash payment",
			in:   PaymentInput{Method: PaymentMethodCash, Amount: d("100")},
		},
		{
			name:    "unknown method",
			in:      PaymentInput{Method: "bitcoin", Amount: d("100")},
			wantErr: true,
		},
		{
			name:    "zero amount",
			in:      PaymentInput{Method: PaymentMethodCash, Amount: d("0")},
			wantErr: true,
		},
		{
			name:    "check without reference",
			in:      PaymentInput{Method: PaymentMethodCheck, Amount: d("100")},
			wantErr: true,
		},
		{
			name: "check with reference",
			in:   PaymentInput{Method: PaymentMethodCheck, Amount: d("100"), Reference: "CHK-42"},
		},
		{
			name:    "transfer without reference",
			in:      PaymentInput{Method: PaymentMethodTransfer, Amount: d("100")},
			wantErr: true,
		},
		{
			name: "mixed sums exactly",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodCash, Amount: d("60")},
				{Method: PaymentMethodCard, Amount: d("40")},
			}},
		},
		{
			name: "mixed within tolerance",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodCash, Amount: d("60")},
				{Method: PaymentMethodCard, Amount: d("40.0005")},
			}},
		},
		{
			name: "mixed outside tolerance",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodCash, Amount: d("60")},
				{Method: PaymentMethodCard, Amount: d("41")},
			}},
			wantErr: true,
		},
		{
			name:    "mixed without sub-lines",
			in:      PaymentInput{Method: PaymentMethodMixed, Amount: d("100")},
			wantErr: true,
		},
		{
			name: "nested mixed rejected",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodMixed, Amount: d("100")},
			}},
			wantErr: true,
		},
		{
			name: "balance inside mixed rejected",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodBalance, Amount: d("100")},
			}},
			wantErr: true,
		},
		{
			name: "sub-line check needs reference",
			in: PaymentInput{Method: PaymentMethodMixed, Amount: d("100"), SubLines: []PaymentSubLine{
				{Method: PaymentMethodCheck, Amount: d("100")},
			}},
			wantErr: true,
		},
		{
			name:    "balance draw within both buckets",
			in:      PaymentInput{Method: PaymentMethodBalance, Amount: d("80"), FromCreditBalance: d("50"), FromDepositBalance: d("30")},
			credit:  "50",
			deposit: "40",
		},
		{
			name:    "balance draw exceeding credit bucket",
			in:      PaymentInput{Method: PaymentMethodBalance, Amount: d("80"), FromCreditBalance: d("60"), FromDepositBalance: d("20")},
			credit:  "50",
			deposit: "40",
			wantErr: true,
		},
		{
			name:    "balance draw exceeding deposit bucket",
			in:      PaymentInput{Method: PaymentMethodBalance, Amount: d("80"), FromCreditBalance: d("30"), FromDepositBalance: d("50")},
			credit:  "50",
			deposit: "40",
			wantErr: true,
		},
		{
			name:    "balance split not matching amount",
			in:      PaymentInput{Method: PaymentMethodBalance, Amount: d("80"), FromCreditBalance: d("40"), FromDepositBalance: d("30")},
			credit:  "50",
			deposit: "40",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credit, deposit := noBalance, noBalance
			if tt.credit != "" {
				credit = d(tt.credit)
			}
			if tt.deposit != "" {
				deposit = d(tt.deposit)
			}
			err := ValidatePayment(tt.in, credit, deposit)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayment() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitBalanceDraw(t *testing.T) {
	t.Run("credit bucket first", func(t *testing.T) {
		fromCredit, fromDeposit, err := SplitBalanceDraw(d("80"), d("50"), d("40"))
		if err != nil {
			t.Fatalf("SplitBalanceDraw: %v", err)
		}
		if !fromCredit.Equal(d("50")) || !fromDeposit.Equal(d("30")) {
			t.Errorf("split = %s/%s, want 50/30", fromCredit, fromDeposit)
		}
	})

	t.Run("credit bucket covers it all", func(t *testing.T) {
		fromCredit, fromDeposit, err := SplitBalanceDraw(d("30"), d("50"), d("40"))
		if err != nil {
			t.Fatalf("SplitBalanceDraw: %v", err)
		}
		if !fromCredit.Equal(d("30")) || !fromDeposit.IsZero() {
			t.Errorf("split = %s/%s, want 30/0", fromCredit, fromDeposit)
		}
	})

	t.Run("draw beyond both buckets", func(t *testing.T) {
		if _, _, err := SplitBalanceDraw(d("100"), d("50"), d("40")); err == nil {
			t.Error("expected error when buckets cannot cover the draw")
		}
	})
}

func TestPaymentMethodRequiresReference(t *testing.T) {
	if !PaymentMethodCheck.RequiresReference() || !PaymentMethodTransfer.RequiresReference() {
		t.Error("check and transfer require a reference")
	}
	if PaymentMethodCash.RequiresReference() || PaymentMethodCard.RequiresReference() {
		t.Error("cash and card do not require a reference")
	}
}
