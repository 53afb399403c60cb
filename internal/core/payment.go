package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodDeposit  PaymentMethod = "deposit"
	PaymentMethodMixed    PaymentMethod = "mixed"
	PaymentMethodBalance  PaymentMethod = "balance"
)

// mixedTolerance is the maximum allowed gap between a mixed payment's amount
// and the sum of its sub-lines.
var mixedTolerance = decimal.NewFromFloat(0.001)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCheck,
		PaymentMethodTransfer, PaymentMethodDeposit, PaymentMethodMixed, PaymentMethodBalance:
		return true
	}
	return false
}

// RequiresReference reports whether the method needs a reference number
// (check number, transfer ID).
func (m PaymentMethod) RequiresReference() bool {
	return m == PaymentMethodCheck || m == PaymentMethodTransfer
}

// PaymentSubLine is one component of a mixed payment.
type PaymentSubLine struct {
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// PaymentInput is a payment as entered, before persistence.
type PaymentInput struct {
	Method    PaymentMethod
	Amount    decimal.Decimal
	Reference string
	SubLines  []PaymentSubLine
	// Balance payments: explicit draw against each provenance bucket.
	FromCreditBalance  decimal.Decimal
	FromDepositBalance decimal.Decimal
}

// ValidatePayment rejects a payment before any write: non-positive amounts,
// missing required references, mixed sub-lines that do not sum to the payment
// amount within the tolerance, and balance draws exceeding either bucket.
// A payment is saveable iff this returns nil.
func ValidatePayment(in PaymentInput, creditBalance, depositBalance decimal.Decimal) error {
	if !in.Method.Valid() {
		return fmt.Errorf("unknown payment method %q", in.Method)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive, got %s", in.Amount)
	}
	if in.Method.RequiresReference() && in.Reference == "" {
		return fmt.Errorf("payment method %s requires a reference number", in.Method)
	}

	switch in.Method {
	case PaymentMethodMixed:
		if len(in.SubLines) == 0 {
			return fmt.Errorf("mixed payment requires at least one sub-line")
		}
		var sum decimal.Decimal
		for i, sub := range in.SubLines {
			if sub.Method == PaymentMethodMixed || sub.Method == PaymentMethodBalance {
				return fmt.Errorf("sub-line %d: method %s cannot appear inside a mixed payment", i+1, sub.Method)
			}
			if !sub.Method.Valid() {
				return fmt.Errorf("sub-line %d: unknown payment method %q", i+1, sub.Method)
			}
			if !sub.Amount.IsPositive() {
				return fmt.Errorf("sub-line %d: amount must be positive, got %s", i+1, sub.Amount)
			}
			if sub.Method.RequiresReference() && sub.Reference == "" {
				return fmt.Errorf("sub-line %d: method %s requires a reference number", i+1, sub.Method)
			}
			sum = sum.Add(sub.Amount)
		}
		if sum.Sub(in.Amount).Abs().GreaterThan(mixedTolerance) {
			return fmt.Errorf("mixed payment sub-lines sum to %s, expected %s (tolerance %s)",
				sum, in.Amount, mixedTolerance)
		}
	case PaymentMethodBalance:
		if in.FromCreditBalance.IsNegative() || in.FromDepositBalance.IsNegative() {
			return fmt.Errorf("balance draws cannot be negative")
		}
		if !in.FromCreditBalance.Add(in.FromDepositBalance).Equal(in.Amount) {
			return fmt.Errorf("balance draws %s + %s do not equal payment amount %s",
				in.FromCreditBalance, in.FromDepositBalance, in.Amount)
		}
		if in.FromCreditBalance.GreaterThan(creditBalance) {
			return fmt.Errorf("credit-note balance draw %s exceeds available %s", in.FromCreditBalance, creditBalance)
		}
		if in.FromDepositBalance.GreaterThan(depositBalance) {
			return fmt.Errorf("deposit balance draw %s exceeds available %s", in.FromDepositBalance, depositBalance)
		}
	}
	return nil
}

// SplitBalanceDraw proposes a bucket split for a balance payment: the
// credit-note-sourced bucket is consumed first, the deposit bucket covers the
// rest. Errors when the two buckets together cannot cover the amount.
func SplitBalanceDraw(amount, creditBalance, depositBalance decimal.Decimal) (fromCredit, fromDeposit decimal.Decimal, err error) {
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("draw amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(creditBalance.Add(depositBalance)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("draw %s exceeds total client balance %s",
			amount, creditBalance.Add(depositBalance))
	}
	fromCredit = amount
	if fromCredit.GreaterThan(creditBalance) {
		fromCredit = creditBalance
	}
	fromDeposit = amount.Sub(fromCredit)
	return fromCredit, fromDeposit, nil
}
