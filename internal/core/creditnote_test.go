package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func remLine(id int64, rate, ht, ttc string) RemainingLine {
	return RemainingLine{InvoiceLineID: id, VATRate: d(rate), RemainingHT: d(ht), RemainingTTC: d(ttc)}
}

func TestLineDiscountDerivations(t *testing.T) {
	l := remLine(1, "19", "100", "119")

	t.Run("from HT", func(t *testing.T) {
		got := DiscountFromHT(l, d("40"))
		if !got.HT.Equal(d("40")) || !got.TTC.Equal(d("47.6")) || !got.Rate.Equal(d("40")) {
			t.Errorf("trio = %s/%s/%s, want 40/47.6/40", got.HT, got.TTC, got.Rate)
		}
	})

	t.Run("from TTC", func(t *testing.T) {
		got := DiscountFromTTC(l, d("47.6"))
		if !got.HT.Equal(d("40")) {
			t.Errorf("HT = %s, want 40", got.HT)
		}
	})

	t.Run("from rate", func(t *testing.T) {
		got := DiscountFromRate(l, d("25"))
		if !got.HT.Equal(d("25")) || !got.TTC.Equal(d("29.75")) {
			t.Errorf("trio = %s/%s, want 25/29.75", got.HT, got.TTC)
		}
	})

	t.Run("clamped to the remainder", func(t *testing.T) {
		got := DiscountFromHT(l, d("150"))
		if !got.HT.Equal(d("100")) {
			t.Errorf("HT = %s, want 100", got.HT)
		}
		got = DiscountFromHT(l, d("-10"))
		if !got.HT.IsZero() {
			t.Errorf("HT = %s, want 0", got.HT)
		}
	})

	t.Run("foreign line has no VAT factor", func(t *testing.T) {
		fl := RemainingLine{InvoiceLineID: 2, VATRate: d("19"), Foreign: true, RemainingHT: d("100"), RemainingTTC: d("100")}
		got := DiscountFromTTC(fl, d("30"))
		if !got.HT.Equal(d("30")) {
			t.Errorf("HT = %s, want 30", got.HT)
		}
	})
}

func TestProrateToTarget(t *testing.T) {
	lines := []RemainingLine{
		remLine(1, "19", "150", "178.5"),
		remLine(2, "19", "50", "59.5"),
	}

	t.Run("half target prorates uniformly", func(t *testing.T) {
		got, err := ProrateToTarget(lines, d("100"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		if !got[0].NewHT.Equal(d("75")) || !got[1].NewHT.Equal(d("25")) {
			t.Errorf("new HT = %s/%s, want 75/25", got[0].NewHT, got[1].NewHT)
		}
		var totalHT, totalVAT, totalTTC decimal.Decimal
		for _, l := range got {
			totalHT = totalHT.Add(l.NewHT)
			totalVAT = totalVAT.Add(l.NewVAT)
			totalTTC = totalTTC.Add(l.NewTTC)
		}
		if !totalHT.Equal(d("100")) || !totalVAT.Equal(d("19")) || !totalTTC.Equal(d("119")) {
			t.Errorf("totals = %s/%s/%s, want 100/19/119", totalHT, totalVAT, totalTTC)
		}
	})

	t.Run("zero target credits everything", func(t *testing.T) {
		got, err := ProrateToTarget(lines, decimal.Zero)
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		if !got[0].CreditedHT.Equal(d("150")) || !got[1].CreditedHT.Equal(d("50")) {
			t.Errorf("credited = %s/%s, want 150/50", got[0].CreditedHT, got[1].CreditedHT)
		}
	})

	t.Run("target above remainder rejected", func(t *testing.T) {
		if _, err := ProrateToTarget(lines, d("201")); err == nil {
			t.Error("expected error for target above remaining HT")
		}
	})

	t.Run("negative target rejected", func(t *testing.T) {
		if _, err := ProrateToTarget(lines, d("-1")); err == nil {
			t.Error("expected error for negative target")
		}
	})

	t.Run("exhausted invoice rejected", func(t *testing.T) {
		spent := []RemainingLine{remLine(1, "19", "0", "0")}
		if _, err := ProrateToTarget(spent, decimal.Zero); err == nil {
			t.Error("expected error when nothing remains to credit")
		}
	})
}

func TestApplyLineDiscounts(t *testing.T) {
	lines := []RemainingLine{
		remLine(1, "19", "100", "119"),
		remLine(2, "7", "100", "107"),
	}
	got := ApplyLineDiscounts(lines, map[int64]decimal.Decimal{1: d("40")})

	if !got[0].NewHT.Equal(d("60")) || !got[0].CreditedHT.Equal(d("40")) {
		t.Errorf("line 1 = new %s credited %s, want 60/40", got[0].NewHT, got[0].CreditedHT)
	}
	if !got[0].CreditedVAT.Equal(d("7.6")) || !got[0].CreditedTTC.Equal(d("47.6")) {
		t.Errorf("line 1 credited VAT/TTC = %s/%s, want 7.6/47.6", got[0].CreditedVAT, got[0].CreditedTTC)
	}
	// Untouched line passes through with zero credit.
	if !got[1].NewHT.Equal(d("100")) || !got[1].CreditedHT.IsZero() {
		t.Errorf("line 2 = new %s credited %s, want 100/0", got[1].NewHT, got[1].CreditedHT)
	}
}

func TestCreditVATBreakdown(t *testing.T) {
	lines := []RemainingLine{
		remLine(1, "19", "100", "119"),
		remLine(2, "7", "100", "107"),
		remLine(3, "19", "50", "59.5"),
	}
	prorated, err := ProrateToTarget(lines, d("125"))
	if err != nil {
		t.Fatalf("ProrateToTarget: %v", err)
	}
	groups := CreditVATBreakdown(prorated)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !groups[0].Rate.Equal(d("19")) || !groups[0].BaseHT.Equal(d("75")) {
		t.Errorf("19%% group base = %s, want 75", groups[0].BaseHT)
	}
	if !groups[1].Rate.Equal(d("7")) || !groups[1].BaseHT.Equal(d("50")) {
		t.Errorf("7%% group base = %s, want 50", groups[1].BaseHT)
	}
}

func TestWithholdingPrompt(t *testing.T) {
	threshold := d("1000")

	if !CrossesWithholdingThreshold(d("1200"), d("900"), threshold) {
		t.Error("expected crossing from 1200 to 900")
	}
	if CrossesWithholdingThreshold(d("900"), d("800"), threshold) {
		t.Error("already below the threshold, no crossing")
	}
	if CrossesWithholdingThreshold(d("1200"), d("1100"), threshold) {
		t.Error("still above the threshold, no crossing")
	}

	t.Run("prompts at most once per session", func(t *testing.T) {
		var p WithholdingPrompt
		if !p.ShouldPrompt(d("1200"), d("900"), threshold) {
			t.Error("first crossing should prompt")
		}
		if p.ShouldPrompt(d("1200"), d("950"), threshold) {
			t.Error("second crossing in the same session should not prompt")
		}
	})
}

func TestComputeCreditOutcome(t *testing.T) {
	lines := []RemainingLine{remLine(1, "19", "200", "238")}

	t.Run("unpaid invoice, half credit", func(t *testing.T) {
		prorated, err := ProrateToTarget(lines, d("100"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		inv := CreditInvoiceState{NetPayable: d("238"), PaymentStatus: PaymentStatusUnpaid}
		got := ComputeCreditOutcome(inv, prorated, decimal.Zero)
		if !got.NewSubtotalHT.Equal(d("100")) || !got.NewTotalVAT.Equal(d("19")) || !got.NewTotalTTC.Equal(d("119")) {
			t.Errorf("new totals = %s/%s/%s, want 100/19/119", got.NewSubtotalHT, got.NewTotalVAT, got.NewTotalTTC)
		}
		if !got.NewNetPayable.Equal(d("119")) {
			t.Errorf("new net payable = %s, want 119", got.NewNetPayable)
		}
		if !got.CreditAmount.Equal(d("119")) {
			t.Errorf("credit amount = %s, want 119", got.CreditAmount)
		}
		if !got.FinancialCredit.IsZero() {
			t.Errorf("financial credit = %s, want 0 for unpaid", got.FinancialCredit)
		}
	})

	t.Run("paid invoice generates financial credit", func(t *testing.T) {
		prorated, err := ProrateToTarget(lines, d("100"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		inv := CreditInvoiceState{NetPayable: d("238"), PaidAmount: d("238"), PaymentStatus: PaymentStatusPaid}
		got := ComputeCreditOutcome(inv, prorated, decimal.Zero)
		// Paid 238, new payable 119: 119 owed back to the client.
		if !got.FinancialCredit.Equal(d("119")) {
			t.Errorf("financial credit = %s, want 119", got.FinancialCredit)
		}
	})

	t.Run("second credit note measures against the remainder", func(t *testing.T) {
		remaining := []RemainingLine{remLine(1, "19", "100", "119")}
		prorated, err := ProrateToTarget(remaining, d("50"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		inv := CreditInvoiceState{NetPayable: d("238"), PreviousTotalCredited: d("119"), PaymentStatus: PaymentStatusUnpaid}
		got := ComputeCreditOutcome(inv, prorated, decimal.Zero)
		// Remaining payable was 119; the new payable is 59.5.
		if !got.CreditAmount.Equal(d("59.5")) {
			t.Errorf("credit amount = %s, want 59.5", got.CreditAmount)
		}
	})

	t.Run("withholding kept on the reduced base", func(t *testing.T) {
		prorated, err := ProrateToTarget(lines, d("100"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		inv := CreditInvoiceState{NetPayable: d("236"), StampDuty: d("1"), PaymentStatus: PaymentStatusUnpaid}
		got := ComputeCreditOutcome(inv, prorated, d("1.5"))
		if !got.WithholdingAmount.Equal(d("1.5")) {
			t.Errorf("withholding = %s, want 1.5", got.WithholdingAmount)
		}
		// (100 - 1.5) + 19 + 1
		if !got.NewNetPayable.Equal(d("118.5")) {
			t.Errorf("new net payable = %s, want 118.5", got.NewNetPayable)
		}
	})

	t.Run("foreign invoice pays the HT subtotal", func(t *testing.T) {
		fl := []RemainingLine{{InvoiceLineID: 1, VATRate: d("19"), Foreign: true, RemainingHT: d("200"), RemainingTTC: d("200")}}
		prorated, err := ProrateToTarget(fl, d("120"))
		if err != nil {
			t.Fatalf("ProrateToTarget: %v", err)
		}
		inv := CreditInvoiceState{Foreign: true, NetPayable: d("200"), PaymentStatus: PaymentStatusUnpaid}
		got := ComputeCreditOutcome(inv, prorated, decimal.Zero)
		if !got.NewNetPayable.Equal(d("120")) {
			t.Errorf("new net payable = %s, want 120", got.NewNetPayable)
		}
		if !got.CreditAmount.Equal(d("80")) {
			t.Errorf("credit amount = %s, want 80", got.CreditAmount)
		}
	})
}
