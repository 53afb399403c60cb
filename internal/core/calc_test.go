package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeLineTotal(t *testing.T) {
	tests := []struct {
		name    string
		in      LineInput
		foreign bool
		wantHT  string
		wantVAT string
		wantTTC string
	}{
		{
			name:    "two units at 100 with 19% VAT",
			in:      LineInput{Quantity: d("2"), UnitPriceHT: d("100"), VATRate: d("19")},
			wantHT:  "200", wantVAT: "38", wantTTC: "238",
		},
		{
			name:    "10% discount before VAT",
			in:      LineInput{Quantity: d("1"), UnitPriceHT: d("100"), VATRate: d("19"), DiscountPercent: d("10")},
			wantHT:  "90", wantVAT: "17.1", wantTTC: "107.1",
		},
		{
			name:    "zero rated line",
			in:      LineInput{Quantity: d("3"), UnitPriceHT: d("50"), VATRate: d("0")},
			wantHT:  "150", wantVAT: "0", wantTTC: "150",
		},
		{
			name:    "foreign client accrues no VAT",
			in:      LineInput{Quantity: d("2"), UnitPriceHT: d("100"), VATRate: d("19")},
			foreign: true,
			wantHT:  "200", wantVAT: "0", wantTTC: "200",
		},
		{
			name:    "fractional quantity",
			in:      LineInput{Quantity: d("1.5"), UnitPriceHT: d("10.500"), VATRate: d("7")},
			wantHT:  "15.75", wantVAT: "1.1025", wantTTC: "16.8525",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLineTotal(tt.in, tt.foreign)
			if !got.HT.Equal(d(tt.wantHT)) {
				t.Errorf("HT = %s, want %s", got.HT, tt.wantHT)
			}
			if !got.VAT.Equal(d(tt.wantVAT)) {
				t.Errorf("VAT = %s, want %s", got.VAT, tt.wantVAT)
			}
			if !got.TTC.Equal(d(tt.wantTTC)) {
				t.Errorf("TTC = %s, want %s", got.TTC, tt.wantTTC)
			}
		})
	}
}

func TestValidateLineInput(t *testing.T) {
	maxDiscount := d("50")
	tests := []struct {
		name    string
		in      LineInput
		wantErr bool
	}{
		{"valid", LineInput{Quantity: d("1"), UnitPriceHT: d("10"), VATRate: d("19")}, false},
		{"zero quantity", LineInput{Quantity: d("0"), UnitPriceHT: d("10"), VATRate: d("19")}, true},
		{"negative quantity", LineInput{Quantity: d("-1"), UnitPriceHT: d("10"), VATRate: d("19")}, true},
		{"negative price", LineInput{Quantity: d("1"), UnitPriceHT: d("-5"), VATRate: d("19")}, true},
		{"illegal VAT rate", LineInput{Quantity: d("1"), UnitPriceHT: d("10"), VATRate: d("18")}, true},
		{"discount over ceiling", LineInput{Quantity: d("1"), UnitPriceHT: d("10"), VATRate: d("19"), DiscountPercent: d("51")}, true},
		{"discount at ceiling", LineInput{Quantity: d("1"), UnitPriceHT: d("10"), VATRate: d("19"), DiscountPercent: d("50")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLineInput(tt.in, maxDiscount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLineInput() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregateTotals(t *testing.T) {
	lines := []LineInput{{Quantity: d("2"), UnitPriceHT: d("100"), VATRate: d("19")}}

	t.Run("no stamp", func(t *testing.T) {
		got := AggregateTotals(lines, false, StampDuty{}, nil)
		if !got.SubtotalHT.Equal(d("200")) || !got.TotalVAT.Equal(d("38")) || !got.TotalTTC.Equal(d("238")) {
			t.Errorf("totals = %s/%s/%s, want 200/38/238", got.SubtotalHT, got.TotalVAT, got.TotalTTC)
		}
		if !got.NetPayable.Equal(d("238")) {
			t.Errorf("NetPayable = %s, want 238", got.NetPayable)
		}
	})

	t.Run("stamp adds one dinar", func(t *testing.T) {
		got := AggregateTotals(lines, false, StampDuty{Enabled: true, Amount: d("1.000")}, nil)
		if !got.StampDuty.Equal(d("1.000")) {
			t.Errorf("StampDuty = %s, want 1.000", got.StampDuty)
		}
		if !got.NetPayable.Equal(d("239.000")) {
			t.Errorf("NetPayable = %s, want 239.000", got.NetPayable)
		}
	})

	t.Run("foreign skips VAT and stamp", func(t *testing.T) {
		got := AggregateTotals(lines, true, StampDuty{Enabled: true, Amount: d("1.000")}, nil)
		if !got.TotalVAT.IsZero() || !got.StampDuty.IsZero() {
			t.Errorf("foreign invoice got VAT %s stamp %s, want zero", got.TotalVAT, got.StampDuty)
		}
		if !ForeignNetPayable(got).Equal(d("200")) {
			t.Errorf("ForeignNetPayable = %s, want 200", ForeignNetPayable(got))
		}
	})

	t.Run("VAT breakdown groups by rate", func(t *testing.T) {
		mixed := []LineInput{
			{Quantity: d("1"), UnitPriceHT: d("100"), VATRate: d("19")},
			{Quantity: d("1"), UnitPriceHT: d("100"), VATRate: d("7")},
			{Quantity: d("1"), UnitPriceHT: d("50"), VATRate: d("19")},
		}
		got := AggregateTotals(mixed, false, StampDuty{}, nil)
		if len(got.VATBreakdown) != 2 {
			t.Fatalf("breakdown has %d groups, want 2", len(got.VATBreakdown))
		}
		g19 := got.VATBreakdown[0]
		if !g19.Rate.Equal(d("19")) || !g19.BaseHT.Equal(d("150")) || !g19.Amount.Equal(d("28.5")) {
			t.Errorf("19%% group = rate %s base %s amount %s, want 19/150/28.5", g19.Rate, g19.BaseHT, g19.Amount)
		}
		g7 := got.VATBreakdown[1]
		if !g7.Rate.Equal(d("7")) || !g7.BaseHT.Equal(d("100")) || !g7.Amount.Equal(d("7")) {
			t.Errorf("7%% group = rate %s base %s amount %s, want 7/100/7", g7.Rate, g7.BaseHT, g7.Amount)
		}
	})

	t.Run("discount totals", func(t *testing.T) {
		discounted := []LineInput{{Quantity: d("2"), UnitPriceHT: d("100"), VATRate: d("19"), DiscountPercent: d("10")}}
		got := AggregateTotals(discounted, false, StampDuty{}, nil)
		if !got.SubtotalHT.Equal(d("180")) {
			t.Errorf("SubtotalHT = %s, want 180", got.SubtotalHT)
		}
		if !got.TotalDiscount.Equal(d("20")) {
			t.Errorf("TotalDiscount = %s, want 20", got.TotalDiscount)
		}
	})
}

func TestAggregateTotalsCustomTaxes(t *testing.T) {
	lines := []LineInput{{Quantity: d("1"), UnitPriceHT: d("100"), VATRate: d("0")}}
	stamp := StampDuty{Enabled: true, Amount: d("1")}

	t.Run("fixed tax before stamp", func(t *testing.T) {
		taxes := []CustomTax{{Name: "fodec", ValueType: TaxValueFixed, Value: d("5"), Application: TaxApplicationAdd, Order: TaxOrderBeforeStamp}}
		got := AggregateTotals(lines, false, stamp, taxes)
		// 100 + 5 + 1
		if !got.NetPayable.Equal(d("106")) {
			t.Errorf("NetPayable = %s, want 106", got.NetPayable)
		}
	})

	t.Run("percentage applies to running total", func(t *testing.T) {
		taxes := []CustomTax{
			{Name: "surcharge", ValueType: TaxValueFixed, Value: d("10"), Application: TaxApplicationAdd, Order: TaxOrderBeforeStamp},
			{Name: "levy", ValueType: TaxValuePercentage, Value: d("10"), Application: TaxApplicationAdd, Order: TaxOrderBeforeStamp},
		}
		got := AggregateTotals(lines, false, stamp, taxes)
		// (100 + 10) * 1.10 = 121, then stamp -> 122
		if !got.NetPayable.Equal(d("122")) {
			t.Errorf("NetPayable = %s, want 122", got.NetPayable)
		}
		if len(got.AppliedTaxes) != 2 {
			t.Fatalf("applied %d taxes, want 2", len(got.AppliedTaxes))
		}
		if !got.AppliedTaxes[1].Amount.Equal(d("11")) {
			t.Errorf("percentage tax amount = %s, want 11", got.AppliedTaxes[1].Amount)
		}
	})

	t.Run("after-stamp tax sees the stamp", func(t *testing.T) {
		taxes := []CustomTax{{Name: "levy", ValueType: TaxValuePercentage, Value: d("10"), Application: TaxApplicationAdd, Order: TaxOrderAfterStamp}}
		got := AggregateTotals(lines, false, stamp, taxes)
		// (100 + 1) * 1.10 = 111.1
		if !got.NetPayable.Equal(d("111.1")) {
			t.Errorf("NetPayable = %s, want 111.1", got.NetPayable)
		}
	})

	t.Run("deduct subtracts", func(t *testing.T) {
		taxes := []CustomTax{{Name: "rebate", ValueType: TaxValueFixed, Value: d("3"), Application: TaxApplicationDeduct, Order: TaxOrderBeforeStamp}}
		got := AggregateTotals(lines, false, stamp, taxes)
		if !got.NetPayable.Equal(d("98")) {
			t.Errorf("NetPayable = %s, want 98", got.NetPayable)
		}
	})
}

func TestApplyWithholding(t *testing.T) {
	lines := []LineInput{{Quantity: d("2"), UnitPriceHT: d("100"), VATRate: d("19")}}
	totals := AggregateTotals(lines, false, StampDuty{Enabled: true, Amount: d("1")}, nil)

	t.Run("1.5 percent on the HT base", func(t *testing.T) {
		got := ApplyWithholding(totals, d("1.5"))
		if !got.Amount.Equal(d("3")) {
			t.Errorf("withholding = %s, want 3", got.Amount)
		}
		// (200 - 3) + 38 + 1
		if !got.AdjustedNetPayable.Equal(d("236")) {
			t.Errorf("adjusted = %s, want 236", got.AdjustedNetPayable)
		}
	})

	t.Run("zero rate is a no-op", func(t *testing.T) {
		got := ApplyWithholding(totals, decimal.Zero)
		if !got.Amount.IsZero() || !got.AdjustedNetPayable.Equal(totals.NetPayable) {
			t.Errorf("zero rate changed the totals: %s / %s", got.Amount, got.AdjustedNetPayable)
		}
	})
}

func TestToBaseCurrency(t *testing.T) {
	got := ToBaseCurrency(d("100"), d("3.15"))
	if !got.Equal(d("315")) {
		t.Errorf("ToBaseCurrency = %s, want 315", got)
	}
}

func TestRemainingBalance(t *testing.T) {
	if got := RemainingBalance(d("236"), d("100")); !got.Equal(d("136")) {
		t.Errorf("RemainingBalance = %s, want 136", got)
	}
	if got := RemainingBalance(d("236"), d("300")); !got.IsZero() {
		t.Errorf("overpaid balance = %s, want 0", got)
	}
}

func TestPaymentStatusFor(t *testing.T) {
	tests := []struct {
		paid, net string
		want      PaymentStatus
	}{
		{"0", "236", PaymentStatusUnpaid},
		{"100", "236", PaymentStatusPartial},
		{"236", "236", PaymentStatusPaid},
		{"300", "236", PaymentStatusPaid},
	}
	for _, tt := range tests {
		if got := PaymentStatusFor(d(tt.paid), d(tt.net)); got != tt.want {
			t.Errorf("PaymentStatusFor(%s, %s) = %s, want %s", tt.paid, tt.net, got, tt.want)
		}
	}
}
