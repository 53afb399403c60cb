package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func stockLine(productID int64, qty, current string) StockLine {
	return StockLine{
		ProductID:    productID,
		Quantity:     d(qty),
		CurrentStock: d(current),
	}
}

func TestMaxQuantityAt(t *testing.T) {
	t.Run("single line capped by stock", func(t *testing.T) {
		lines := []StockLine{stockLine(1, "3", "5")}
		got := MaxQuantityAt(lines, 0, nil)
		if got == nil || !got.Equal(d("5")) {
			t.Errorf("max = %v, want 5", got)
		}
	})

	t.Run("two lines share the cap", func(t *testing.T) {
		// 5 in stock, two lines of 3: the second line can hold at most 2.
		lines := []StockLine{stockLine(1, "3", "5"), stockLine(1, "3", "5")}
		got := MaxQuantityAt(lines, 1, nil)
		if got == nil || !got.Equal(d("2")) {
			t.Errorf("max = %v, want 2", got)
		}
	})

	t.Run("floor at one even when oversubscribed", func(t *testing.T) {
		lines := []StockLine{stockLine(1, "5", "4"), stockLine(1, "5", "4")}
		got := MaxQuantityAt(lines, 1, nil)
		if got == nil || !got.Equal(d("1")) {
			t.Errorf("max = %v, want 1", got)
		}
	})

	t.Run("unlimited stock is unbounded", func(t *testing.T) {
		lines := []StockLine{{ProductID: 1, Quantity: d("100"), Unlimited: true}}
		if got := MaxQuantityAt(lines, 0, nil); got != nil {
			t.Errorf("max = %s, want nil", got)
		}
	})

	t.Run("out-of-stock sale allowed is unbounded", func(t *testing.T) {
		lines := []StockLine{{ProductID: 1, Quantity: d("100"), AllowOutOfStock: true, CurrentStock: d("2")}}
		if got := MaxQuantityAt(lines, 0, nil); got != nil {
			t.Errorf("max = %s, want nil", got)
		}
	})

	t.Run("reserved stock shrinks the cap", func(t *testing.T) {
		lines := []StockLine{{ProductID: 1, Quantity: d("1"), CurrentStock: d("5"), ReservedStock: d("3")}}
		got := MaxQuantityAt(lines, 0, nil)
		if got == nil || !got.Equal(d("2")) {
			t.Errorf("max = %v, want 2", got)
		}
	})

	t.Run("reservation line returns its fixed quantity", func(t *testing.T) {
		q := d("4")
		lines := []StockLine{{ProductID: 1, Quantity: d("4"), CurrentStock: d("1"), ReservationQty: &q}}
		got := MaxQuantityAt(lines, 0, nil)
		if got == nil || !got.Equal(d("4")) {
			t.Errorf("max = %v, want 4", got)
		}
	})

	t.Run("edit mode hands back original quantities", func(t *testing.T) {
		// Stock already decremented to 2 when the invoice was saved with 3
		// units; editing should see 2 + 3 = 5 as the cap.
		lines := []StockLine{stockLine(1, "3", "2")}
		originals := map[int64]decimal.Decimal{1: d("3")}
		got := MaxQuantityAt(lines, 0, originals)
		if got == nil || !got.Equal(d("5")) {
			t.Errorf("max = %v, want 5", got)
		}
	})
}

func TestClampQuantityAt(t *testing.T) {
	t.Run("clips to the shared cap", func(t *testing.T) {
		lines := []StockLine{stockLine(1, "3", "5"), stockLine(1, "3", "5")}
		got := ClampQuantityAt(lines, 1, d("3"), nil)
		if !got.Equal(d("2")) {
			t.Errorf("clamped = %s, want 2", got)
		}
	})

	t.Run("never below one", func(t *testing.T) {
		lines := []StockLine{stockLine(1, "1", "5")}
		got := ClampQuantityAt(lines, 0, d("0"), nil)
		if !got.Equal(d("1")) {
			t.Errorf("clamped = %s, want 1", got)
		}
	})

	t.Run("within bounds passes through", func(t *testing.T) {
		lines := []StockLine{stockLine(1, "2", "5")}
		got := ClampQuantityAt(lines, 0, d("4"), nil)
		if !got.Equal(d("4")) {
			t.Errorf("clamped = %s, want 4", got)
		}
	})

	t.Run("reservation line ignores edits", func(t *testing.T) {
		q := d("4")
		lines := []StockLine{{ProductID: 1, Quantity: d("4"), ReservationQty: &q}}
		got := ClampQuantityAt(lines, 0, d("10"), nil)
		if !got.Equal(d("4")) {
			t.Errorf("clamped = %s, want 4", got)
		}
	})
}

func TestStockBubbles(t *testing.T) {
	lines := []StockLine{
		stockLine(1, "3", "10"),
		stockLine(2, "1", "4"),
		stockLine(1, "2", "10"),
	}
	bubbles := StockBubbles(lines, nil)
	if len(bubbles) != 2 {
		t.Fatalf("got %d bubbles, want 2", len(bubbles))
	}
	if bubbles[0].ProductID != 1 || !bubbles[0].QuantityUsed.Equal(d("5")) || !bubbles[0].RemainingStock.Equal(d("5")) {
		t.Errorf("bubble 1 = %+v, want used 5 remaining 5", bubbles[0])
	}
	if bubbles[1].ProductID != 2 || !bubbles[1].RemainingStock.Equal(d("3")) {
		t.Errorf("bubble 2 = %+v, want remaining 3", bubbles[1])
	}

	t.Run("unlimited products excluded", func(t *testing.T) {
		b := StockBubbles([]StockLine{{ProductID: 9, Quantity: d("7"), Unlimited: true}}, nil)
		if len(b) != 0 {
			t.Errorf("got %d bubbles, want 0", len(b))
		}
	})

	t.Run("reservation lines count usage but not remainder", func(t *testing.T) {
		q := d("2")
		b := StockBubbles([]StockLine{
			{ProductID: 1, Quantity: d("2"), CurrentStock: d("10"), ReservedStock: d("2"), ReservationQty: &q},
		}, nil)
		if len(b) != 1 {
			t.Fatalf("got %d bubbles, want 1", len(b))
		}
		if !b[0].QuantityUsed.Equal(d("2")) || !b[0].RemainingStock.Equal(d("8")) {
			t.Errorf("bubble = %+v, want used 2 remaining 8", b[0])
		}
	})
}
