// Package pricing derives stock balances and monetary values from approved
// ledger movements. Everything here is pure; callers fetch the rows.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Valuation selects which price a report multiplies quantities by.
type Valuation string

const (
	// ValuationCurrent prices every movement at the item's current base price and markup.
	ValuationCurrent Valuation = "current"
	// ValuationCaptured prices every movement at the unit price stored on the transaction.
	ValuationCaptured Valuation = "captured"
)

// ParseValuation validates a configured valuation mode.
func ParseValuation(raw string) (Valuation, error) {
	switch Valuation(raw) {
	case ValuationCurrent, "":
		return ValuationCurrent, nil
	case ValuationCaptured:
		return ValuationCaptured, nil
	default:
		return "", fmt.Errorf("pricing: unknown valuation %q", raw)
	}
}

// Movement is the pricing view of one stock transaction row.
type Movement struct {
	Inbound       bool
	Approved      bool
	Quantity      int64
	BasePrice     decimal.Decimal
	MarkupPercent decimal.Decimal
	CapturedPrice decimal.Decimal
}

// SellingPrice returns base * (1 + markup/100).
func SellingPrice(base, markupPercent decimal.Decimal) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(1).Add(markupPercent.Div(hundred)))
}

// UnitPrice is the price captured on a new transaction: the base price for
// stock in and the selling price for stock out.
func UnitPrice(inbound bool, base, markupPercent decimal.Decimal) decimal.Decimal {
	if inbound {
		return base
	}
	return SellingPrice(base, markupPercent)
}

// StockFromTotals returns approved in minus approved out.
func StockFromTotals(in, out int64) int64 {
	return in - out
}

// CurrentStock sums approved movements. Pending and rejected rows are ignored.
func CurrentStock(moves []Movement) int64 {
	var in, out int64
	for _, m := range moves {
		if !m.Approved {
			continue
		}
		if m.Inbound {
			in += m.Quantity
		} else {
			out += m.Quantity
		}
	}
	return StockFromTotals(in, out)
}

// CostValue sums quantity times base price over approved inbound movements.
func CostValue(moves []Movement, mode Valuation) decimal.Decimal {
	total := decimal.Zero
	for _, m := range moves {
		if !m.Approved || !m.Inbound {
			continue
		}
		price := m.BasePrice
		if mode == ValuationCaptured {
			price = m.CapturedPrice
		}
		total = total.Add(price.Mul(decimal.NewFromInt(m.Quantity)))
	}
	return total
}

// SalesValue sums quantity times selling price over approved outbound movements.
func SalesValue(moves []Movement, mode Valuation) decimal.Decimal {
	total := decimal.Zero
	for _, m := range moves {
		if !m.Approved || m.Inbound {
			continue
		}
		price := SellingPrice(m.BasePrice, m.MarkupPercent)
		if mode == ValuationCaptured {
			price = m.CapturedPrice
		}
		total = total.Add(price.Mul(decimal.NewFromInt(m.Quantity)))
	}
	return total
}

// Round2 rounds an amount to cents for display.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
