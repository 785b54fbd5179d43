package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/pricing"
)

// Aggregate builds per-item and overall totals from approved rows. Amounts
// are rounded to cents only on output.
func Aggregate(rows []Row, mode pricing.Valuation) ([]ItemSummary, decimal.Decimal, decimal.Decimal) {
	type bucket struct {
		name  string
		moves []pricing.Movement
	}
	buckets := map[int64]*bucket{}
	for _, r := range rows {
		b, ok := buckets[r.ItemID]
		if !ok {
			b = &bucket{name: r.ItemName}
			buckets[r.ItemID] = b
		}
		b.moves = append(b.moves, pricing.Movement{
			Inbound:       r.Inbound,
			Approved:      true,
			Quantity:      r.Quantity,
			BasePrice:     r.BasePrice,
			MarkupPercent: r.MarkupPercent,
			CapturedPrice: r.CapturedPrice,
		})
	}

	items := make([]ItemSummary, 0, len(buckets))
	totalCost, totalSales := decimal.Zero, decimal.Zero
	for id, b := range buckets {
		var in, out int64
		for _, m := range b.moves {
			if m.Inbound {
				in += m.Quantity
			} else {
				out += m.Quantity
			}
		}
		cost := pricing.CostValue(b.moves, mode)
		sales := pricing.SalesValue(b.moves, mode)
		totalCost = totalCost.Add(cost)
		totalSales = totalSales.Add(sales)
		items = append(items, ItemSummary{
			ItemID:          id,
			ItemName:        b.name,
			TotalInQty:      in,
			TotalOutQty:     out,
			TotalCostValue:  pricing.Round2(cost),
			TotalSalesValue: pricing.Round2(sales),
			Net:             pricing.Round2(sales.Sub(cost)),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ItemName != items[j].ItemName {
			return items[i].ItemName < items[j].ItemName
		}
		return items[i].ItemID < items[j].ItemID
	})
	return items, totalCost, totalSales
}

// Classify maps a net amount to an outcome.
func Classify(net decimal.Decimal) Outcome {
	switch net.Sign() {
	case 1:
		return OutcomeProfit
	case -1:
		return OutcomeLoss
	default:
		return OutcomeBreakEven
	}
}
