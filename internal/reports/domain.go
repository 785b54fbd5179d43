// Package reports aggregates approved ledger history into time-windowed
// profit and loss summaries.
package reports

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/pricing"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Window names a reporting period ending now.
type Window string

const (
	Weekly  Window = "weekly"
	Monthly Window = "monthly"
	Yearly  Window = "yearly"
)

// Windows lists every window in display order.
var Windows = []Window{Weekly, Monthly, Yearly}

// ParseWindow validates a window name.
func ParseWindow(raw string) (Window, error) {
	switch w := Window(raw); w {
	case Weekly, Monthly, Yearly:
		return w, nil
	default:
		return "", shared.Invalid("window", "must be weekly, monthly or yearly")
	}
}

// Range returns the inclusive bounds of the window for now. Weekly starts
// seven days before the start of today; monthly and yearly are calendar
// periods to date. Bounds use now's location.
func (w Window) Range(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	switch w {
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), now
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), now
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -7), now
	}
}

// Outcome classifies a report's net result.
type Outcome string

const (
	OutcomeProfit    Outcome = "profit"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakEven Outcome = "break_even"
	OutcomeNoData    Outcome = "no_data"
)

// Row is one approved transaction in a window with its item's pricing.
type Row struct {
	ItemID        int64
	ItemName      string
	Inbound       bool
	Quantity      int64
	BasePrice     decimal.Decimal
	MarkupPercent decimal.Decimal
	CapturedPrice decimal.Decimal
}

// ItemSummary aggregates one item's approved movements in a window.
type ItemSummary struct {
	ItemID          int64           `json:"item_id"`
	ItemName        string          `json:"item_name"`
	TotalInQty      int64           `json:"total_in_qty"`
	TotalOutQty     int64           `json:"total_out_qty"`
	TotalCostValue  decimal.Decimal `json:"total_cost_value"`
	TotalSalesValue decimal.Decimal `json:"total_sales_value"`
	Net             decimal.Decimal `json:"net"`
}

// Report is the summary of one window.
type Report struct {
	Window      Window            `json:"window"`
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Valuation   pricing.Valuation `json:"valuation"`
	Items       []ItemSummary     `json:"items"`
	TotalCost   decimal.Decimal   `json:"total_cost_value"`
	TotalSales  decimal.Decimal   `json:"total_sales_value"`
	Net         decimal.Decimal   `json:"net"`
	Outcome     Outcome           `json:"outcome"`
	Empty       bool              `json:"empty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// MarshalJSON emits money fields with exactly two decimal places.
func (s ItemSummary) MarshalJSON() ([]byte, error) {
	type plain ItemSummary
	return json.Marshal(struct {
		plain
		TotalCostValue  string `json:"total_cost_value"`
		TotalSalesValue string `json:"total_sales_value"`
		Net             string `json:"net"`
	}{plain(s), s.TotalCostValue.StringFixed(2), s.TotalSalesValue.StringFixed(2), s.Net.StringFixed(2)})
}

// MarshalJSON emits money fields with exactly two decimal places.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		TotalCost  string `json:"total_cost_value"`
		TotalSales string `json:"total_sales_value"`
		Net        string `json:"net"`
	}{plain(r), r.TotalCost.StringFixed(2), r.TotalSales.StringFixed(2), r.Net.StringFixed(2)})
}
