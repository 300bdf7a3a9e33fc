package chart

import (
	"github.com/shopspring/decimal"

	"expensedash/internal/core"
)

// Slice is one wedge of the category pie.
type Slice struct {
	CategoryID   string
	Label        string
	Amount       core.Money
	Value        float64 // Amount in currency units
	Color        string  // "#rrggbb"
	Percent      float64
	PercentLabel string // e.g. "12.5 %"
}

// Pie is the category breakdown of a dashboard ready for rendering.
type Pie struct {
	Total  core.Money
	Slices []Slice
}

// NewPie builds the pie for d. Slice i gets colour i of a scale sized to the
// number of categories, so the same breakdown always yields the same colours.
func NewPie(d core.Dashboard) Pie {
	colors := HexScale(len(d.ByCategory))
	slices := make([]Slice, len(d.ByCategory))
	for i, c := range d.ByCategory {
		slices[i] = Slice{
			CategoryID:   c.CategoryID,
			Label:        c.Title,
			Amount:       c.Amount,
			Value:        c.Amount.Float(),
			Color:        colors[i],
			Percent:      c.Share(d.Total) * 100,
			PercentLabel: PercentLabel(c.Amount, d.Total),
		}
	}
	return Pie{Total: d.Total, Slices: slices}
}

// PercentLabel renders part as a percentage of total with one decimal,
// followed by " %". A zero total renders as "0.0 %".
func PercentLabel(part, total core.Money) string {
	if total.Cents == 0 {
		return "0.0 %"
	}
	pct := decimal.NewFromInt(part.Cents).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total.Cents), 4)
	return pct.StringFixed(1) + " %"
}
