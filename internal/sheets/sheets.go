// Package sheets describes the spreadsheet export: the snapshot a run writes
// and the rows each tab receives.
package sheets

import (
	"context"
	"fmt"
	"time"

	"expensedash/internal/chart"
	"expensedash/internal/core"
)

// Snapshot is everything one export run writes.
type Snapshot struct {
	Expenses []core.Expense
	Index    core.CategoryIndex
	Summary  core.Dashboard
	Currency string
	Taken    time.Time
}

// Exporter replaces the exported tabs with the content of a snapshot.
type Exporter interface {
	Export(ctx context.Context, snap Snapshot) error
}

var (
	ExpenseHeader  = []any{"Date", "Category", "Description", "Amount"}
	CategoryHeader = []any{"Category", "Amount", "Share"}
)

// ExpenseRows returns the expense tab: a header and one row per expense, in
// snapshot order. Unknown categories show their id.
func ExpenseRows(s Snapshot) [][]any {
	rows := make([][]any, 0, len(s.Expenses)+1)
	rows = append(rows, ExpenseHeader)
	for _, e := range s.Expenses {
		rows = append(rows, []any{
			e.Date.String(),
			s.Index.TitleOr(e.CategoryID, e.CategoryID),
			e.Description,
			amountCell(e.Amount),
		})
	}
	return rows
}

// SummaryRows returns the summary tab: period and total, then the category
// breakdown with each category's share of the total.
func SummaryRows(s Snapshot) [][]any {
	d := s.Summary
	rows := [][]any{
		{"Period", fmt.Sprintf("%04d-%02d", d.Period.Year(), int(d.Period.Month()))},
		{"Currency", s.Currency},
		{"Total", amountCell(d.Total)},
		{"Updated", s.Taken.UTC().Format(time.RFC3339)},
		{},
		CategoryHeader,
	}
	for _, c := range d.ByCategory {
		title := c.Title
		if title == "" {
			title = s.Index.TitleOr(c.CategoryID, c.CategoryID)
		}
		rows = append(rows, []any{title, amountCell(c.Amount), chart.PercentLabel(c.Amount, d.Total)})
	}
	return rows
}

func amountCell(m core.Money) string {
	return m.Decimal().StringFixed(2)
}
