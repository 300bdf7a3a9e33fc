package core

import (
	"cmp"
	"slices"
)

// CategoryAmount is the total spent on one category over a period.
type CategoryAmount struct {
	CategoryID string
	Title      string
	Amount     Money
}

// Dashboard is the summary shown for one period: the overall total and its
// breakdown by category.
type Dashboard struct {
	Period     Period
	Total      Money
	ByCategory []CategoryAmount
}

// Summarize aggregates the expenses dated within p. Categories missing from
// index keep their id as title.
func Summarize(expenses []Expense, p Period, index CategoryIndex) Dashboard {
	sums := make(map[string]Money)
	var total Money
	for _, e := range expenses {
		if !p.Contains(e.Date) {
			continue
		}
		sums[e.CategoryID] = sums[e.CategoryID].Add(e.Amount)
		total = total.Add(e.Amount)
	}

	breakdown := make([]CategoryAmount, 0, len(sums))
	for id, amount := range sums {
		breakdown = append(breakdown, CategoryAmount{
			CategoryID: id,
			Title:      index.TitleOr(id, id),
			Amount:     amount,
		})
	}
	SortBreakdown(breakdown)

	return Dashboard{Period: p, Total: total, ByCategory: breakdown}
}

// SortBreakdown orders entries by amount descending, then title, then id, so
// that colours assigned by position stay stable between renders.
func SortBreakdown(entries []CategoryAmount) {
	slices.SortFunc(entries, func(a, b CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
}

// ResolveTitles fills empty titles from index, falling back to the id.
func (d Dashboard) ResolveTitles(index CategoryIndex) Dashboard {
	out := d
	out.ByCategory = make([]CategoryAmount, len(d.ByCategory))
	for i, c := range d.ByCategory {
		if c.Title == "" {
			c.Title = index.TitleOr(c.CategoryID, c.CategoryID)
		}
		out.ByCategory[i] = c
	}
	return out
}

// Share returns the fraction of total this entry represents, 0 when total is zero.
func (c CategoryAmount) Share(total Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(c.Amount.Cents) / float64(total.Cents)
}
