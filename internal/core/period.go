package core

import (
	"fmt"
	"time"
)

// Period is an inclusive range of calendar dates.
type Period struct {
	Start Date
	End   Date
}

// MonthPeriod returns the period covering the whole of the given month.
func MonthPeriod(year int, month time.Month) Period {
	start := NewDate(year, month, 1)
	return Period{
		Start: start,
		End:   Date{Time: start.AddDate(0, 1, -1)},
	}
}

// CurrentMonth returns the month containing now, read in now's location.
func CurrentMonth(now time.Time) Period {
	return MonthPeriod(now.Year(), now.Month())
}

// ValidateMonth checks a 1-12 month number.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return nil
}

// Contains reports whether d falls within the period, bounds included.
func (p Period) Contains(d Date) bool {
	return d.Compare(p.Start) >= 0 && d.Compare(p.End) <= 0
}

// Until narrows the period so it ends no later than to. A zero to leaves the
// period unchanged. The result may be empty (End before Start).
func (p Period) Until(to Date) Period {
	if to.IsEmpty() || to.Compare(p.End) >= 0 {
		return p
	}
	p.End = to
	return p
}

// Year and Month identify the month the period starts in.
func (p Period) Year() int { return p.Start.Year() }

func (p Period) Month() time.Month { return p.Start.Month() }

// SumAmounts totals the amounts of expenses dated within p.
func SumAmounts(expenses []Expense, p Period) Money {
	var total Money
	for _, e := range expenses {
		if p.Contains(e.Date) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// SumForMonth totals the expenses dated in the given calendar month.
func SumForMonth(expenses []Expense, year int, month time.Month) Money {
	return SumAmounts(expenses, MonthPeriod(year, month))
}
