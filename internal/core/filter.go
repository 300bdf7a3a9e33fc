package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter is the dashboard's search state. Empty fields place no constraint.
// Transitions return a new value and never modify the receiver.
type Filter struct {
	CategoryID  string
	Description string
	From        Date // inclusive
	To          Date // inclusive
}

func (f Filter) WithCategory(id string) Filter {
	f.CategoryID = id
	return f
}

func (f Filter) WithDescription(s string) Filter {
	f.Description = s
	return f
}

func (f Filter) WithFrom(d Date) Filter {
	f.From = d
	return f
}

func (f Filter) WithTo(d Date) Filter {
	f.To = d
	return f
}

// Clear resets every constraint.
func (f Filter) Clear() Filter {
	return Filter{}
}

// HasActive reports whether any constraint is set.
func (f Filter) HasActive() bool {
	return f.CategoryID != "" || f.Description != "" || !f.From.IsEmpty() || !f.To.IsEmpty()
}

// Matches reports whether e satisfies every active constraint.
func (f Filter) Matches(e Expense) bool {
	return f.matcher()(e)
}

// matcher folds the description needle once so that filtering a list does
// not redo it per record. cases.Caser is not safe for concurrent use, so each
// matcher owns its own.
func (f Filter) matcher() func(Expense) bool {
	var (
		fold   = cases.Fold()
		needle string
	)
	if f.Description != "" {
		needle = fold.String(f.Description)
	}

	return func(e Expense) bool {
		if f.CategoryID != "" && e.CategoryID != f.CategoryID {
			return false
		}
		if !f.From.IsEmpty() && e.Date.Compare(f.From) < 0 {
			return false
		}
		if !f.To.IsEmpty() && e.Date.Compare(f.To) > 0 {
			return false
		}
		if f.Description != "" && !strings.Contains(fold.String(e.Description), needle) {
			return false
		}
		return true
	}
}

// FilterExpenses returns the expenses matching f in their original order.
// The result is always a new slice; the input is never modified.
func FilterExpenses(expenses []Expense, f Filter) []Expense {
	out := make([]Expense, 0, len(expenses))
	if !f.HasActive() {
		return append(out, expenses...)
	}

	match := f.matcher()
	for _, e := range expenses {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}
