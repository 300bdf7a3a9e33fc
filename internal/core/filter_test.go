package core

import (
	"slices"
	"testing"
)

func sampleExpenses() []Expense {
	return []Expense{
		{ID: "1", CategoryID: "food", Description: "Lunch at Café", Amount: Money{Cents: 1500}, Date: NewDate(2024, 3, 1)},
		{ID: "2", CategoryID: "travel", Description: "Train ticket", Amount: Money{Cents: 4200}, Date: NewDate(2024, 3, 5)},
		{ID: "3", CategoryID: "food", Description: "Dinner", Amount: Money{Cents: 3000}, Date: NewDate(2024, 3, 10)},
		{ID: "4", CategoryID: "rent", Description: "March rent", Amount: Money{Cents: 90000}, Date: NewDate(2024, 2, 28)},
		{ID: "5", CategoryID: "food", Description: "CAFÉ latte", Amount: Money{Cents: 450}, Date: NewDate(2024, 4, 1)},
	}
}

func ids(expenses []Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}

func TestFilterExpenses(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"category", Filter{CategoryID: "food"}, []string{"1", "3", "5"}},
		{"category is exact", Filter{CategoryID: "foo"}, []string{}},
		{"description case-insensitive", Filter{Description: "café"}, []string{"1", "5"}},
		{"description substring", Filter{Description: "RENT"}, []string{"4"}},
		{"from inclusive", Filter{From: NewDate(2024, 3, 5)}, []string{"2", "3", "5"}},
		{"to inclusive", Filter{To: NewDate(2024, 3, 5)}, []string{"1", "2", "4"}},
		{"range", Filter{From: NewDate(2024, 3, 1), To: NewDate(2024, 3, 31)}, []string{"1", "2", "3"}},
		{"all constraints", Filter{CategoryID: "food", Description: "d", From: NewDate(2024, 3, 2), To: NewDate(2024, 3, 31)}, []string{"3"}},
		{"empty range", Filter{From: NewDate(2024, 5, 1), To: NewDate(2024, 4, 1)}, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(FilterExpenses(sampleExpenses(), tc.filter))
			if !slices.Equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterExpensesDoesNotMutateInput(t *testing.T) {
	in := sampleExpenses()
	before := slices.Clone(in)

	out := FilterExpenses(in, Filter{})
	if len(out) == 0 {
		t.Fatalf("expected a copy of the input")
	}
	out[0].Description = "changed"
	if !slices.Equal(in, before) {
		t.Fatalf("input was modified")
	}

	if got := FilterExpenses(nil, Filter{CategoryID: "food"}); got == nil || len(got) != 0 {
		t.Fatalf("empty input should give empty output, got %v", got)
	}
}

func TestFilterIdempotent(t *testing.T) {
	f := Filter{Description: "a", From: NewDate(2024, 3, 1)}
	once := FilterExpenses(sampleExpenses(), f)
	twice := FilterExpenses(once, f)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Fatalf("filtering twice changed the result: %v vs %v", ids(once), ids(twice))
	}
}

func TestFilterTransitions(t *testing.T) {
	var f Filter
	if f.HasActive() {
		t.Fatalf("zero filter should be inactive")
	}

	g := f.WithCategory("food").WithDescription("x").WithFrom(NewDate(2024, 1, 1)).WithTo(NewDate(2024, 2, 1))
	if f.HasActive() {
		t.Fatalf("transitions must not modify the receiver")
	}
	if !g.HasActive() || g.CategoryID != "food" || g.Description != "x" {
		t.Fatalf("unexpected state %+v", g)
	}
	if g.Clear().HasActive() {
		t.Fatalf("Clear should reset every constraint")
	}
	if !(Filter{}).WithTo(NewDate(2024, 1, 1)).HasActive() {
		t.Fatalf("a date bound alone is an active constraint")
	}
}

func TestFilterMatches(t *testing.T) {
	e := sampleExpenses()[0]
	if !(Filter{Description: "LUNCH"}).Matches(e) {
		t.Fatalf("expected match")
	}
	if (Filter{CategoryID: "travel"}).Matches(e) {
		t.Fatalf("expected no match")
	}
}
