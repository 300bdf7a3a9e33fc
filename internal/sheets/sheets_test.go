package sheets

import (
	"testing"
	"time"

	"expensedash/internal/core"
)

func testSnapshot() Snapshot {
	march := core.MonthPeriod(2024, time.March)
	return Snapshot{
		Expenses: []core.Expense{
			{ID: "1", CategoryID: "food", Description: "Lunch", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, time.March, 5)},
			{ID: "2", CategoryID: "gone", Description: "Old", Amount: core.Money{Cents: 250}, Date: core.NewDate(2024, time.March, 1)},
		},
		Index: core.CategoryIndex{"food": "Food"},
		Summary: core.Dashboard{
			Period: march,
			Total:  core.Money{Cents: 1250},
			ByCategory: []core.CategoryAmount{
				{CategoryID: "food", Title: "Food", Amount: core.Money{Cents: 1000}},
				{CategoryID: "gone", Amount: core.Money{Cents: 250}},
			},
		},
		Currency: "LKR",
		Taken:    time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
	}
}

func TestExpenseRows(t *testing.T) {
	rows := ExpenseRows(testSnapshot())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][3] != "Amount" {
		t.Errorf("unexpected header %v", rows[0])
	}
	want := []any{"2024-03-05", "Food", "Lunch", "10.00"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("row 1 col %d = %v, want %v", i, rows[1][i], v)
		}
	}
	if rows[2][1] != "gone" {
		t.Errorf("unknown category should fall back to id, got %v", rows[2][1])
	}
	if rows[2][3] != "2.50" {
		t.Errorf("amount = %v, want 2.50", rows[2][3])
	}
}

func TestExpenseRowsEmpty(t *testing.T) {
	rows := ExpenseRows(Snapshot{})
	if len(rows) != 1 {
		t.Fatalf("empty snapshot should produce only the header, got %d rows", len(rows))
	}
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(testSnapshot())

	if rows[0][1] != "2024-03" {
		t.Errorf("period = %v, want 2024-03", rows[0][1])
	}
	if rows[2][1] != "12.50" {
		t.Errorf("total = %v, want 12.50", rows[2][1])
	}
	if rows[3][1] != "2024-03-06T10:00:00Z" {
		t.Errorf("updated = %v", rows[3][1])
	}

	breakdown := rows[6:]
	if len(breakdown) != 2 {
		t.Fatalf("got %d category rows, want 2", len(breakdown))
	}
	if breakdown[0][0] != "Food" || breakdown[0][1] != "10.00" || breakdown[0][2] != "80.0 %" {
		t.Errorf("first category row = %v", breakdown[0])
	}
	if breakdown[1][0] != "gone" || breakdown[1][2] != "20.0 %" {
		t.Errorf("second category row = %v", breakdown[1])
	}
}
