package wire

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"expensedash/internal/core"
)

func TestDecodeExpensesSkipsMalformed(t *testing.T) {
	body := []byte(`[
		{"_id":"a","type":"food","description":"Lunch","amount":12.5,"date":"2024-03-01"},
		{"_id":"b","type":"food","description":"No amount","date":"2024-03-02"},
		{"type":"food","description":"No id","amount":1,"date":"2024-03-02"},
		{"_id":"c","type":"rent","description":"Bad date","amount":1,"date":"someday"},
		"not an object",
		{"_id":"d","type":"rent","description":"String amount","amount":"900.005","date":"2024-03-05T18:45:00Z"}
	]`)

	got, skipped, err := DecodeExpenses(body, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 4 {
		t.Fatalf("skipped = %d, want 4", skipped)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "d" {
		t.Fatalf("unexpected records %+v", got)
	}
	if got[0].Amount.Cents != 1250 || got[0].CategoryID != "food" {
		t.Fatalf("unexpected first record %+v", got[0])
	}
	if got[1].Amount.Cents != 90001 {
		t.Fatalf("amount should round half away from zero, got %d", got[1].Amount.Cents)
	}
}

func TestDecodeExpensesRejectsNonArray(t *testing.T) {
	if _, _, err := DecodeExpenses([]byte(`{"error":"nope"}`), time.UTC); err == nil {
		t.Fatalf("expected error for non-array body")
	}
}

func TestParseDateUsesLocation(t *testing.T) {
	colombo := time.FixedZone("LKT", 5*3600+1800)
	cases := []struct {
		in   string
		loc  *time.Location
		want core.Date
	}{
		{"2024-03-05", colombo, core.NewDate(2024, 3, 5)},
		{"2024-03-05T00:00:00.000Z", time.UTC, core.NewDate(2024, 3, 5)},
		{"2024-03-04T20:00:00Z", colombo, core.NewDate(2024, 3, 5)},
		{"2024-03-04T20:00:00Z", nil, core.NewDate(2024, 3, 4)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in, tc.loc)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseDate("", time.UTC); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestAmountEncodesAsNumber(t *testing.T) {
	form := FormFromExpense(core.Expense{
		CategoryID:  "food",
		Description: "Tea",
		Amount:      core.Money{Cents: 123450},
		Date:        core.NewDate(2024, 1, 2),
	})
	data, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"food","description":"Tea","amount":1234.5,"date":"2024-01-02"}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestMonthParam(t *testing.T) {
	if MonthParam(time.January) != 0 || MonthParam(time.December) != 11 {
		t.Fatalf("months should be zero-based on the wire")
	}
	if m, err := MonthFromParam(2); err != nil || m != time.March {
		t.Fatalf("MonthFromParam(2) = %v, %v", m, err)
	}
	for _, n := range []int{-1, 12} {
		if _, err := MonthFromParam(n); !errors.Is(err, core.ErrInvalidMonth) {
			t.Fatalf("MonthFromParam(%d) should fail, got %v", n, err)
		}
	}
}

func TestDashboardConversion(t *testing.T) {
	body := []byte(`{"month":2,"year":2024,"totalAmount":150.75,"categoryBreakdown":[
		{"_id":"food","title":"Food","total":50.75},
		{"_id":"rent","total":100}
	]}`)
	var w Dashboard
	if err := json.Unmarshal(body, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, err := w.ToDashboard(2024, time.March)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if d.Total.Cents != 15075 || len(d.ByCategory) != 2 {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if d.ByCategory[0].CategoryID != "rent" {
		t.Fatalf("breakdown should be sorted by amount, got %+v", d.ByCategory)
	}

	back := FromDashboard(d)
	if back.Month != 2 || back.Year != 2024 || back.TotalAmount.String() != "150.75" {
		t.Fatalf("unexpected wire dashboard %+v", back)
	}
}
