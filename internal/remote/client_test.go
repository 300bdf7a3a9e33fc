package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/ports"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListExpensesSendsDateToAndSkipsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/expenses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("dateTo"); got != "2024-03-31" {
			t.Errorf("dateTo = %q", got)
		}
		_, _ = io.WriteString(w, `[
			{"_id":"1","type":"food","description":"Lunch","amount":10,"date":"2024-03-01"},
			{"_id":"2","type":"food","description":"Broken"}
		]`)
	})

	got, err := c.ListExpenses(context.Background(), ports.ListOptions{DateTo: core.NewDate(2024, 3, 31)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" || got[0].Amount.Cents != 1000 {
		t.Fatalf("unexpected expenses %+v", got)
	}
}

func TestIdempotentRequestsRetryOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"_id":"c1","title":"Food"}]`)
	})

	cats, err := c.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("expected success after one retry, got %v", err)
	}
	if calls.Load() != 2 || len(cats) != 1 || cats[0].Title != "Food" {
		t.Fatalf("calls=%d cats=%+v", calls.Load(), cats)
	}
}

func TestRetryGivesUpAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.DeleteExpense(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected APIError 503, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls.Load())
	}
}

func TestCreateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.CreateExpense(context.Background(), core.Expense{
		CategoryID: "food", Description: "x", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("POST must not be retried, got %d attempts", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"no such expense"}`)
	})

	_, err := c.UpdateExpense(context.Background(), "missing", core.Expense{})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("404 should map to ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestCreateSendsFormAndReadsSavedRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["amount"] != 12.5 || body["type"] != "food" || body["date"] != "2024-02-03" {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"_id":"new-1","type":"food","description":"Tea","amount":12.5,"date":"2024-02-03T00:00:00.000Z"}`)
	})

	saved, err := c.CreateExpense(context.Background(), core.Expense{
		CategoryID: "food", Description: "Tea", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 2, 3),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if saved.ID != "new-1" || saved.Date != core.NewDate(2024, 2, 3) {
		t.Fatalf("unexpected saved record %+v", saved)
	}
}

func TestReadDashboardUsesZeroBasedMonth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/expenses/dashboard" || q.Get("month") != "0" || q.Get("year") != "2024" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"month":0,"year":2024,"totalAmount":30,"categoryBreakdown":[{"_id":"food","total":30}]}`)
	})

	d, err := c.ReadDashboard(context.Background(), ports.DashboardQuery{Year: 2024, Month: time.January})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Total.Cents != 3000 || len(d.ByCategory) != 1 || d.Period.Month() != time.January {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New("ftp://example.com"); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}
