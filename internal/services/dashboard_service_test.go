package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensedash/internal/cache"
	"expensedash/internal/core"
	"expensedash/internal/ports"
)

func newTestDashboard(store *countingStore) *DashboardService {
	s := NewDashboardService(store, DashboardConfig{Currency: "LKR", Locale: "en-LK"}, nil, nil)
	s.now = func() time.Time { return time.Date(2024, time.March, 25, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestDashboardService_ViewAppliesFilter(t *testing.T) {
	store := newCountingStore()
	ids := seedScenario(store)
	s := newTestDashboard(store)

	view, err := s.View(context.Background(), core.Filter{}.WithFrom(core.NewDate(2024, time.March, 1)))
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	if !view.HasActive {
		t.Error("HasActive should be true with a lower bound set")
	}
	if len(view.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(view.Rows))
	}
	// The backend lists newest first and the filter keeps that order.
	if view.Rows[0].ID != ids[1] || view.Rows[1].ID != ids[0] {
		t.Errorf("unexpected row order: %s, %s", view.Rows[0].ID, view.Rows[1].ID)
	}
	if view.Rows[0].Category != "Transport" || view.Rows[1].Category != "Food" {
		t.Errorf("titles not resolved: %q, %q", view.Rows[0].Category, view.Rows[1].Category)
	}
	if view.Rows[1].AmountLabel != "LKR 10.00" {
		t.Errorf("AmountLabel = %q, want LKR 10.00", view.Rows[1].AmountLabel)
	}
	if view.FilteredTotal.Cents != 1500 {
		t.Errorf("FilteredTotal = %d, want 1500", view.FilteredTotal.Cents)
	}
	if view.MonthTotal.Cents != 1500 || view.MonthTotalLabel != "LKR 15.00" {
		t.Errorf("MonthTotal = %d (%q), want 1500 (LKR 15.00)", view.MonthTotal.Cents, view.MonthTotalLabel)
	}
	if len(view.Categories) != 2 {
		t.Errorf("expected the category list for the filter form, got %d", len(view.Categories))
	}
}

func TestDashboardService_ViewNoFilterIsIdentity(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)

	view, err := s.View(context.Background(), core.Filter{})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if view.HasActive {
		t.Error("HasActive should be false for an empty filter")
	}
	if len(view.Rows) != 3 {
		t.Errorf("got %d rows, want all 3", len(view.Rows))
	}
	if view.FilteredTotal.Cents != 1700 {
		t.Errorf("FilteredTotal = %d, want 1700", view.FilteredTotal.Cents)
	}
}

func TestDashboardService_ViewPushesUpperBound(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)

	view, err := s.View(context.Background(), core.Filter{}.WithTo(core.NewDate(2024, time.March, 10)))
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(view.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(view.Rows))
	}
	// Only the expenses loaded for the bound count towards the month.
	if view.MonthTotal.Cents != 1000 {
		t.Errorf("MonthTotal = %d, want 1000", view.MonthTotal.Cents)
	}
}

func TestDashboardService_CachesUntilInvalidated(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)
	ctx := context.Background()

	for range 3 {
		if _, err := s.View(ctx, core.Filter{}); err != nil {
			t.Fatalf("View() error = %v", err)
		}
	}
	if got := store.lists.Load(); got != 1 {
		t.Errorf("ListExpenses called %d times, want 1", got)
	}
	if got := store.categories.Load(); got != 1 {
		t.Errorf("ListCategories called %d times, want 1", got)
	}

	s.Invalidate()
	if _, err := s.View(ctx, core.Filter{}); err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if got := store.lists.Load(); got != 2 {
		t.Errorf("ListExpenses called %d times after invalidation, want 2", got)
	}
}

func TestDashboardService_ManagerPurgesCaches(t *testing.T) {
	store := newCountingStore()
	manager := cache.NewManager(nil)
	s := NewDashboardService(store, DashboardConfig{}, manager, nil)
	ctx := context.Background()

	if _, err := s.Categories(ctx); err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	manager.PurgeAll()
	if _, err := s.Categories(ctx); err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if got := store.categories.Load(); got != 2 {
		t.Errorf("ListCategories called %d times, want 2", got)
	}
}

func TestDashboardService_ReturnedSlicesAreCopies(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)
	ctx := context.Background()

	first, err := s.Expenses(ctx, core.Date{})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	first[0].Description = "changed"

	second, err := s.Expenses(ctx, core.Date{})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	if second[0].Description == "changed" {
		t.Error("mutating a returned slice must not change the cache")
	}
}

func TestDashboardService_Summary(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)

	view, err := s.Summary(context.Background(), 2024, time.March, core.Date{})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if view.Dashboard.Total.Cents != 1500 {
		t.Errorf("Total = %d, want 1500", view.Dashboard.Total.Cents)
	}
	if view.TotalLabel != "LKR 15.00" {
		t.Errorf("TotalLabel = %q", view.TotalLabel)
	}
	if len(view.Slices) != 2 {
		t.Fatalf("got %d slices, want 2", len(view.Slices))
	}
	if view.Slices[0].Label != "Food" || view.Slices[0].AmountLabel != "LKR 10.00" {
		t.Errorf("first slice = %+v", view.Slices[0])
	}
	if view.Slices[0].Color == view.Slices[1].Color {
		t.Error("slices should get distinct colours")
	}
	if view.Slices[0].PercentLabel != "66.7 %" {
		t.Errorf("PercentLabel = %q, want 66.7 %%", view.Slices[0].PercentLabel)
	}
}

func TestDashboardService_SummaryCached(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)
	ctx := context.Background()

	for range 2 {
		if _, err := s.Summary(ctx, 2024, time.March, core.Date{}); err != nil {
			t.Fatalf("Summary() error = %v", err)
		}
	}
	if got := store.dashboards.Load(); got != 1 {
		t.Errorf("ReadDashboard called %d times, want 1", got)
	}
	if _, err := s.Summary(ctx, 2024, time.February, core.Date{}); err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if got := store.dashboards.Load(); got != 2 {
		t.Errorf("a different month should miss the cache, calls = %d", got)
	}
}

func TestDashboardService_CurrentSummary(t *testing.T) {
	store := newCountingStore()
	seedScenario(store)
	s := newTestDashboard(store)

	view, err := s.CurrentSummary(context.Background())
	if err != nil {
		t.Fatalf("CurrentSummary() error = %v", err)
	}
	if view.Dashboard.Period.Month() != time.March || view.Dashboard.Period.Year() != 2024 {
		t.Errorf("unexpected period %v", view.Dashboard.Period)
	}
}

func TestDashboardService_InvalidMonth(t *testing.T) {
	s := newTestDashboard(newCountingStore())
	_, err := s.Dashboard(context.Background(), ports.DashboardQuery{Year: 2024, Month: 13})
	if !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestDashboardService_BackendErrors(t *testing.T) {
	store := newCountingStore()
	store.failReads = true
	s := newTestDashboard(store)
	ctx := context.Background()

	if _, err := s.View(ctx, core.Filter{}); !errors.Is(err, errBackendDown) {
		t.Errorf("View() error = %v, want wrapped backend error", err)
	}
	if _, err := s.Summary(ctx, 2024, time.March, core.Date{}); !errors.Is(err, errBackendDown) {
		t.Errorf("Summary() error = %v, want wrapped backend error", err)
	}

	// Failures are not cached.
	store.failReads = false
	if _, err := s.View(ctx, core.Filter{}); err != nil {
		t.Errorf("View() after recovery error = %v", err)
	}
}

func TestDashboardService_DeleteDuringFetch(t *testing.T) {
	store := newGatedStore()
	ids := seedScenario(store.countingStore)
	dash := NewDashboardService(store, DashboardConfig{}, nil, nil)
	expenses := NewExpenseService(store, nil, "test", nil)
	expenses.OnChange(dash.Invalidate)
	ctx := context.Background()

	type result struct {
		list []core.Expense
		err  error
	}
	inFlight := make(chan result, 1)
	go func() {
		list, err := dash.Expenses(ctx, core.Date{})
		inFlight <- result{list, err}
	}()
	<-store.started

	if err := expenses.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// A read after the delete must not join the fetch that is still held.
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fresh, err := dash.Expenses(readCtx, core.Date{})
	if err != nil {
		t.Fatalf("Expenses() after delete error = %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("got %d expenses after delete, want 2", len(fresh))
	}

	close(store.release)
	if r := <-inFlight; r.err != nil || len(r.list) != 3 {
		t.Fatalf("in-flight read = %d records, %v; want the 3 it started with", len(r.list), r.err)
	}

	// The older result must not have been cached over the invalidation.
	list, err := dash.Expenses(ctx, core.Date{})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d expenses, want 2", len(list))
	}
	for _, e := range list {
		if e.ID == ids[0] {
			t.Fatalf("deleted expense %s still served", ids[0])
		}
	}
}

func TestDashboardService_FetchOutlivesCaller(t *testing.T) {
	store := newGatedStore()
	seedScenario(store.countingStore)
	dash := NewDashboardService(store, DashboardConfig{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := dash.Expenses(ctx, core.Date{})
		errc <- err
	}()
	<-store.started

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(store.release)
	<-store.done
	if store.ctxErr != nil {
		t.Errorf("shared fetch saw %v after its first caller left", store.ctxErr)
	}

	// The detached fetch still filled the cache.
	list, err := dash.Expenses(context.Background(), core.Date{})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("got %d expenses, want 3", len(list))
	}
	if got := store.lists.Load(); got != 1 {
		t.Errorf("ListExpenses called %d times, want the shared fetch reused", got)
	}
}
