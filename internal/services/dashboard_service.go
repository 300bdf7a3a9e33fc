package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"expensedash/internal/cache"
	"expensedash/internal/chart"
	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"
)

// DashboardSource is the read side of a backend.
type DashboardSource interface {
	ports.ExpenseLister
	ports.CategoryReader
	ports.DashboardReader
}

// DashboardConfig configures presentation and caching.
type DashboardConfig struct {
	Currency  string
	Locale    string
	Location  *time.Location
	CacheTTL  time.Duration
	CacheSize int

	// FetchTimeout bounds a shared backend read, which outlives the
	// request that started it.
	FetchTimeout time.Duration

	// Clock replaces time.Now, for tests.
	Clock func() time.Time
}

// ExpenseRow is one line of the expense table.
type ExpenseRow struct {
	ID          string
	Date        core.Date
	CategoryID  string
	Category    string
	Description string
	Amount      core.Money
	AmountLabel string
}

// ExpenseView is the filtered expense table plus its totals.
type ExpenseView struct {
	Filter     core.Filter
	HasActive  bool
	Rows       []ExpenseRow
	Categories []core.Category

	FilteredTotal      core.Money
	FilteredTotalLabel string

	// Month is the current month; MonthTotal sums the loaded list over it.
	Month           core.Period
	MonthTotal      core.Money
	MonthTotalLabel string
}

// SummarySlice is a pie wedge with its formatted amount.
type SummarySlice struct {
	chart.Slice
	AmountLabel string
}

// SummaryView is the dashboard for one month ready for rendering.
type SummaryView struct {
	Dashboard  core.Dashboard
	Pie        chart.Pie
	Slices     []SummarySlice
	TotalLabel string
}

// DashboardService serves the read side of the dashboard from cached backend
// data. Every view is recomputed in full from the cached lists.
type DashboardService struct {
	source    DashboardSource
	formatter core.CurrencyFormatter
	currency  string
	loc       *time.Location
	now       func() time.Time
	timeout   time.Duration
	logger    *applog.Logger

	expenses   *cache.LRUCache[[]core.Expense]
	categories *cache.LRUCache[[]core.Category]
	dashboards *cache.LRUCache[core.Dashboard]
	group      singleflight.Group

	// mu orders cache writes against Invalidate. gen counts invalidations;
	// a fetch started under an older generation never reaches the cache.
	mu  sync.Mutex
	gen uint64
}

// NewDashboardService creates the service and registers its caches with
// manager when one is given.
func NewDashboardService(source DashboardSource, cfg DashboardConfig, manager *cache.Manager, logger *applog.Logger) *DashboardService {
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.Currency == "" {
		cfg.Currency = core.DefaultCurrency
	}
	if cfg.Locale == "" {
		cfg.Locale = core.DefaultLocale
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 64
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &DashboardService{
		source:     source,
		formatter:  core.NewCurrencyFormatter(cfg.Locale),
		currency:   cfg.Currency,
		loc:        cfg.Location,
		now:        cfg.Clock,
		timeout:    cfg.FetchTimeout,
		logger:     logger.WithComponent(applog.ComponentDashboard),
		expenses:   cache.NewLRUCache[[]core.Expense](cfg.CacheSize, cfg.CacheTTL),
		categories: cache.NewLRUCache[[]core.Category](1, cfg.CacheTTL),
		dashboards: cache.NewLRUCache[core.Dashboard](cfg.CacheSize, cfg.CacheTTL),
	}
	if manager != nil {
		manager.Register(s.expenses, s.categories, s.dashboards)
	}
	return s
}

// Currency returns the ISO code amounts are rendered in.
func (s *DashboardService) Currency() string {
	return s.currency
}

// FormatMoney renders m with the configured locale and currency.
func (s *DashboardService) FormatMoney(m core.Money) string {
	return s.formatter.Format(m, s.currency)
}

// Location is the time zone dates are read in.
func (s *DashboardService) Location() *time.Location {
	return s.loc
}

// Today returns the current date in the configured time zone.
func (s *DashboardService) Today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Invalidate drops every cached list and summary.
func (s *DashboardService) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.expenses.Purge()
	s.categories.Purge()
	s.dashboards.Purge()
	s.mu.Unlock()
	s.logger.Debug("Dashboard caches invalidated", applog.FieldOperation, applog.OpInvalidate)
}

// Expenses returns the expenses dated on or before dateTo (all of them when
// dateTo is empty). Concurrent misses for the same bound share one fetch.
func (s *DashboardService) Expenses(ctx context.Context, dateTo core.Date) ([]core.Expense, error) {
	key := "expenses:" + dateTo.String()
	if cached, ok := s.expenses.Get(key); ok {
		return slices.Clone(cached), nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		return s.source.ListExpenses(ctx, ports.ListOptions{DateTo: dateTo})
	}, func(v any) {
		s.expenses.Set(key, v.([]core.Expense))
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return slices.Clone(v.([]core.Expense)), nil
}

// Categories returns the master-data categories.
func (s *DashboardService) Categories(ctx context.Context) ([]core.Category, error) {
	const key = "categories"
	if cached, ok := s.categories.Get(key); ok {
		return slices.Clone(cached), nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		return s.source.ListCategories(ctx)
	}, func(v any) {
		s.categories.Set(key, v.([]core.Category))
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return slices.Clone(v.([]core.Category)), nil
}

// shared runs load once for concurrent misses on key within one invalidation
// generation. Reads that start after Invalidate never join an older fetch.
// The fetch is detached from the caller's cancellation so one client going
// away does not fail the others; a caller that gives up returns its own
// ctx error. store runs only if no invalidation happened during the load.
func (s *DashboardService) shared(ctx context.Context, key string, load func(context.Context) (any, error), store func(any)) (any, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	ch := s.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		v, err := load(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.gen == gen {
			store(v)
		}
		s.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

// Index returns a freshly built category index.
func (s *DashboardService) Index(ctx context.Context) (core.CategoryIndex, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return core.BuildCategoryIndex(cats), nil
}

// Dashboard returns the backend summary for q.
func (s *DashboardService) Dashboard(ctx context.Context, q ports.DashboardQuery) (core.Dashboard, error) {
	if err := core.ValidateMonth(int(q.Month)); err != nil {
		return core.Dashboard{}, err
	}
	key := fmt.Sprintf("dashboard:%04d-%02d:%s", q.Year, q.Month, q.DateTo)
	if cached, ok := s.dashboards.Get(key); ok {
		return cached, nil
	}

	v, err := s.shared(ctx, key, func(ctx context.Context) (any, error) {
		return s.source.ReadDashboard(ctx, q)
	}, func(v any) {
		s.dashboards.Set(key, v.(core.Dashboard))
	})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("read dashboard: %w", err)
	}
	return v.(core.Dashboard), nil
}

// View loads expenses and categories concurrently and applies f. The upper
// bound of f is also pushed to the backend; the full filter is then applied
// locally so the result does not depend on how the backend treats it.
func (s *DashboardService) View(ctx context.Context, f core.Filter) (ExpenseView, error) {
	var (
		expenses []core.Expense
		cats     []core.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.Expenses(gctx, f.To)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.Categories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ExpenseView{}, err
	}

	index := core.BuildCategoryIndex(cats)
	filtered := core.FilterExpenses(expenses, f)

	rows := make([]ExpenseRow, len(filtered))
	var filteredTotal core.Money
	for i, e := range filtered {
		rows[i] = ExpenseRow{
			ID:          e.ID,
			Date:        e.Date,
			CategoryID:  e.CategoryID,
			Category:    index.TitleOr(e.CategoryID, e.CategoryID),
			Description: e.Description,
			Amount:      e.Amount,
			AmountLabel: s.FormatMoney(e.Amount),
		}
		filteredTotal = filteredTotal.Add(e.Amount)
	}

	month := core.CurrentMonth(s.now().In(s.loc))
	monthTotal := core.SumAmounts(expenses, month)

	s.logger.DebugContext(ctx, "Expense view computed",
		applog.FieldCount, len(rows),
		"loaded", len(expenses),
		"filtered", f.HasActive())

	return ExpenseView{
		Filter:             f,
		HasActive:          f.HasActive(),
		Rows:               rows,
		Categories:         cats,
		FilteredTotal:      filteredTotal,
		FilteredTotalLabel: s.FormatMoney(filteredTotal),
		Month:              month,
		MonthTotal:         monthTotal,
		MonthTotalLabel:    s.FormatMoney(monthTotal),
	}, nil
}

// Summary reads the dashboard for the given month, resolves category titles
// and builds the pie.
func (s *DashboardService) Summary(ctx context.Context, year int, month time.Month, dateTo core.Date) (SummaryView, error) {
	q := ports.DashboardQuery{Year: year, Month: month, DateTo: dateTo}

	var (
		d     core.Dashboard
		index core.CategoryIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d, err = s.Dashboard(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		index, err = s.Index(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return SummaryView{}, err
	}

	d = d.ResolveTitles(index)
	pie := chart.NewPie(d)
	s.logger.DebugContext(ctx, "Summary computed", append(applog.NewFields().
		WithOperation(applog.OpRead).
		WithPeriod(year, int(month)).
		ToSlice(), applog.FieldCount, len(pie.Slices))...)
	wedges := make([]SummarySlice, len(pie.Slices))
	for i, sl := range pie.Slices {
		wedges[i] = SummarySlice{Slice: sl, AmountLabel: s.FormatMoney(sl.Amount)}
	}

	return SummaryView{
		Dashboard:  d,
		Pie:        pie,
		Slices:     wedges,
		TotalLabel: s.FormatMoney(d.Total),
	}, nil
}

// CurrentSummary is Summary for the current month.
func (s *DashboardService) CurrentSummary(ctx context.Context) (SummaryView, error) {
	today := s.Today()
	return s.Summary(ctx, today.Year(), today.Month(), core.Date{})
}
