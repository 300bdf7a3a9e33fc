package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"expensedash/internal/amqp"
	"expensedash/internal/core"
	"expensedash/internal/memory"
	"expensedash/internal/ports"
	"expensedash/internal/sheets"
)

var errBackendDown = errors.New("backend down")

// countingStore wraps the in-memory backend and counts reads.
type countingStore struct {
	*memory.Store
	lists      atomic.Int32
	categories atomic.Int32
	dashboards atomic.Int32
	failReads  bool
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New([]core.Category{
		{ID: "food", Title: "Food"},
		{ID: "transport", Title: "Transport"},
	})}
}

func (s *countingStore) ListExpenses(ctx context.Context, opts ports.ListOptions) ([]core.Expense, error) {
	s.lists.Add(1)
	if s.failReads {
		return nil, errBackendDown
	}
	return s.Store.ListExpenses(ctx, opts)
}

func (s *countingStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.categories.Add(1)
	if s.failReads {
		return nil, errBackendDown
	}
	return s.Store.ListCategories(ctx)
}

func (s *countingStore) ReadDashboard(ctx context.Context, q ports.DashboardQuery) (core.Dashboard, error) {
	s.dashboards.Add(1)
	if s.failReads {
		return core.Dashboard{}, errBackendDown
	}
	return s.Store.ReadDashboard(ctx, q)
}

// seedScenario stores the three reference expenses and returns their ids in
// insertion order.
func seedScenario(s *countingStore) []string {
	ctx := context.Background()
	var ids []string
	for _, e := range []core.Expense{
		{CategoryID: "food", Description: "Groceries", Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, time.March, 5)},
		{CategoryID: "transport", Description: "Bus pass", Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, time.March, 20)},
		{CategoryID: "food", Description: "Market", Amount: core.Money{Cents: 200}, Date: core.NewDate(2024, time.February, 15)},
	} {
		saved, err := s.Store.CreateExpense(ctx, e)
		if err != nil {
			panic(err)
		}
		ids = append(ids, saved.ID)
	}
	return ids
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) published() []*amqp.ExpenseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ExpenseEvent(nil), p.events...)
}

type fakeExporter struct {
	mu    sync.Mutex
	snaps []sheets.Snapshot
	err   error
	calls chan struct{}
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{calls: make(chan struct{}, 16)}
}

func (e *fakeExporter) Export(_ context.Context, snap sheets.Snapshot) error {
	e.mu.Lock()
	e.snaps = append(e.snaps, snap)
	err := e.err
	e.mu.Unlock()
	select {
	case e.calls <- struct{}{}:
	default:
	}
	return err
}

func (e *fakeExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snaps)
}

// gatedStore holds the first expense listing after it has read the backend
// until release is closed, then records the fetch context's error.
type gatedStore struct {
	*countingStore
	started chan struct{}
	release chan struct{}
	done    chan struct{}
	once    sync.Once
	ctxErr  error
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		countingStore: newCountingStore(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (s *gatedStore) ListExpenses(ctx context.Context, opts ports.ListOptions) ([]core.Expense, error) {
	list, err := s.countingStore.ListExpenses(ctx, opts)
	first := false
	s.once.Do(func() { first = true })
	if !first {
		return list, err
	}
	close(s.started)
	<-s.release
	s.ctxErr = ctx.Err()
	close(s.done)
	return list, err
}
