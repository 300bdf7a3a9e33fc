// Package memory is an in-process backend. Data lives only as long as the
// process and categories are seeded from a text file.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"expensedash/internal/core"
	"expensedash/internal/ports"
)

// SeedCategoriesFile is read from the data directory by NewFromFiles.
const SeedCategoriesFile = "seed_categories.txt"

var defaultCategories = []core.Category{
	{ID: "food", Title: "Food"},
	{ID: "transport", Title: "Transport"},
	{ID: "utilities", Title: "Utilities"},
	{ID: "rent", Title: "Rent"},
	{ID: "other", Title: "Other"},
}

type Store struct {
	mu    sync.Mutex
	cats  []core.Category
	items []core.Expense
	newID func() string
}

var _ ports.Backend = (*Store)(nil)

func New(cats []core.Category) *Store {
	return &Store{cats: dedupe(cats), newID: uuid.NewString}
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "id,title" pair per line. A line without a comma uses the lower-cased
// title as id. Missing or empty files fall back to a small default set.
func NewFromFiles(base string) *Store {
	return New(SeedCategories(base))
}

// SeedCategories reads base/seed_categories.txt, falling back to the default
// set when the file is missing or empty.
func SeedCategories(base string) []core.Category {
	cats := readCategories(filepath.Join(base, SeedCategoriesFile))
	if len(cats) == 0 {
		return slices.Clone(defaultCategories)
	}
	return dedupe(cats)
}

// ListExpenses returns stored expenses ordered by date, newest first.
func (s *Store) ListExpenses(_ context.Context, opts ports.ListOptions) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if !opts.DateTo.IsEmpty() && e.Date.Compare(opts.DateTo) > 0 {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int {
		return b.Date.Compare(a.Date)
	})
	return out, nil
}

// CreateExpense stores e under a fresh id.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.newID()
	s.items = append(s.items, e)
	return e, nil
}

// UpdateExpense replaces the expense stored under id.
func (s *Store) UpdateExpense(_ context.Context, id string, e core.Expense) (core.Expense, error) {
	if id == "" {
		return core.Expense{}, core.ErrMissingID
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	e.ID = id
	s.items[i] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// ListCategories returns the seeded categories in seed order.
func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cats), nil
}

// ReadDashboard aggregates the stored expenses for the requested month.
func (s *Store) ReadDashboard(_ context.Context, q ports.DashboardQuery) (core.Dashboard, error) {
	if err := core.ValidateMonth(int(q.Month)); err != nil {
		return core.Dashboard{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index := core.BuildCategoryIndex(s.cats)
	d := core.Summarize(s.items, q.Period(), index)
	// Report the whole month even when DateTo narrowed the aggregation.
	d.Period = core.MonthPeriod(q.Year, q.Month)
	return d, nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(e core.Expense) bool { return e.ID == id })
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, title, found := strings.Cut(line, ",")
		if !found {
			title = id
			id = strings.ToLower(strings.Join(strings.Fields(id), "-"))
		}
		out = append(out, core.Category{ID: strings.TrimSpace(id), Title: strings.TrimSpace(title)})
	}
	return out
}

// dedupe drops entries without an id and keeps the last title seen for each
// id at the position of its first occurrence.
func dedupe(in []core.Category) []core.Category {
	pos := map[string]int{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if c.ID == "" {
			continue
		}
		if i, ok := pos[c.ID]; ok {
			out[i] = c
			continue
		}
		pos[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
