// Package storage is the SQLite backend. The schema is embedded and migrated
// on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

var _ ports.Backend = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if logger == nil {
		logger = applog.Discard()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; SQLite would otherwise
	// answer concurrent writes with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SeedCategories inserts or renames the given categories in one transaction.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, cats []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, c := range cats {
		if c.ID == "" {
			continue
		}
		if err := q.UpsertCategory(ctx, Category{ID: c.ID, Title: c.Title}); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, opts ports.ListOptions) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx, opts.DateTo.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := row.toCore()
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable expense row",
				applog.FieldExpenseID, row.ID,
				applog.FieldError, err)
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		ID:          uuid.NewString(),
		CategoryID:  e.CategoryID,
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		ExpenseDate: e.Date.String(),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		applog.NewFields().WithExpense(row.ID, row.Description, row.AmountCents, row.CategoryID).ToSlice()...)
	return row.toCore()
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	if id == "" {
		return core.Expense{}, core.ErrMissingID
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	row, err := r.queries.UpdateExpense(ctx, UpdateExpenseParams{
		CategoryID:  e.CategoryID,
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		ExpenseDate: e.Date.String(),
		ID:          id,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]core.Category, len(rows))
	for i, c := range rows {
		cats[i] = core.Category{ID: c.ID, Title: c.Title}
	}
	return cats, nil
}

// ReadDashboard aggregates in SQL and resolves titles from the categories table.
func (r *SQLiteRepository) ReadDashboard(ctx context.Context, q ports.DashboardQuery) (core.Dashboard, error) {
	if err := core.ValidateMonth(int(q.Month)); err != nil {
		return core.Dashboard{}, err
	}
	period := q.Period()

	sums, err := r.queries.GetCategorySums(ctx, GetCategorySumsParams{
		From: period.Start.String(),
		To:   period.End.String(),
	})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("get category sums: %w", err)
	}
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	index := core.BuildCategoryIndex(cats)

	d := core.Dashboard{Period: core.MonthPeriod(q.Year, q.Month)}
	for _, s := range sums {
		amount := core.Money{Cents: s.TotalCents}
		d.Total = d.Total.Add(amount)
		d.ByCategory = append(d.ByCategory, core.CategoryAmount{
			CategoryID: s.CategoryID,
			Title:      index.TitleOr(s.CategoryID, s.CategoryID),
			Amount:     amount,
		})
	}
	core.SortBreakdown(d.ByCategory)
	return d, nil
}

func (e Expense) toCore() (core.Expense, error) {
	d, err := core.ParseDate(e.ExpenseDate)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:          e.ID,
		CategoryID:  e.CategoryID,
		Description: e.Description,
		Amount:      core.Money{Cents: e.AmountCents},
		Date:        d,
	}, nil
}
