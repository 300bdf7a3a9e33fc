// Package ports declares the data contracts the dashboard consumes. Every
// backend (remote API, SQLite, in-memory) implements them.
package ports

import (
	"context"
	"time"

	"expensedash/internal/core"
)

// ListOptions narrows an expense listing on the backend side.
type ListOptions struct {
	// DateTo, when set, excludes expenses dated after it.
	DateTo core.Date
}

// DashboardQuery selects the month a dashboard summary is computed for.
type DashboardQuery struct {
	Year   int
	Month  time.Month
	DateTo core.Date
}

// Period returns the date range the query covers.
func (q DashboardQuery) Period() core.Period {
	return core.MonthPeriod(q.Year, q.Month).Until(q.DateTo)
}

type (
	ExpenseLister interface {
		ListExpenses(ctx context.Context, opts ListOptions) ([]core.Expense, error)
	}

	// ExpenseWriter creates and replaces expenses. Update replaces every
	// field of the stored record; core.ErrNotFound reports an unknown id.
	ExpenseWriter interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, id string, e core.Expense) (core.Expense, error)
	}

	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id string) error
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// DashboardReader provides the aggregated summary for one month.
	DashboardReader interface {
		ReadDashboard(ctx context.Context, q DashboardQuery) (core.Dashboard, error)
	}

	// Backend is the union every data source implements.
	Backend interface {
		ExpenseLister
		ExpenseWriter
		ExpenseDeleter
		CategoryReader
		DashboardReader
	}
)
