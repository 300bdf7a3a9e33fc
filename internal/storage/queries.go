package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Expense struct {
	ID          string
	CategoryID  string
	Description string
	AmountCents int64
	ExpenseDate string
}

type Category struct {
	ID    string
	Title string
}

type CategorySum struct {
	CategoryID string
	TotalCents int64
}

const expenseColumns = `id, category_id, description, amount_cents, expense_date`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.CategoryID, &e.Description, &e.AmountCents, &e.ExpenseDate)
	return e, err
}

const listExpenses = `
SELECT ` + expenseColumns + `
FROM expenses
WHERE (?1 = '' OR expense_date <= ?1)
ORDER BY expense_date DESC, created_at DESC, id
`

// ListExpenses returns every expense, or those dated up to dateTo when it is
// non-empty.
func (q *Queries) ListExpenses(ctx context.Context, dateTo string) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, dateTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createExpense = `
INSERT INTO expenses (id, category_id, description, amount_cents, expense_date)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	ID          string
	CategoryID  string
	Description string
	AmountCents int64
	ExpenseDate string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.ID,
		arg.CategoryID,
		arg.Description,
		arg.AmountCents,
		arg.ExpenseDate,
	)
	return scanExpense(row)
}

const updateExpense = `
UPDATE expenses
SET category_id = ?, description = ?, amount_cents = ?, expense_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + expenseColumns

type UpdateExpenseParams struct {
	CategoryID  string
	Description string
	AmountCents int64
	ExpenseDate string
	ID          string
}

// UpdateExpense returns sql.ErrNoRows when no expense has the given id.
func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, updateExpense,
		arg.CategoryID,
		arg.Description,
		arg.AmountCents,
		arg.ExpenseDate,
		arg.ID,
	)
	return scanExpense(row)
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

// DeleteExpense returns the number of rows removed.
func (q *Queries) DeleteExpense(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listCategories = `SELECT id, title FROM categories ORDER BY title, id`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCategory = `
INSERT INTO categories (id, title) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title
`

func (q *Queries) UpsertCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, upsertCategory, arg.ID, arg.Title)
	return err
}

const getCategorySums = `
SELECT category_id, CAST(COALESCE(SUM(amount_cents), 0) AS INTEGER) AS total_cents
FROM expenses
WHERE expense_date BETWEEN ? AND ?
GROUP BY category_id
`

type GetCategorySumsParams struct {
	From string
	To   string
}

// GetCategorySums totals amounts per category for an inclusive date range.
func (q *Queries) GetCategorySums(ctx context.Context, arg GetCategorySumsParams) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, getCategorySums, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CategorySum
	for rows.Next() {
		var s CategorySum
		if err := rows.Scan(&s.CategoryID, &s.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
