// Package wire defines the JSON shapes exchanged with the expense API and
// converts them to and from the domain model. The same shapes are served by
// this repository's own HTTP API, so one instance can act as the remote
// backend of another.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensedash/internal/core"
)

// ErrMalformed marks a record that is missing required fields.
var ErrMalformed = errors.New("malformed record")

// Amount is a decimal number of currency units, encoded as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func AmountOf(m core.Money) Amount {
	return Amount{Decimal: m.Decimal()}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

type (
	// Expense is a stored expense record. Type holds the category id.
	Expense struct {
		ID          string  `json:"_id,omitempty"`
		Type        string  `json:"type"`
		Description string  `json:"description"`
		Amount      *Amount `json:"amount"`
		Date        string  `json:"date"`
	}

	// ExpenseForm is the body of create and update requests.
	ExpenseForm struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Amount      Amount `json:"amount"`
		Date        string `json:"date"`
	}

	Category struct {
		ID    string `json:"_id"`
		Title string `json:"title"`
	}

	CategoryTotal struct {
		ID    string `json:"_id"`
		Title string `json:"title,omitempty"`
		Total Amount `json:"total"`
	}

	// Dashboard is the server-side summary. Month is zero-based (0 = January).
	Dashboard struct {
		Month             int             `json:"month"`
		Year              int             `json:"year"`
		TotalAmount       Amount          `json:"totalAmount"`
		CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`
	}

	// Error is the body of non-2xx responses.
	Error struct {
		Message string `json:"message"`
	}
)

// MonthParam converts a calendar month to the API's zero-based month number.
func MonthParam(m time.Month) int {
	return int(m) - 1
}

// MonthFromParam converts the API's zero-based month number back.
func MonthFromParam(n int) (time.Month, error) {
	if n < 0 || n > 11 {
		return 0, fmt.Errorf("%w: %d", core.ErrInvalidMonth, n)
	}
	return time.Month(n + 1), nil
}

// ParseDate reads a wire date. Plain YYYY-MM-DD dates are taken as is;
// timestamps are converted to loc before the day is taken.
func ParseDate(s string, loc *time.Location) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, fmt.Errorf("%w: empty date", core.ErrInvalidDate)
	}
	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(t.In(loc)), nil
}

// FromExpense converts a domain expense to its wire record.
func FromExpense(e core.Expense) Expense {
	amount := AmountOf(e.Amount)
	return Expense{
		ID:          e.ID,
		Type:        e.CategoryID,
		Description: e.Description,
		Amount:      &amount,
		Date:        e.Date.String(),
	}
}

// FormFromExpense builds the create/update body for e.
func FormFromExpense(e core.Expense) ExpenseForm {
	return ExpenseForm{
		Type:        e.CategoryID,
		Description: e.Description,
		Amount:      AmountOf(e.Amount),
		Date:        e.Date.String(),
	}
}

// ToExpense converts a wire record. Records without id, date or amount, or
// with an unreadable date, yield ErrMalformed.
func (w Expense) ToExpense(loc *time.Location) (core.Expense, error) {
	if w.ID == "" || w.Amount == nil || w.Date == "" {
		return core.Expense{}, ErrMalformed
	}
	d, err := ParseDate(w.Date, loc)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m, err := core.MoneyFromDecimal(w.Amount.Decimal)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return core.Expense{
		ID:          w.ID,
		CategoryID:  w.Type,
		Description: w.Description,
		Amount:      m,
		Date:        d,
	}, nil
}

// ToExpense converts a submitted form. The result is not validated.
func (f ExpenseForm) ToExpense(loc *time.Location) (core.Expense, error) {
	d, err := ParseDate(f.Date, loc)
	if err != nil {
		return core.Expense{}, err
	}
	m, err := core.MoneyFromDecimal(f.Amount.Decimal)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		CategoryID:  strings.TrimSpace(f.Type),
		Description: strings.TrimSpace(f.Description),
		Amount:      m,
		Date:        d,
	}, nil
}

// DecodeExpenses decodes a JSON array of expenses record by record. Malformed
// records are skipped and counted; only a body that is not an array fails.
func DecodeExpenses(data []byte, loc *time.Location) ([]core.Expense, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode expense list: %w", err)
	}

	out := make([]core.Expense, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var w Expense
		if err := json.Unmarshal(r, &w); err != nil {
			skipped++
			continue
		}
		e, err := w.ToExpense(loc)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped, nil
}

// DecodeCategories decodes a JSON array of categories, skipping entries that
// are not objects.
func DecodeCategories(data []byte) ([]core.Category, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode category list: %w", err)
	}

	out := make([]core.Category, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var c Category
		if err := json.Unmarshal(r, &c); err != nil || c.ID == "" {
			skipped++
			continue
		}
		out = append(out, core.Category{ID: c.ID, Title: c.Title})
	}
	return out, skipped, nil
}

func FromCategories(cats []core.Category) []Category {
	out := make([]Category, len(cats))
	for i, c := range cats {
		out[i] = Category{ID: c.ID, Title: c.Title}
	}
	return out
}

// FromDashboard converts a domain summary to its wire shape.
func FromDashboard(d core.Dashboard) Dashboard {
	breakdown := make([]CategoryTotal, len(d.ByCategory))
	for i, c := range d.ByCategory {
		breakdown[i] = CategoryTotal{ID: c.CategoryID, Title: c.Title, Total: AmountOf(c.Amount)}
	}
	return Dashboard{
		Month:             MonthParam(d.Period.Month()),
		Year:              d.Period.Year(),
		TotalAmount:       AmountOf(d.Total),
		CategoryBreakdown: breakdown,
	}
}

// ToDashboard converts the wire summary for the requested month. The
// breakdown is re-sorted so colour assignment does not depend on server order.
func (w Dashboard) ToDashboard(year int, month time.Month) (core.Dashboard, error) {
	total, err := core.MoneyFromDecimal(w.TotalAmount.Decimal)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("%w: total: %v", ErrMalformed, err)
	}

	breakdown := make([]core.CategoryAmount, 0, len(w.CategoryBreakdown))
	for _, c := range w.CategoryBreakdown {
		m, err := core.MoneyFromDecimal(c.Total.Decimal)
		if err != nil {
			return core.Dashboard{}, fmt.Errorf("%w: category %q: %v", ErrMalformed, c.ID, err)
		}
		breakdown = append(breakdown, core.CategoryAmount{CategoryID: c.ID, Title: c.Title, Amount: m})
	}
	core.SortBreakdown(breakdown)

	return core.Dashboard{
		Period:     core.MonthPeriod(year, month),
		Total:      total,
		ByCategory: breakdown,
	}, nil
}
