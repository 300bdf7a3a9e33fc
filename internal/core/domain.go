package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar date layout used on the wire, in storage and in forms.
const DateLayout = "2006-01-02"

// MaxDescriptionLength bounds the user supplied description, counted in runes.
const MaxDescriptionLength = 200

type (
	// Date is a calendar date stored at UTC midnight. The zero value means unset.
	Date struct {
		time.Time
	}

	// Money is an amount in hundredths of the currency unit.
	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string
		CategoryID  string // references Category.ID
		Description string
		Amount      Money
		Date        Date
	}

	// Category is master data: a classification label expenses point at.
	Category struct {
		ID    string
		Title string
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrEmptyCategory      = errors.New("empty category")
	ErrNotFound           = errors.New("expense not found")
	ErrMissingID          = errors.New("missing expense id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is unset
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Validate checks a user supplied expense before it is handed to a backend.
// Stored records are not re-validated: a remote API may legitimately hold
// zero amounts or categories that no longer exist.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsValidationError reports whether err comes from Expense.Validate or input parsing.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidMonth, ErrInvalidAmount, ErrEmptyDescription,
		ErrDescriptionTooLong, ErrEmptyCategory, ErrMissingID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
