// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// filter and period query parameters and expense bodies sent either as JSON
// or as form data from the dashboard page.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/wire"
)

const maxBodyBytes = 64 << 10

// MonthParams holds a month selection parsed from query parameters.
type MonthParams struct {
	Year   int
	Month  time.Month
	DateTo core.Date
}

// ParseFilter builds the filter from the dashboard query: category,
// description, dateFrom and dateTo. Missing parameters leave the
// corresponding constraint unset. The category is matched exactly, so only
// control characters are removed from it; the description is also trimmed.
func ParseFilter(query url.Values) (core.Filter, error) {
	from, err := core.ParseDate(query.Get("dateFrom"))
	if err != nil {
		return core.Filter{}, fmt.Errorf("dateFrom: %w", err)
	}
	to, err := core.ParseDate(query.Get("dateTo"))
	if err != nil {
		return core.Filter{}, fmt.Errorf("dateTo: %w", err)
	}

	return core.Filter{}.
		WithCategory(stripControl(query.Get("category"))).
		WithDescription(sanitizeInput(query.Get("description"))).
		WithFrom(from).
		WithTo(to), nil
}

// ParseMonthParams extracts year, month and dateTo from query parameters,
// defaulting to the month containing today. zeroBased selects the wire
// convention (0 = January) instead of 1-12.
func ParseMonthParams(query url.Values, today core.Date, zeroBased bool) (MonthParams, error) {
	params := MonthParams{
		Year:  today.Year(),
		Month: today.Month(),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: year %q", core.ErrInvalidMonth, v)
		}
		params.Year = y
	}

	if v := strings.TrimSpace(query.Get("month")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, v)
		}
		if zeroBased {
			m, err := wire.MonthFromParam(n)
			if err != nil {
				return MonthParams{}, err
			}
			params.Month = m
		} else {
			if err := core.ValidateMonth(n); err != nil {
				return MonthParams{}, err
			}
			params.Month = time.Month(n)
		}
	}

	to, err := core.ParseDate(query.Get("dateTo"))
	if err != nil {
		return MonthParams{}, fmt.Errorf("dateTo: %w", err)
	}
	params.DateTo = to

	return params, nil
}

// ParseColorCount reads the n parameter of the colour scale endpoint.
// Negative counts yield an empty scale, like zero.
func ParseColorCount(query url.Values, limit int) (int, error) {
	v := strings.TrimSpace(query.Get("n"))
	if v == "" {
		return 0, fmt.Errorf("missing parameter n")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid parameter n %q", v)
	}
	if n > limit {
		return 0, fmt.Errorf("parameter n must be at most %d", limit)
	}
	return max(n, 0), nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// IsJSON reports whether the body is JSON, by content type or leading brace.
func (p *RequestBodyParser) IsJSON() bool {
	if strings.HasPrefix(p.contentType, "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(p.body))
	return strings.HasPrefix(trimmed, "{")
}

// Get returns a sanitized form value. JSON bodies have no form values.
func (p *RequestBodyParser) Get(key string) string {
	if err := p.parseForm(); err != nil {
		return ""
	}
	return sanitizeInput(p.formData.Get(key))
}

func (p *RequestBodyParser) parseForm() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// ExpenseForm decodes the body into the create/update shape. Form amounts
// accept either decimal separator.
func (p *RequestBodyParser) ExpenseForm() (wire.ExpenseForm, error) {
	if p.err != nil {
		return wire.ExpenseForm{}, fmt.Errorf("%w: %v", errMalformedBody, p.err)
	}

	if p.IsJSON() {
		var f wire.ExpenseForm
		if err := json.Unmarshal(p.body, &f); err != nil {
			return wire.ExpenseForm{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		f.Type = sanitizeInput(f.Type)
		f.Description = sanitizeInput(f.Description)
		return f, nil
	}

	if err := p.parseForm(); err != nil {
		return wire.ExpenseForm{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return wire.ExpenseForm{}, err
	}
	return wire.ExpenseForm{
		Type:        p.Get("type"),
		Description: p.Get("description"),
		Amount:      wire.AmountOf(core.Money{Cents: cents}),
		Date:        p.Get("date"),
	}, nil
}
