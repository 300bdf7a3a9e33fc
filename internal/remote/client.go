// Package remote is the backend that talks to the expense HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"
	"expensedash/internal/wire"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 300 * time.Millisecond
	maxBodySize       = 4 << 20 // 4 MB
	userAgent         = "expensedash/1.0"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return core.ErrNotFound
	}
	return nil
}

// retryable reports whether another attempt might succeed.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client implements ports.Backend over the expense API.
type Client struct {
	base       *url.URL
	http       *http.Client
	loc        *time.Location
	retryDelay time.Duration
	logger     *applog.Logger
}

var _ ports.Backend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocation sets the zone timestamps from the API are read in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(applog.ComponentRemote) }
}

// New creates a client for the API rooted at baseURL, e.g.
// "https://api.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		base:       u,
		http:       &http.Client{Timeout: defaultTimeout},
		loc:        time.UTC,
		retryDelay: defaultRetryDelay,
		logger:     applog.Discard().WithComponent(applog.ComponentRemote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListExpenses fetches every expense, optionally up to opts.DateTo.
func (c *Client) ListExpenses(ctx context.Context, opts ports.ListOptions) ([]core.Expense, error) {
	q := url.Values{}
	if !opts.DateTo.IsEmpty() {
		q.Set("dateTo", opts.DateTo.String())
	}

	body, err := c.do(ctx, http.MethodGet, "/expenses", q, nil)
	if err != nil {
		return nil, err
	}

	expenses, skipped, err := wire.DecodeExpenses(body, c.loc)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed expense records",
			applog.FieldSkipped, skipped,
			applog.FieldCount, len(expenses),
			applog.FieldErrorType, applog.ErrorTypeDecode)
	}
	return expenses, nil
}

// CreateExpense posts a new expense. Creation is never retried automatically:
// a lost response could otherwise create the record twice.
func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	body, err := c.do(ctx, http.MethodPost, "/expenses", nil, wire.FormFromExpense(e))
	if err != nil {
		return core.Expense{}, err
	}
	return c.decodeSaved(body, e)
}

// UpdateExpense replaces the expense stored under id.
func (c *Client) UpdateExpense(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	if id == "" {
		return core.Expense{}, core.ErrMissingID
	}
	body, err := c.do(ctx, http.MethodPatch, "/expenses/"+url.PathEscape(id), nil, wire.FormFromExpense(e))
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id
	return c.decodeSaved(body, e)
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrMissingID
	}
	_, err := c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id), nil, nil)
	return err
}

// ListCategories fetches the master data.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	body, err := c.do(ctx, http.MethodGet, "/master-data", nil, nil)
	if err != nil {
		return nil, err
	}
	cats, skipped, err := wire.DecodeCategories(body)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed category records", applog.FieldSkipped, skipped)
	}
	return cats, nil
}

// ReadDashboard fetches the server-side summary for a month.
func (c *Client) ReadDashboard(ctx context.Context, dq ports.DashboardQuery) (core.Dashboard, error) {
	if err := core.ValidateMonth(int(dq.Month)); err != nil {
		return core.Dashboard{}, err
	}
	q := url.Values{}
	q.Set("month", strconv.Itoa(wire.MonthParam(dq.Month)))
	q.Set("year", strconv.Itoa(dq.Year))
	if !dq.DateTo.IsEmpty() {
		q.Set("dateTo", dq.DateTo.String())
	}

	body, err := c.do(ctx, http.MethodGet, "/expenses/dashboard", q, nil)
	if err != nil {
		return core.Dashboard{}, err
	}

	var w wire.Dashboard
	if err := json.Unmarshal(body, &w); err != nil {
		return core.Dashboard{}, fmt.Errorf("remote: parsing dashboard: %w", err)
	}
	d, err := w.ToDashboard(dq.Year, dq.Month)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("remote: %w", err)
	}
	return d, nil
}

// decodeSaved reads the stored record echoed by create and update. APIs that
// answer with an empty body get the submitted values back.
func (c *Client) decodeSaved(body []byte, submitted core.Expense) (core.Expense, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return submitted, nil
	}
	var w wire.Expense
	if err := json.Unmarshal(body, &w); err != nil {
		return core.Expense{}, fmt.Errorf("remote: parsing saved expense: %w", err)
	}
	if w.ID == "" {
		w.ID = submitted.ID
	}
	saved, err := w.ToExpense(c.loc)
	if err != nil {
		if submitted.ID != "" {
			return submitted, nil
		}
		return core.Expense{}, fmt.Errorf("remote: saved expense: %w", err)
	}
	return saved, nil
}

// do sends one request and returns the response body. Idempotent methods get
// exactly one retry on transport errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("remote: encoding request: %w", err)
		}
	}

	attempts := 1
	if method != http.MethodPost {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.WarnContext(ctx, "Retrying request",
				applog.FieldMethod, method,
				applog.FieldPath, path,
				applog.FieldError, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		body, err := c.send(ctx, method, path, query, encoded)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("remote: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("remote: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var msg wire.Error
		if json.Unmarshal(body, &msg) == nil {
			apiErr.Message = msg.Message
		}
		return nil, apiErr
	}
	return body, nil
}
