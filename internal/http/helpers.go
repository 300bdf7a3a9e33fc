package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/wire"
)

// backendTimeout bounds every backend call made while serving a request.
const backendTimeout = 7 * time.Second

var errMalformedBody = errors.New("malformed request body")

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

// stripControl removes control characters other than tab and newlines and
// leaves everything else untouched.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request was issued by htmx from the dashboard page.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func backendContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), backendTimeout)
}

// statusFor maps a service error to the response status: 400 for unreadable
// bodies, 422 for validation, 404 for unknown ids, 504 on timeout and 502
// for any other backend failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// publicMessage is the text shown to clients for err. Backend details stay in the logs.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return err.Error()
	case http.StatusNotFound:
		return "Expense not found"
	case http.StatusGatewayTimeout:
		return "The data source did not answer in time"
	default:
		return "The data source is unavailable"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, wire.Error{Message: message})
}

// failJSON logs err at a level matching its status and writes the JSON error body.
func failJSON(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logFailure(r, op, status, err)
	writeJSONError(w, status, publicMessage(err, status))
}

func logFailure(r *http.Request, op string, status int, err error) {
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().
		WithOperation(op).
		WithError(err).
		WithErrorType(errorType(status))
	fields[applog.FieldStatusCode] = status
	args := fields.ToSlice()
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", args...)
		return
	}
	logger.WarnContext(r.Context(), "Request rejected", args...)
}

// errorType classifies a failure by the status it was mapped to.
func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return applog.ErrorTypeDecode
	case http.StatusUnprocessableEntity:
		return applog.ErrorTypeValidation
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusGatewayTimeout:
		return applog.ErrorTypeTimeout
	case http.StatusBadGateway:
		return applog.ErrorTypeNetwork
	default:
		return applog.ErrorTypeInternal
	}
}

type monthOption struct {
	Value    int
	Name     string
	Selected bool
}

func monthOptions(selected time.Month) []monthOption {
	out := make([]monthOption, 12)
	for i := range out {
		m := time.Month(i + 1)
		out[i] = monthOption{Value: int(m), Name: m.String(), Selected: m == selected}
	}
	return out
}
