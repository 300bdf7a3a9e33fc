package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/services"
)

type (
	expensesPartial struct {
		View  services.ExpenseView
		Error string
	}

	summaryPartial struct {
		View     services.SummaryView
		Year     int
		Gradient template.CSS
		Error    string
	}

	pageData struct {
		Title      string
		Today      core.Date
		Categories []core.Category
		Months     []monthOption
		Expenses   expensesPartial
		Summary    summaryPartial
	}
)

// handleIndex renders the dashboard page with both partials filled in. A
// failing backend degrades the page to inline notices instead of an error page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := backendContext(r)
	defer cancel()

	today := s.dashboard.Today()
	data := pageData{
		Title:  s.title,
		Today:  today,
		Months: monthOptions(today.Month()),
	}

	// Each loader records its own failure, so the group never cancels.
	var g errgroup.Group
	g.Go(func() error {
		data.Expenses = s.loadExpenses(ctx, r, core.Filter{})
		return nil
	})
	g.Go(func() error {
		data.Summary = s.loadSummary(ctx, r, MonthParams{Year: today.Year(), Month: today.Month()})
		return nil
	})
	g.Go(func() error {
		cats, err := s.dashboard.Categories(ctx)
		if err != nil {
			logFailure(r, applog.OpList, statusFor(err), err)
			return nil
		}
		data.Categories = cats
		return nil
	})
	_ = g.Wait()

	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

// handleExpensesPartial serves GET /ui/expenses, the table for the filter
// given in the query.
func (s *Server) handleExpensesPartial(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		logFailure(r, applog.OpParse, http.StatusUnprocessableEntity, err)
		s.render(w, r, http.StatusUnprocessableEntity, "expenses", expensesPartial{Error: err.Error()})
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	s.render(w, r, http.StatusOK, "expenses", s.loadExpenses(ctx, r, f))
}

// handleSummaryPartial serves GET /ui/summary?month=1-12&year=&dateTo=.
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.dashboard.Today(), false)
	if err != nil {
		logFailure(r, applog.OpParse, http.StatusUnprocessableEntity, err)
		s.render(w, r, http.StatusUnprocessableEntity, "summary", summaryPartial{Error: err.Error()})
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	s.render(w, r, http.StatusOK, "summary", s.loadSummary(ctx, r, params))
}

func (s *Server) loadExpenses(ctx context.Context, r *http.Request, f core.Filter) expensesPartial {
	view, err := s.dashboard.View(ctx, f)
	if err != nil {
		status := statusFor(err)
		logFailure(r, applog.OpRead, status, err)
		return expensesPartial{Error: publicMessage(err, status)}
	}
	return expensesPartial{View: view}
}

func (s *Server) loadSummary(ctx context.Context, r *http.Request, p MonthParams) summaryPartial {
	view, err := s.dashboard.Summary(ctx, p.Year, p.Month, p.DateTo)
	if err != nil {
		status := statusFor(err)
		logFailure(r, applog.OpRead, status, err)
		return summaryPartial{Year: p.Year, Error: publicMessage(err, status)}
	}
	return summaryPartial{
		View:     view,
		Year:     p.Year,
		Gradient: pieGradient(view.Slices),
	}
}

// pieGradient draws the pie as a CSS conic gradient, one band per slice in
// slice order. Colours are generated "#rrggbb" values, never user input.
func pieGradient(slices []services.SummarySlice) template.CSS {
	if len(slices) == 0 {
		return ""
	}
	var (
		b     strings.Builder
		start float64
	)
	b.WriteString("conic-gradient(")
	for i, sl := range slices {
		end := start + sl.Percent
		if i == len(slices)-1 {
			end = 100
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.3f%% %.3f%%", sl.Color, start, end)
		start = end
	}
	b.WriteString(")")
	return template.CSS(b.String())
}
