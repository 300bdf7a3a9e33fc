package http

import (
	"net/http"

	"expensedash/internal/chart"
	applog "expensedash/internal/log"
	"expensedash/internal/services"
	"expensedash/internal/wire"
)

// maxColors bounds the colour scale endpoint.
const maxColors = 1024

type (
	filterJSON struct {
		Category    string `json:"category,omitempty"`
		Description string `json:"description,omitempty"`
		DateFrom    string `json:"dateFrom,omitempty"`
		DateTo      string `json:"dateTo,omitempty"`
	}

	expenseRowJSON struct {
		ID          string      `json:"_id"`
		Date        string      `json:"date"`
		Type        string      `json:"type"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
		Amount      wire.Amount `json:"amount"`
		AmountLabel string      `json:"amountLabel"`
	}

	monthJSON struct {
		Year  int `json:"year"`
		Month int `json:"month"` // 1-12
	}

	expenseViewJSON struct {
		Filter             filterJSON       `json:"filter"`
		HasActiveFilters   bool             `json:"hasActiveFilters"`
		Expenses           []expenseRowJSON `json:"expenses"`
		FilteredTotal      wire.Amount      `json:"filteredTotal"`
		FilteredTotalLabel string           `json:"filteredTotalLabel"`
		Month              monthJSON        `json:"month"`
		MonthTotal         wire.Amount      `json:"monthTotal"`
		MonthTotalLabel    string           `json:"monthTotalLabel"`
		Currency           string           `json:"currency"`
	}

	sliceJSON struct {
		CategoryID   string      `json:"categoryId"`
		Label        string      `json:"label"`
		Amount       wire.Amount `json:"amount"`
		AmountLabel  string      `json:"amountLabel"`
		Color        string      `json:"color"`
		Percent      float64     `json:"percent"`
		PercentLabel string      `json:"percentLabel"`
	}

	summaryJSON struct {
		Year       int         `json:"year"`
		Month      int         `json:"month"` // 1-12
		From       string      `json:"from"`
		To         string      `json:"to"`
		Total      wire.Amount `json:"total"`
		TotalLabel string      `json:"totalLabel"`
		Currency   string      `json:"currency"`
		Slices     []sliceJSON `json:"slices"`
	}

	colorsJSON struct {
		Colors []string `json:"colors"`
	}
)

// handleExpenseView serves GET /api/view/expenses, the filtered table with totals.
func (s *Server) handleExpenseView(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	view, err := s.dashboard.View(ctx, f)
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.expenseViewJSON(view))
}

// handleSummaryView serves GET /api/view/summary?month=1-12&year=&dateTo=.
func (s *Server) handleSummaryView(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.dashboard.Today(), false)
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	view, err := s.dashboard.Summary(ctx, params.Year, params.Month, params.DateTo)
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, s.summaryJSON(view))
}

// handleColors serves GET /api/colors?n=, n evenly spaced rainbow colours.
func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	n, err := ParseColorCount(r.URL.Query(), maxColors)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, colorsJSON{Colors: chart.HexScale(n)})
}

func (s *Server) expenseViewJSON(v services.ExpenseView) expenseViewJSON {
	rows := make([]expenseRowJSON, len(v.Rows))
	for i, row := range v.Rows {
		rows[i] = expenseRowJSON{
			ID:          row.ID,
			Date:        row.Date.String(),
			Type:        row.CategoryID,
			Category:    row.Category,
			Description: row.Description,
			Amount:      wire.AmountOf(row.Amount),
			AmountLabel: row.AmountLabel,
		}
	}

	return expenseViewJSON{
		Filter: filterJSON{
			Category:    v.Filter.CategoryID,
			Description: v.Filter.Description,
			DateFrom:    v.Filter.From.String(),
			DateTo:      v.Filter.To.String(),
		},
		HasActiveFilters:   v.HasActive,
		Expenses:           rows,
		FilteredTotal:      wire.AmountOf(v.FilteredTotal),
		FilteredTotalLabel: v.FilteredTotalLabel,
		Month:              monthJSON{Year: v.Month.Year(), Month: int(v.Month.Month())},
		MonthTotal:         wire.AmountOf(v.MonthTotal),
		MonthTotalLabel:    v.MonthTotalLabel,
		Currency:           s.dashboard.Currency(),
	}
}

func (s *Server) summaryJSON(v services.SummaryView) summaryJSON {
	slices := make([]sliceJSON, len(v.Slices))
	for i, sl := range v.Slices {
		slices[i] = sliceJSON{
			CategoryID:   sl.CategoryID,
			Label:        sl.Label,
			Amount:       wire.AmountOf(sl.Amount),
			AmountLabel:  sl.AmountLabel,
			Color:        sl.Color,
			Percent:      sl.Percent,
			PercentLabel: sl.PercentLabel,
		}
	}

	p := v.Dashboard.Period
	return summaryJSON{
		Year:       p.Year(),
		Month:      int(p.Month()),
		From:       p.Start.String(),
		To:         p.End.String(),
		Total:      wire.AmountOf(v.Dashboard.Total),
		TotalLabel: v.TotalLabel,
		Currency:   s.dashboard.Currency(),
		Slices:     slices,
	}
}
