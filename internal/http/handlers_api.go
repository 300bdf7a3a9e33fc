package http

import (
	"fmt"
	"net/http"

	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"
	"expensedash/internal/wire"
)

// handleListExpenses serves GET /api/expenses?dateTo=YYYY-MM-DD.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	dateTo, err := core.ParseDate(r.URL.Query().Get("dateTo"))
	if err != nil {
		failJSON(w, r, applog.OpList, err)
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	list, err := s.dashboard.Expenses(ctx, dateTo)
	if err != nil {
		failJSON(w, r, applog.OpList, err)
		return
	}

	out := make([]wire.Expense, len(list))
	for i, e := range list {
		out[i] = wire.FromExpense(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateExpense serves POST /api/expenses. JSON clients get the stored
// record back; the dashboard form gets an HTML confirmation plus triggers.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.decodeExpense(r)
	if err == nil {
		ctx, cancel := backendContext(r)
		defer cancel()
		e, err = s.expenses.Create(ctx, e)
	}

	if err != nil {
		if isHTMX(r) {
			s.failHTML(w, r, applog.OpCreate, err)
			return
		}
		failJSON(w, r, applog.OpCreate, err)
		return
	}

	if isHTMX(r) {
		SuccessResponse(fmt.Sprintf("Expense saved: %s, %s", e.Description, s.dashboard.FormatMoney(e.Amount))).
			TriggerExpenseCreated(e.ID, e.Date.String()).
			Write(w)
		return
	}
	writeJSON(w, http.StatusCreated, wire.FromExpense(e))
}

// handleUpdateExpense serves PATCH /api/expenses/{id}. The body replaces
// every field of the stored record.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	e, err := s.decodeExpense(r)
	if err != nil {
		failJSON(w, r, applog.OpUpdate, err)
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	saved, err := s.expenses.Update(ctx, id, e)
	if err != nil {
		failJSON(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromExpense(saved))
}

// handleDeleteExpense serves DELETE /api/expenses/{id}. Deletes from the
// dashboard page answer with an empty body, which removes the table row, and
// the expense:deleted and show-notification triggers.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ctx, cancel := backendContext(r)
	defer cancel()

	if err := s.expenses.Delete(ctx, id); err != nil {
		if isHTMX(r) {
			s.failHTML(w, r, applog.OpDelete, err)
			return
		}
		failJSON(w, r, applog.OpDelete, err)
		return
	}

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerExpenseDeleted(id).
			TriggerSuccessNotification("Expense deleted").
			Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDashboard serves GET /api/expenses/dashboard?month=&year=&dateTo=
// with a zero-based month.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.dashboard.Today(), true)
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}

	ctx, cancel := backendContext(r)
	defer cancel()

	d, err := s.dashboard.Dashboard(ctx, ports.DashboardQuery{
		Year:   params.Year,
		Month:  params.Month,
		DateTo: params.DateTo,
	})
	if err != nil {
		failJSON(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromDashboard(d))
}

// handleMasterData serves GET /api/master-data, the category list.
func (s *Server) handleMasterData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := backendContext(r)
	defer cancel()

	cats, err := s.dashboard.Categories(ctx)
	if err != nil {
		failJSON(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromCategories(cats))
}

func (s *Server) decodeExpense(r *http.Request) (core.Expense, error) {
	form, err := NewRequestBodyParser(r).ExpenseForm()
	if err != nil {
		return core.Expense{}, err
	}
	return form.ToExpense(s.dashboard.Location())
}

// failHTML answers an htmx request with an inline error and an error notification.
func (s *Server) failHTML(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logFailure(r, op, status, err)
	ErrorResponse(status, publicMessage(err, status)).Write(w)
}
