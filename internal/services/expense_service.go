// Package services holds the application logic between the HTTP/CLI surfaces
// and the data backends: mutations with their side effects, cached reads and
// the spreadsheet export loop.
package services

import (
	"context"
	"fmt"

	"expensedash/internal/amqp"
	"expensedash/internal/core"
	applog "expensedash/internal/log"
	"expensedash/internal/ports"
)

// EventPublisher sends expense change notifications. *amqp.Client
// implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ExpenseStore is the write side of a backend.
type ExpenseStore interface {
	ports.ExpenseWriter
	ports.ExpenseDeleter
}

// ExpenseService validates and applies expense mutations, then invalidates
// caches and announces the change.
type ExpenseService struct {
	store       ExpenseStore
	publisher   EventPublisher
	source      string
	invalidates []func()
	logger      *applog.Logger
}

// NewExpenseService creates the service. publisher may be nil when events are
// disabled; source tags published events with the emitting process.
func NewExpenseService(store ExpenseStore, publisher EventPublisher, source string, logger *applog.Logger) *ExpenseService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		source:    source,
		logger:    logger.WithComponent(applog.ComponentExpense),
	}
}

// OnChange registers a hook run after every successful mutation.
func (s *ExpenseService) OnChange(fn func()) {
	s.invalidates = append(s.invalidates, fn)
}

// Create validates e and stores it, returning the saved expense with its id.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithExpense(saved.ID, saved.Description, saved.Amount.Cents, saved.CategoryID).
		ToSlice()...)

	s.changed(ctx, amqp.ExpenseCreated, saved.ID, saved.Date)
	return saved, nil
}

// Update replaces the expense with the given id.
func (s *ExpenseService) Update(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	if id == "" {
		return core.Expense{}, core.ErrMissingID
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.UpdateExpense(ctx, id, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense updated", applog.NewFields().
		WithOperation(applog.OpUpdate).
		WithExpense(saved.ID, saved.Description, saved.Amount.Cents, saved.CategoryID).
		ToSlice()...)

	s.changed(ctx, amqp.ExpenseUpdated, saved.ID, saved.Date)
	return saved, nil
}

// Delete removes the expense with the given id.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrMissingID
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)

	s.changed(ctx, amqp.ExpenseDeleted, id, core.Date{})
	return nil
}

func (s *ExpenseService) changed(ctx context.Context, kind amqp.EventKind, id string, date core.Date) {
	for _, fn := range s.invalidates {
		fn()
	}

	if s.publisher == nil {
		return
	}
	// Publish failures never fail the mutation.
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(kind, id, date, s.source)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldExpenseID, id,
			"kind", kind,
			applog.FieldError, err)
	}
}
