package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensedash/internal/amqp"
	"expensedash/internal/core"
	"expensedash/internal/ports"
)

func validExpense() core.Expense {
	return core.Expense{
		CategoryID:  "food",
		Description: "Lunch",
		Amount:      core.Money{Cents: 1250},
		Date:        core.NewDate(2024, time.March, 5),
	}
}

func TestNewExpenseService(t *testing.T) {
	service := NewExpenseService(nil, nil, "", nil)
	if service == nil {
		t.Fatal("NewExpenseService should return a non-nil service")
	}
	if service.publisher != nil {
		t.Error("publisher should be nil when passed nil")
	}
}

func TestExpenseService_Create(t *testing.T) {
	store := newCountingStore()
	pub := &fakePublisher{}
	service := NewExpenseService(store, pub, "node-a", nil)

	hooks := 0
	service.OnChange(func() { hooks++ })

	saved, err := service.Create(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if saved.ID == "" {
		t.Error("saved expense should carry an id")
	}
	if hooks != 1 {
		t.Errorf("change hooks ran %d times, want 1", hooks)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != amqp.ExpenseCreated || ev.ExpenseID != saved.ID || ev.Date != "2024-03-05" || ev.Source != "node-a" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestExpenseService_ValidationNeverReachesBackend(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*core.Expense)
		wantErr error
	}{
		{"missing date", func(e *core.Expense) { e.Date = core.Date{} }, core.ErrInvalidDate},
		{"blank description", func(e *core.Expense) { e.Description = "   " }, core.ErrEmptyDescription},
		{"zero amount", func(e *core.Expense) { e.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"no category", func(e *core.Expense) { e.CategoryID = "" }, core.ErrEmptyCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			pub := &fakePublisher{}
			service := NewExpenseService(store, pub, "", nil)
			hooks := 0
			service.OnChange(func() { hooks++ })

			e := validExpense()
			tt.mutate(&e)

			if _, err := service.Create(context.Background(), e); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := service.Update(context.Background(), "some-id", e); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}

			list, _ := store.Store.ListExpenses(context.Background(), ports.ListOptions{})
			if len(list) != 0 {
				t.Errorf("invalid expense reached the backend: %v", list)
			}
			if hooks != 0 || len(pub.published()) != 0 {
				t.Error("rejected input must not invalidate caches or publish events")
			}
		})
	}
}

func TestExpenseService_UpdateAndDelete(t *testing.T) {
	store := newCountingStore()
	pub := &fakePublisher{}
	service := NewExpenseService(store, pub, "", nil)
	ctx := context.Background()

	saved, err := service.Create(ctx, validExpense())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	changed := validExpense()
	changed.Description = "Dinner"
	updated, err := service.Update(ctx, saved.ID, changed)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != saved.ID || updated.Description != "Dinner" {
		t.Errorf("unexpected update result %+v", updated)
	}

	if err := service.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	events := pub.published()
	if len(events) != 3 {
		t.Fatalf("published %d events, want 3", len(events))
	}
	if events[1].Kind != amqp.ExpenseUpdated || events[2].Kind != amqp.ExpenseDeleted {
		t.Errorf("unexpected event kinds %s, %s", events[1].Kind, events[2].Kind)
	}
	if events[2].Date != "" {
		t.Errorf("delete events carry no date, got %q", events[2].Date)
	}
}

func TestExpenseService_FailedMutationLeavesCachesAlone(t *testing.T) {
	store := newCountingStore()
	pub := &fakePublisher{}
	service := NewExpenseService(store, pub, "", nil)
	hooks := 0
	service.OnChange(func() { hooks++ })

	err := service.Delete(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := service.Update(context.Background(), "missing", validExpense()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
	if hooks != 0 || len(pub.published()) != 0 {
		t.Error("failed mutations must not invalidate or publish")
	}
}

func TestExpenseService_MissingID(t *testing.T) {
	service := NewExpenseService(newCountingStore(), nil, "", nil)

	if err := service.Delete(context.Background(), ""); !errors.Is(err, core.ErrMissingID) {
		t.Errorf("Delete(\"\") error = %v, want ErrMissingID", err)
	}
	if _, err := service.Update(context.Background(), "", validExpense()); !errors.Is(err, core.ErrMissingID) {
		t.Errorf("Update(\"\") error = %v, want ErrMissingID", err)
	}
}

func TestExpenseService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	service := NewExpenseService(newCountingStore(), pub, "", nil)
	hooks := 0
	service.OnChange(func() { hooks++ })

	if _, err := service.Create(context.Background(), validExpense()); err != nil {
		t.Fatalf("Create() should succeed when publishing fails, got %v", err)
	}
	if hooks != 1 {
		t.Errorf("caches should still be invalidated, hooks = %d", hooks)
	}
}

func TestExpenseService_WithoutPublisher(t *testing.T) {
	service := NewExpenseService(newCountingStore(), nil, "", nil)
	if _, err := service.Create(context.Background(), validExpense()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}
