package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensedash/internal/core"
)

// EventKind names the mutation an ExpenseEvent reports.
type EventKind string

const (
	ExpenseCreated EventKind = "expense.created"
	ExpenseUpdated EventKind = "expense.updated"
	ExpenseDeleted EventKind = "expense.deleted"
)

func (k EventKind) valid() bool {
	switch k {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
		return true
	}
	return false
}

// ExpenseEvent is a lightweight notification that an expense changed.
// Consumers re-read what they need from the backend.
type ExpenseEvent struct {
	Kind      EventKind `json:"kind"`
	ExpenseID string    `json:"expense_id"`
	Date      string    `json:"date,omitempty"` // YYYY-MM-DD, empty for deletes
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time. source
// identifies the publishing process so it can ignore its own events.
func NewExpenseEvent(kind EventKind, id string, date core.Date, source string) *ExpenseEvent {
	return &ExpenseEvent{
		Kind:      kind,
		ExpenseID: id,
		Date:      date.String(),
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes an event and rejects unknown kinds.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.valid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}
