package ledger

import (
	"context"
	"time"
)

type EventType string

const (
	EventAppended   EventType = "transaction.appended"
	EventUpdated    EventType = "transaction.updated"
	EventRemoved    EventType = "transaction.removed"
	EventReconciled EventType = "pocket.reconciled"
)

// Event announces a committed log mutation.
type Event struct {
	Type           EventType `json:"type"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	PocketID       string    `json:"pocket_id,omitempty"`
	GoalID         string    `json:"goal_id,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher receives events after the log has committed.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
}

// publish never fails the mutation; the record is already stored.
func (l *Ledger) publish(ctx context.Context, ev Event) {
	if l.publisher == nil {
		return
	}
	ev.At = l.now()
	if err := l.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type, "error", err)
	}
}
