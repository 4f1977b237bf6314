package amqp

import (
	"encoding/json"
	"time"

	"pockets/internal/ledger"
)

// EventMessage is the wire form of a committed ledger mutation. Consumers
// re-read the log rather than trusting the message body for balances.
type EventMessage struct {
	Type           string    `json:"type"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	PocketID       string    `json:"pocket_id,omitempty"`
	GoalID         string    `json:"goal_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewEventMessage converts a ledger event, stamping it now when it carries no time.
func NewEventMessage(ev ledger.Event) *EventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &EventMessage{
		Type:           string(ev.Type),
		TransactionIDs: ev.TransactionIDs,
		PocketID:       ev.PocketID,
		GoalID:         ev.GoalID,
		Timestamp:      ts,
	}
}

// Event converts the message back into a ledger event.
func (m *EventMessage) Event() ledger.Event {
	return ledger.Event{
		Type:           ledger.EventType(m.Type),
		TransactionIDs: m.TransactionIDs,
		PocketID:       m.PocketID,
		GoalID:         m.GoalID,
		At:             m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
