package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"clubfines/internal/core"
)

// LedgerChangeMessage announces a committed ledger mutation. It carries
// enough to log and route; consumers re-read the full state from the store.
type LedgerChangeMessage struct {
	MessageID string    `json:"message_id"`
	Op        string    `json:"op"`
	EntryID   int64     `json:"entry_id,omitempty"`
	Member    string    `json:"member,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Balance   int64     `json:"balance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage builds a message for c with a fresh message id.
func NewLedgerChangeMessage(c core.Change) *LedgerChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &LedgerChangeMessage{
		MessageID: uuid.NewString(),
		Op:        string(c.Op),
		EntryID:   c.EntryID,
		Member:    c.Member,
		Amount:    c.Amount,
		Balance:   c.Balance,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
