package events

import (
	"encoding/json"
	"time"
)

const (
	TypeTransactionCreated = "transaction.created"
	TypeTransactionUpdated = "transaction.updated"
	TypeTransactionDeleted = "transaction.deleted"
)

// TransactionEvent is the wire message published on transaction writes.
type TransactionEvent struct {
	Type          string    `json:"type"`
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewTransactionEvent(eventType string, transactionID, userID int64) TransactionEvent {
	return TransactionEvent{
		Type:          eventType,
		TransactionID: transactionID,
		UserID:        userID,
		OccurredAt:    time.Now().UTC(),
	}
}

func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
