package amqp

import (
	"encoding/json"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// EventMessage is the JSON body of a published ledger event. Consumers
// fetch full state over RPC; the message only says what changed.
type EventMessage struct {
	Type          string      `json:"type"`
	GroupID       string      `json:"groupId"`
	ExpenseID     string      `json:"expenseId,omitempty"`
	ActorID       string      `json:"actorId"`
	MemberIDs     []string    `json:"memberIds"`
	TotalExpenses money.Money `json:"totalExpenses"`
	Version       int64       `json:"version,omitempty"`
	OccurredAt    time.Time   `json:"occurredAt"`
}

// NewEventMessage builds the message for a committed event.
func NewEventMessage(e models.LedgerEvent) *EventMessage {
	msg := &EventMessage{
		Type:       string(e.Type),
		GroupID:    e.GroupID,
		ExpenseID:  e.ExpenseID,
		ActorID:    e.ActorID,
		MemberIDs:  e.MemberIDs,
		OccurredAt: time.Unix(e.OccurredAt, 0).UTC(),
	}
	if e.Group != nil {
		msg.TotalExpenses = e.Group.TotalExpenses
		msg.Version = e.Group.Version
	}
	return msg
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
