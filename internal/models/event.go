package models

// EventType names a committed change to a ledger.
type EventType string

const (
	EventGroupCreated   EventType = "group.created"
	EventMemberJoined   EventType = "group.member_joined"
	EventGroupDeleted   EventType = "group.deleted"
	EventExpenseAdded   EventType = "expense.added"
	EventExpenseDeleted EventType = "expense.deleted"
)

// LedgerEvent describes a change after it has been committed.
type LedgerEvent struct {
	Type      EventType
	GroupID   string
	ExpenseID string
	ActorID   string

	// MemberIDs is the group's roster after the change; for a deleted group,
	// the roster it had.
	MemberIDs []string

	// Group is the committed group state. Nil for deletions.
	Group *Group

	OccurredAt int64
}
