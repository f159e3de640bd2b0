package models

import "github.com/mmynk/splitledger/internal/money"

// Expense is one payment made by a member on behalf of others in the group.
// It is immutable: edits are modelled as delete + create by the caller.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group whose ledger this expense affects.
	GroupID string

	// Title is the human-readable description (e.g., "Dinner").
	Title string

	// Amount is the total paid, always positive.
	Amount money.Money

	// PaidBy is the member who paid. They need not appear in SharedBy.
	PaidBy MemberRef

	// SharedBy lists each member's share. Shares sum exactly to Amount.
	SharedBy []Share

	// Date is the Unix timestamp of the expense.
	Date int64
}

// MemberRef is a denormalised member identity stored on expenses.
type MemberRef struct {
	ID         string
	Name       string
	ProfileURL string
}

// Share is one member's portion of an expense.
type Share struct {
	MemberID string
	Name     string
	Amount   money.Money
}

// ShareOf returns the share for memberID, if any.
func (e *Expense) ShareOf(memberID string) (money.Money, bool) {
	for _, s := range e.SharedBy {
		if s.MemberID == memberID {
			return s.Amount, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the expense.
func (e *Expense) Clone() *Expense {
	if e == nil {
		return nil
	}
	c := *e
	c.SharedBy = append([]Share(nil), e.SharedBy...)
	return &c
}
