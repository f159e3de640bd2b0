package models

import "github.com/mmynk/splitledger/internal/money"

// GroupSummary is a user's position across every group they belong to.
// It is derived on demand and never persisted.
type GroupSummary struct {
	UserID string

	// TotalOwedToUser sums the user's positive balances across groups.
	TotalOwedToUser money.Money

	// TotalUserOwes sums the magnitudes of the user's negative balances.
	TotalUserOwes money.Money

	// NetBalance is TotalOwedToUser - TotalUserOwes.
	NetBalance money.Money

	// PerCounterparty maps each other member to the sum of their balances
	// across the user's groups, negated so that positive means "owes you".
	// Different groups are folded into one bucket per member.
	PerCounterparty map[string]money.Money

	// CounterpartyNames holds the last seen display name for each counterparty.
	CounterpartyNames map[string]string

	// TotalPaid and TotalShare are spending figures from expenses: what the
	// user paid, and what the user's own shares added up to.
	TotalPaid  money.Money
	TotalShare money.Money
}
