package calculator

import (
	"cmp"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	MemberID   string
	MemberName string
	NetBalance money.Money // Positive = owed money, Negative = owes money
}

// DebtEdge represents a suggested payment from one member to another.
type DebtEdge struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount money.Money
}

// CalculateGroupBalances lists each member's balance and the payments that
// would settle the group.
//
// Algorithm:
// - Creditors (positive balance) and debtors (negative) are sorted by size
// - Greedy matching: the largest debt pays the largest credit until one is cleared
// - Amounts stay in cents, so the edges settle every balance exactly
func CalculateGroupBalances(group *models.Group) ([]MemberBalance, []DebtEdge) {
	balances := make([]MemberBalance, len(group.Members))
	for i, m := range group.Members {
		balances[i] = MemberBalance{MemberID: m.ID, MemberName: m.Name, NetBalance: m.Balance}
	}
	return balances, SimplifyDebts(group.Members)
}

// SimplifyDebts turns balances into at most n-1 payments that settle them.
func SimplifyDebts(members []models.Member) []DebtEdge {
	type position struct {
		id     string
		amount money.Money
	}

	// Create lists of creditors (owed money) and debtors (owe money)
	var creditors, debtors []position
	for _, m := range members {
		switch m.Balance.Sign() {
		case 1:
			creditors = append(creditors, position{m.ID, m.Balance})
		case -1:
			debtors = append(debtors, position{m.ID, m.Balance.Abs()})
		}
	}

	bySize := func(a, b position) int {
		if c := b.amount.Cmp(a.amount); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	}
	slices.SortFunc(creditors, bySize)
	slices.SortFunc(debtors, bySize)

	// Greedy algorithm: match largest debts with largest credits
	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{
			From:   debtors[i].id,
			To:     creditors[j].id,
			Amount: amount,
		})

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		// Move to next debtor/creditor if fully settled
		if debtors[i].amount.IsZero() {
			i++
		}
		if creditors[j].amount.IsZero() {
			j++
		}
	}
	return edges
}
