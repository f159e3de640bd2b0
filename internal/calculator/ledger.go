package calculator

import (
	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ExpenseDeltas returns the balance change an expense causes for each member
// it touches. The payer is credited the full amount and every sharer
// (including the payer, if sharing) is debited their share, so the deltas
// always sum to zero when the split is valid.
//
// The result depends only on the expense, which is what lets ReverseExpense
// undo it exactly regardless of what happened to the balances in between.
func ExpenseDeltas(e *models.Expense) map[string]money.Money {
	deltas := make(map[string]money.Money, len(e.SharedBy)+1)
	deltas[e.PaidBy.ID] = deltas[e.PaidBy.ID].Add(e.Amount)
	for _, s := range e.SharedBy {
		deltas[s.MemberID] = deltas[s.MemberID].Sub(s.Amount)
	}
	return deltas
}

// ApplyExpense returns a copy of members with the expense's effect applied:
// payer += amount - payerShare, every other sharer -= share.
func ApplyExpense(members []models.Member, e *models.Expense) ([]models.Member, error) {
	return applyDeltas(members, e, 1)
}

// ReverseExpense is the exact inverse of ApplyExpense for the same expense.
func ReverseExpense(members []models.Member, e *models.Expense) ([]models.Member, error) {
	return applyDeltas(members, e, -1)
}

func applyDeltas(members []models.Member, e *models.Expense, sign money.Money) ([]models.Member, error) {
	if err := CheckSplit(e); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.ID] = i
	}
	deltas := ExpenseDeltas(e)
	for id := range deltas {
		if _, ok := index[id]; !ok {
			return nil, apperr.WithMetadata(apperr.CodeUnknownMember, "member is not in the group",
				map[string]string{"member_id": id, "expense_id": e.ID})
		}
	}

	updated := append([]models.Member(nil), members...)
	for id, d := range deltas {
		i := index[id]
		updated[i].Balance = updated[i].Balance.Add(d * sign)
	}

	if err := CheckBalanced(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// CheckBalanced verifies the closed-ledger invariant: balances sum to zero.
func CheckBalanced(members []models.Member) error {
	var total money.Money
	for _, m := range members {
		total = total.Add(m.Balance)
	}
	if !total.IsZero() {
		return apperr.WithMetadata(apperr.CodeLedgerInvariant, "ledger balances do not sum to zero",
			map[string]string{"sum": total.String()})
	}
	return nil
}

// OutstandingCredit sums the positive balances: how much creditors are owed.
func OutstandingCredit(members []models.Member) money.Money {
	var total money.Money
	for _, m := range members {
		if m.Balance > 0 {
			total = total.Add(m.Balance)
		}
	}
	return total
}
