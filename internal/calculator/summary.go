package calculator

import (
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Summarize folds a user's groups into one cross-group position.
//
// For each group the user belongs to, a positive balance counts toward
// TotalOwedToUser and a negative one toward TotalUserOwes. Every other member
// seen in those groups gets a PerCounterparty bucket holding the negated sum
// of their balances, keyed by member id across all groups. That bucket mixes
// unrelated groups and is not a bilateral debt between the user and the
// counterparty; callers should present it as an indication only.
//
// Groups that do not contain the user are skipped.
func Summarize(groups []*models.Group, userID string) models.GroupSummary {
	summary := models.GroupSummary{
		UserID:            userID,
		PerCounterparty:   make(map[string]money.Money),
		CounterpartyNames: make(map[string]string),
	}

	for _, g := range groups {
		me, ok := g.Member(userID)
		if !ok {
			continue
		}
		switch me.Balance.Sign() {
		case 1:
			summary.TotalOwedToUser = summary.TotalOwedToUser.Add(me.Balance)
		case -1:
			summary.TotalUserOwes = summary.TotalUserOwes.Add(me.Balance.Abs())
		}

		for _, m := range g.Members {
			if m.ID == userID {
				continue
			}
			summary.PerCounterparty[m.ID] = summary.PerCounterparty[m.ID].Sub(m.Balance)
			summary.CounterpartyNames[m.ID] = m.Name
		}
	}

	summary.NetBalance = summary.TotalOwedToUser.Sub(summary.TotalUserOwes)
	return summary
}

// Spending holds what a user paid and what their own shares came to.
type Spending struct {
	Paid  money.Money
	Share money.Money
}

// SpendingTotals sums, over the given expenses, the amounts the user paid and
// the user's own shares.
func SpendingTotals(expenses []*models.Expense, userID string) Spending {
	var s Spending
	for _, e := range expenses {
		if e.PaidBy.ID == userID {
			s.Paid = s.Paid.Add(e.Amount)
		}
		if share, ok := e.ShareOf(userID); ok {
			s.Share = s.Share.Add(share)
		}
	}
	return s
}
