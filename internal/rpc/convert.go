package rpc

import (
	"cmp"
	"slices"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

func toGroup(g *models.Group) *Group {
	if g == nil {
		return nil
	}
	members := make([]Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = Member{ID: m.ID, Name: m.Name, ProfileURL: m.ProfileURL, Balance: m.Balance}
	}
	return &Group{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		CreatedBy:     g.CreatedBy,
		MemberIDs:     append([]string{}, g.MemberIDs...),
		Members:       members,
		TotalExpenses: g.TotalExpenses,
		TotalBalance:  g.TotalBalance,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		Deleting:      g.Deleting,
	}
}

func toGroups(groups []*models.Group) []*Group {
	out := make([]*Group, len(groups))
	for i, g := range groups {
		out[i] = toGroup(g)
	}
	return out
}

func toExpense(e *models.Expense) *Expense {
	if e == nil {
		return nil
	}
	shares := make([]Share, len(e.SharedBy))
	for i, s := range e.SharedBy {
		shares[i] = Share{MemberID: s.MemberID, Name: s.Name, Amount: s.Amount}
	}
	return &Expense{
		ID:       e.ID,
		GroupID:  e.GroupID,
		Title:    e.Title,
		Amount:   e.Amount,
		PaidBy:   MemberRef{ID: e.PaidBy.ID, Name: e.PaidBy.Name, ProfileURL: e.PaidBy.ProfileURL},
		SharedBy: shares,
		Date:     e.Date,
	}
}

func toExpenses(expenses []*models.Expense) []*Expense {
	out := make([]*Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toExpense(e)
	}
	return out
}

func toSummary(s models.GroupSummary) *Summary {
	counterparties := make([]Counterparty, 0, len(s.PerCounterparty))
	for id, balance := range s.PerCounterparty {
		counterparties = append(counterparties, Counterparty{
			MemberID: id,
			Name:     s.CounterpartyNames[id],
			Balance:  balance,
		})
	}
	slices.SortFunc(counterparties, func(a, b Counterparty) int {
		return cmp.Compare(a.MemberID, b.MemberID)
	})
	return &Summary{
		TotalOwedToUser: s.TotalOwedToUser,
		TotalUserOwes:   s.TotalUserOwes,
		NetBalance:      s.NetBalance,
		Counterparties:  counterparties,
		TotalPaid:       s.TotalPaid,
		TotalShare:      s.TotalShare,
	}
}

func toBalances(balances []calculator.MemberBalance) []Balance {
	out := make([]Balance, len(balances))
	for i, b := range balances {
		out[i] = Balance{MemberID: b.MemberID, MemberName: b.MemberName, NetBalance: b.NetBalance}
	}
	return out
}

func toSettlements(edges []calculator.DebtEdge) []Settlement {
	out := make([]Settlement, len(edges))
	for i, e := range edges {
		out[i] = Settlement{From: e.From, To: e.To, Amount: e.Amount}
	}
	return out
}
