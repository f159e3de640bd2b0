package firestore

import (
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

const (
	groupsCollection   = "groups"
	expensesCollection = "expenses"
)

type groupDoc struct {
	Name          string      `firestore:"name"`
	Description   string      `firestore:"description"`
	CreatedBy     string      `firestore:"createdBy"`
	MemberIDs     []string    `firestore:"memberIds"`
	Members       []memberDoc `firestore:"members"`
	TotalExpenses int64       `firestore:"totalExpenses"`
	TotalBalance  int64       `firestore:"totalBalance"`
	CreatedAt     int64       `firestore:"createdAt"`
	UpdatedAt     int64       `firestore:"updatedAt"`
	Version       int64       `firestore:"version"`
	Deleting      bool        `firestore:"deleting,omitempty"`
}

type memberDoc struct {
	ID         string `firestore:"id"`
	Name       string `firestore:"name"`
	ProfileURL string `firestore:"profileUrl"`
	Balance    int64  `firestore:"balance"`
}

type expenseDoc struct {
	GroupID  string     `firestore:"groupId"`
	Title    string     `firestore:"title"`
	Amount   int64      `firestore:"amount"`
	PaidBy   refDoc     `firestore:"paidBy"`
	SharedBy []shareDoc `firestore:"sharedBy"`
	Date     int64      `firestore:"date"`
}

type refDoc struct {
	ID         string `firestore:"id"`
	Name       string `firestore:"name"`
	ProfileURL string `firestore:"profileUrl"`
}

type shareDoc struct {
	MemberID string `firestore:"memberId"`
	Name     string `firestore:"name"`
	Amount   int64  `firestore:"amount"`
}

func toGroupDoc(g *models.Group) groupDoc {
	d := groupDoc{
		Name:          g.Name,
		Description:   g.Description,
		CreatedBy:     g.CreatedBy,
		MemberIDs:     append([]string{}, g.MemberIDs...),
		TotalExpenses: g.TotalExpenses.Minor(),
		TotalBalance:  g.TotalBalance.Minor(),
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		Version:       g.Version,
		Deleting:      g.Deleting,
	}
	for _, m := range g.Members {
		d.Members = append(d.Members, memberDoc{ID: m.ID, Name: m.Name, ProfileURL: m.ProfileURL, Balance: m.Balance.Minor()})
	}
	return d
}

func (d groupDoc) model(id string) *models.Group {
	g := &models.Group{
		ID:            id,
		Name:          d.Name,
		Description:   d.Description,
		CreatedBy:     d.CreatedBy,
		MemberIDs:     d.MemberIDs,
		TotalExpenses: money.FromMinor(d.TotalExpenses),
		TotalBalance:  money.FromMinor(d.TotalBalance),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		Version:       d.Version,
		Deleting:      d.Deleting,
	}
	for _, m := range d.Members {
		g.Members = append(g.Members, models.Member{ID: m.ID, Name: m.Name, ProfileURL: m.ProfileURL, Balance: money.FromMinor(m.Balance)})
	}
	return g
}

func toExpenseDoc(e *models.Expense) expenseDoc {
	d := expenseDoc{
		GroupID: e.GroupID,
		Title:   e.Title,
		Amount:  e.Amount.Minor(),
		PaidBy:  refDoc{ID: e.PaidBy.ID, Name: e.PaidBy.Name, ProfileURL: e.PaidBy.ProfileURL},
		Date:    e.Date,
	}
	for _, s := range e.SharedBy {
		d.SharedBy = append(d.SharedBy, shareDoc{MemberID: s.MemberID, Name: s.Name, Amount: s.Amount.Minor()})
	}
	return d
}

func (d expenseDoc) model(id string) *models.Expense {
	e := &models.Expense{
		ID:      id,
		GroupID: d.GroupID,
		Title:   d.Title,
		Amount:  money.FromMinor(d.Amount),
		PaidBy:  models.MemberRef{ID: d.PaidBy.ID, Name: d.PaidBy.Name, ProfileURL: d.PaidBy.ProfileURL},
		Date:    d.Date,
	}
	for _, s := range d.SharedBy {
		e.SharedBy = append(e.SharedBy, models.Share{MemberID: s.MemberID, Name: s.Name, Amount: money.FromMinor(s.Amount)})
	}
	return e
}
