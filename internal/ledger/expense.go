package ledger

import (
	"slices"
	"strings"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ExpenseDraft is an unvalidated request to add an expense.
type ExpenseDraft struct {
	Title  string
	Amount money.Money
	PaidBy string
	// SharedBy lists the member ids splitting the expense. Order is kept and
	// decides who absorbs leftover cents.
	SharedBy []string
	Date     int64
}

// Validate checks the draft against the group's current roster without
// touching any state.
func (d ExpenseDraft) Validate(g *models.Group) error {
	if strings.TrimSpace(d.Title) == "" {
		return apperr.New(apperr.CodeInvalidTitle, "title is required")
	}
	if d.Amount <= 0 {
		return apperr.WithMetadata(apperr.CodeInvalidAmount, "amount must be greater than zero",
			map[string]string{"amount": d.Amount.String()})
	}
	if len(d.SharedBy) == 0 {
		return apperr.ErrNoParticipants
	}
	if !g.HasMember(d.PaidBy) {
		return apperr.WithMetadata(apperr.CodeUnknownMember, "payer is not in the group",
			map[string]string{"group_id": g.ID, "member_id": d.PaidBy})
	}
	for i, id := range d.SharedBy {
		if !g.HasMember(id) {
			return apperr.WithMetadata(apperr.CodeUnknownMember, "selected member is not in the group",
				map[string]string{"group_id": g.ID, "member_id": id})
		}
		if slices.Contains(d.SharedBy[:i], id) {
			return apperr.WithMetadata(apperr.CodeInvalidArgument, "member selected twice",
				map[string]string{"member_id": id})
		}
	}
	return nil
}

// NewExpense validates the draft and builds the expense with its split
// computed. The expense has no ID yet; the store assigns one.
func NewExpense(g *models.Group, d ExpenseDraft) (*models.Expense, error) {
	if err := checkOpen(g); err != nil {
		return nil, err
	}
	if err := d.Validate(g); err != nil {
		return nil, err
	}

	payer, _ := g.Member(d.PaidBy)
	sharers := make([]models.MemberRef, len(d.SharedBy))
	for i, id := range d.SharedBy {
		m, _ := g.Member(id)
		sharers[i] = m.Ref()
	}
	shares, err := calculator.CalculateSplit(d.Amount, sharers)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		GroupID:  g.ID,
		Title:    strings.TrimSpace(d.Title),
		Amount:   d.Amount,
		PaidBy:   payer.Ref(),
		SharedBy: shares,
		Date:     d.Date,
	}, nil
}

// Apply adds the expense's effect to the group: balances, totals and
// UpdatedAt. On error the group is left untouched.
func Apply(g *models.Group, e *models.Expense, now int64) error {
	members, err := calculator.ApplyExpense(g.Members, e)
	if err != nil {
		return err
	}
	return commit(g, members, g.TotalExpenses.Add(e.Amount), now)
}

// Reverse removes the expense's effect using its stored split. TotalExpenses
// is clamped at zero. On error the group is left untouched.
func Reverse(g *models.Group, e *models.Expense, now int64) error {
	members, err := calculator.ReverseExpense(g.Members, e)
	if err != nil {
		return err
	}
	return commit(g, members, max(g.TotalExpenses.Sub(e.Amount), money.Zero), now)
}

// AuthorizeExpenseDelete allows only the original payer to delete an expense.
func AuthorizeExpenseDelete(e *models.Expense, actingID string) error {
	if e.PaidBy.ID != actingID {
		return apperr.WithMetadata(apperr.CodeNotPayer, "you can only delete expenses you paid",
			map[string]string{"expense_id": e.ID, "member_id": actingID})
	}
	return nil
}

func commit(g *models.Group, members []models.Member, total money.Money, now int64) error {
	next := g.Clone()
	next.Members = members
	next.TotalExpenses = total
	next.TotalBalance = calculator.OutstandingCredit(members)
	next.UpdatedAt = now
	if err := CheckInvariants(next); err != nil {
		return err
	}
	*g = *next
	return nil
}
