package calculator

import (
	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// CalculateSplit divides amount evenly across participants, in roster order.
// Leftover cents go to the earliest participants so shares always sum to the
// amount exactly.
func CalculateSplit(amount money.Money, participants []models.MemberRef) ([]models.Share, error) {
	if len(participants) == 0 {
		return nil, apperr.ErrNoParticipants
	}
	if amount <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidAmount, "amount must be greater than zero, got %s", amount)
	}

	amounts := amount.SplitEvenly(len(participants))
	shares := make([]models.Share, len(participants))
	for i, p := range participants {
		shares[i] = models.Share{
			MemberID: p.ID,
			Name:     p.Name,
			Amount:   amounts[i],
		}
	}
	return shares, nil
}

// CheckSplit verifies that an expense's shares add up to its amount and that
// no member appears twice.
func CheckSplit(e *models.Expense) error {
	if len(e.SharedBy) == 0 {
		return apperr.ErrNoParticipants
	}
	seen := make(map[string]bool, len(e.SharedBy))
	var total money.Money
	for _, s := range e.SharedBy {
		if seen[s.MemberID] {
			return apperr.WithMetadata(apperr.CodeSplitMismatch, "member shares the expense twice",
				map[string]string{"member_id": s.MemberID, "expense_id": e.ID})
		}
		seen[s.MemberID] = true
		total = total.Add(s.Amount)
	}
	if total != e.Amount {
		return apperr.WithMetadata(apperr.CodeSplitMismatch, "expense shares do not sum to amount",
			map[string]string{"expense_id": e.ID, "amount": e.Amount.String(), "shares": total.String()})
	}
	return nil
}
