package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// AddExpense validates draft against the group, splits it and commits the
// expense together with the updated balances. actingID must be a member; an
// empty PaidBy means actingID paid.
func (s *LedgerService) AddExpense(ctx context.Context, groupID, actingID string, draft ledger.ExpenseDraft) (_ *models.Expense, err error) {
	ctx, end := s.begin(ctx, "AddExpense", attribute.String("group_id", groupID), attribute.String("member_id", actingID))
	defer end(&err)

	if draft.PaidBy == "" {
		draft.PaidBy = actingID
	}
	if draft.Date == 0 {
		draft.Date = s.timestamp()
	}
	if draft.Amount > s.maxAmount {
		return nil, apperr.WithMetadata(apperr.CodeInvalidAmount, "amount exceeds maximum of "+s.maxAmount.String(),
			map[string]string{"amount": draft.Amount.String()})
	}

	// Validate against a plain read first so bad input never opens a
	// transaction.
	current, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	if err := ledger.AuthorizeMember(current, actingID); err != nil {
		return nil, err
	}
	if err := draft.Validate(current); err != nil {
		return nil, err
	}

	var (
		expense *models.Expense
		group   *models.Group
	)
	err = s.transact(ctx, "add expense", func(ctx context.Context, tx storage.Tx) error {
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return notFound(err, apperr.CodeGroupNotFound, groupID)
		}
		e, err := ledger.NewExpense(g, draft)
		if err != nil {
			return err
		}
		if err := ledger.Apply(g, e, s.timestamp()); err != nil {
			return err
		}
		if err := tx.CreateExpense(ctx, e); err != nil {
			return err
		}
		if err := tx.PutGroup(ctx, g); err != nil {
			return err
		}
		expense, group = e, g
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "AddExpense failed", "group_id", groupID, "member_id", actingID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "Expense added",
		"group_id", groupID,
		"expense_id", expense.ID,
		"member_id", actingID,
		"amount", expense.Amount.String(),
		"shared_by", len(expense.SharedBy),
	)
	s.afterCommit(ctx, models.LedgerEvent{
		Type:      models.EventExpenseAdded,
		GroupID:   groupID,
		ExpenseID: expense.ID,
		ActorID:   actingID,
		MemberIDs: group.MemberIDs,
		Group:     group,
	})
	return expense, nil
}

// DeleteExpense reverses the expense's stored split and deletes it in one
// transaction. Only the payer may delete.
func (s *LedgerService) DeleteExpense(ctx context.Context, expenseID, actingID string) (err error) {
	ctx, end := s.begin(ctx, "DeleteExpense", attribute.String("expense_id", expenseID), attribute.String("member_id", actingID))
	defer end(&err)

	var (
		expense *models.Expense
		group   *models.Group
	)
	err = s.transact(ctx, "delete expense", func(ctx context.Context, tx storage.Tx) error {
		e, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return notFound(err, apperr.CodeExpenseNotFound, expenseID)
		}
		if err := ledger.AuthorizeExpenseDelete(e, actingID); err != nil {
			return err
		}
		g, err := tx.GetGroup(ctx, e.GroupID)
		if err != nil {
			return notFound(err, apperr.CodeGroupNotFound, e.GroupID)
		}
		if err := ledger.Reverse(g, e, s.timestamp()); err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, expenseID); err != nil {
			return notFound(err, apperr.CodeExpenseNotFound, expenseID)
		}
		if err := tx.PutGroup(ctx, g); err != nil {
			return err
		}
		expense, group = e, g
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "DeleteExpense failed", "expense_id", expenseID, "member_id", actingID, "error", err)
		return err
	}

	s.logger.InfoContext(ctx, "Expense deleted", "group_id", group.ID, "expense_id", expenseID, "member_id", actingID)
	s.afterCommit(ctx, models.LedgerEvent{
		Type:      models.EventExpenseDeleted,
		GroupID:   group.ID,
		ExpenseID: expense.ID,
		ActorID:   actingID,
		MemberIDs: group.MemberIDs,
		Group:     group,
	})
	return nil
}

// ListExpenses returns a group's expenses, newest first, to one of its
// members.
func (s *LedgerService) ListExpenses(ctx context.Context, groupID, actingID string) (_ []*models.Expense, err error) {
	ctx, end := s.begin(ctx, "ListExpenses", attribute.String("group_id", groupID))
	defer end(&err)

	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	if err := ledger.AuthorizeMember(g, actingID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("list expenses", err)
	}
	return expenses, nil
}
