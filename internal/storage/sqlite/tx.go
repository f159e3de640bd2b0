package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// sqlTx adapts *sql.Tx to storage.Tx and remembers what changed so the store
// can publish snapshots after commit.
type sqlTx struct {
	tx      *sql.Tx
	members map[string]bool
	groups  map[string]bool
}

// RunInTx runs fn inside a SQLite transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	t := &sqlTx{tx: tx, members: make(map[string]bool), groups: make(map[string]bool)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(fmt.Errorf("failed to commit transaction: %w", err))
	}

	if len(t.members) == 0 && len(t.groups) == 0 {
		return nil
	}
	s.seq.Add(1)
	memberIDs := make([]string, 0, len(t.members))
	for id := range t.members {
		memberIDs = append(memberIDs, id)
	}
	s.publishGroups(ctx, memberIDs)
	for id := range t.groups {
		s.publishExpenses(ctx, id)
	}
	return nil
}

func (t *sqlTx) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, t.tx, groupID)
}

func (t *sqlTx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT id, group_id, title, amount, paid_by_id, paid_by_name, paid_by_profile_url, date
		 FROM expenses WHERE id = ?`, expenseID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get expense: %w", err))
	}
	if e.SharedBy, err = loadShares(ctx, t.tx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// PutGroup updates the group row only if its version is unchanged, then
// rewrites the member rows.
func (t *sqlTx) PutGroup(ctx context.Context, group *models.Group) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, total_expenses = ?, total_balance = ?,
		        updated_at = ?, deleting = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		group.Name, group.Description, group.TotalExpenses.Minor(), group.TotalBalance.Minor(),
		group.UpdatedAt, group.Deleting, group.ID, group.Version,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update group: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", group.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}

	rows, err := t.tx.QueryContext(ctx, "SELECT member_id FROM group_members WHERE group_id = ?", group.ID)
	if err != nil {
		return fmt.Errorf("failed to get group members: %w", err)
	}
	previous, err := scanStrings(rows)
	if err != nil {
		return fmt.Errorf("failed to scan group members: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", group.ID); err != nil {
		return mapErr(fmt.Errorf("failed to clear group members: %w", err))
	}
	if err := insertMembers(ctx, t.tx, group); err != nil {
		return err
	}

	group.Version++
	for _, id := range previous {
		t.members[id] = true
	}
	for _, id := range group.MemberIDs {
		t.members[id] = true
	}
	return nil
}

func (t *sqlTx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, title, amount, paid_by_id, paid_by_name, paid_by_profile_url, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Title, expense.Amount.Minor(),
		expense.PaidBy.ID, expense.PaidBy.Name, expense.PaidBy.ProfileURL, expense.Date,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert expense: %w", err))
	}
	for i, sh := range expense.SharedBy {
		_, err := t.tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, member_id, position, name, amount) VALUES (?, ?, ?, ?, ?)",
			expense.ID, sh.MemberID, i, sh.Name, sh.Amount.Minor(),
		)
		if err != nil {
			return mapErr(fmt.Errorf("failed to insert share: %w", err))
		}
	}
	t.groups[expense.GroupID] = true
	return nil
}

func (t *sqlTx) DeleteExpense(ctx context.Context, expenseID string) error {
	var groupID string
	err := t.tx.QueryRowContext(ctx, "SELECT group_id FROM expenses WHERE id = ?", expenseID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return mapErr(fmt.Errorf("failed to get expense: %w", err))
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
		return mapErr(fmt.Errorf("failed to delete expense: %w", err))
	}
	t.groups[groupID] = true
	return nil
}
