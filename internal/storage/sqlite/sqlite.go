// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/watch"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
//
// Transactions begin IMMEDIATE, so writers are serialised by SQLite's own
// lock; the version check on groups still guards writes based on a read made
// outside the transaction. A writer that cannot get the lock within the busy
// timeout gets storage.ErrConflict.
type SQLiteStore struct {
	db  *sql.DB
	seq atomic.Int64

	groupHub   *watch.Hub[*models.Group]
	expenseHub *watch.Hub[*models.Expense]
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		groupHub:   watch.NewHub[*models.Group](),
		expenseHub: watch.NewHub[*models.Expense](),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return loadGroup(ctx, s.db, groupID)
}

// CreateGroup persists a new group and its members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, description, created_by, total_expenses, total_balance, created_at, updated_at, version, deleting)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		group.ID, group.Name, group.Description, group.CreatedBy,
		group.TotalExpenses.Minor(), group.TotalBalance.Minor(), group.CreatedAt, group.UpdatedAt, group.Deleting,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert group: %w", err))
	}
	if err := insertMembers(ctx, tx, group); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(fmt.Errorf("failed to commit transaction: %w", err))
	}

	group.Version = 1
	s.seq.Add(1)
	s.publishGroups(ctx, group.MemberIDs)
	return nil
}

// ListGroupsByMember returns every group that memberID belongs to.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_id FROM group_members WHERE member_id = ?", memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan group ids: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		g, err := loadGroup(ctx, s.db, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue // deleted since the first query
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	storage.SortGroups(groups)
	return groups, nil
}

// ListExpensesByGroup returns a group's expenses with their shares.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, title, amount, paid_by_id, paid_by_name, paid_by_profile_url, date
		 FROM expenses WHERE group_id = ? ORDER BY date DESC, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, e := range expenses {
		if e.SharedBy, err = loadShares(ctx, s.db, e.ID); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

// DeleteExpenses removes a batch of a group's expenses. Shares go with them
// through the foreign key.
func (s *SQLiteStore) DeleteExpenses(ctx context.Context, groupID string, expenseIDs []string) error {
	if len(expenseIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(expenseIDs)+1)
	args = append(args, groupID)
	for _, id := range expenseIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(expenseIDs)), ",")

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE group_id = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete expenses: %w", err))
	}

	s.seq.Add(1)
	s.publishExpenses(ctx, groupID)
	return nil
}

// DeleteGroup removes the group row and, through the foreign key, its members.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	rows, err := s.db.QueryContext(ctx, "SELECT member_id FROM group_members WHERE group_id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to get group members: %w", err)
	}
	memberIDs, err := scanStrings(rows)
	if err != nil {
		return fmt.Errorf("failed to scan group members: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID); err != nil {
		return mapErr(fmt.Errorf("failed to delete group: %w", err))
	}

	s.seq.Add(1)
	s.publishGroups(ctx, memberIDs)
	s.publishExpenses(ctx, groupID)
	return nil
}

// SubscribeGroups streams snapshots of the member's group list.
func (s *SQLiteStore) SubscribeGroups(ctx context.Context, memberID string) (<-chan storage.GroupsSnapshot, error) {
	return s.groupHub.Subscribe(ctx, storage.MemberKey(memberID), func() (storage.GroupsSnapshot, error) {
		seq := s.seq.Load()
		groups, err := s.ListGroupsByMember(ctx, memberID)
		return storage.GroupsSnapshot{Seq: seq, Items: groups}, err
	})
}

// SubscribeExpenses streams snapshots of the group's expense list.
func (s *SQLiteStore) SubscribeExpenses(ctx context.Context, groupID string) (<-chan storage.ExpensesSnapshot, error) {
	return s.expenseHub.Subscribe(ctx, storage.GroupKey(groupID), func() (storage.ExpensesSnapshot, error) {
		seq := s.seq.Load()
		expenses, err := s.ListExpensesByGroup(ctx, groupID)
		return storage.ExpensesSnapshot{Seq: seq, Items: expenses}, err
	})
}

// publishGroups rebuilds and publishes the group list of every watched
// member. The sequence number is read before the query, so the snapshot is
// at least as new as its label.
func (s *SQLiteStore) publishGroups(ctx context.Context, memberIDs []string) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range memberIDs {
		key := storage.MemberKey(id)
		if !s.groupHub.Watched(key) {
			continue
		}
		seq := s.seq.Load()
		groups, err := s.ListGroupsByMember(ctx, id)
		if err != nil {
			continue // the next commit publishes again
		}
		s.groupHub.Publish(storage.GroupsSnapshot{Seq: seq, Key: key, Items: groups})
	}
}

func (s *SQLiteStore) publishExpenses(ctx context.Context, groupID string) {
	ctx = context.WithoutCancel(ctx)
	key := storage.GroupKey(groupID)
	if !s.expenseHub.Watched(key) {
		return
	}
	seq := s.seq.Load()
	expenses, err := s.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return
	}
	s.expenseHub.Publish(storage.ExpensesSnapshot{Seq: seq, Key: key, Items: expenses})
}

func loadGroup(ctx context.Context, q querier, groupID string) (*models.Group, error) {
	g := &models.Group{}
	var totalExpenses, totalBalance int64
	err := q.QueryRowContext(ctx,
		`SELECT id, name, description, created_by, total_expenses, total_balance, created_at, updated_at, version, deleting
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedBy, &totalExpenses, &totalBalance,
		&g.CreatedAt, &g.UpdatedAt, &g.Version, &g.Deleting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get group: %w", err))
	}
	g.TotalExpenses = money.FromMinor(totalExpenses)
	g.TotalBalance = money.FromMinor(totalBalance)

	rows, err := q.QueryContext(ctx,
		"SELECT member_id, name, profile_url, balance FROM group_members WHERE group_id = ? ORDER BY position",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		var balance int64
		if err := rows.Scan(&m.ID, &m.Name, &m.ProfileURL, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Balance = money.FromMinor(balance)
		g.Members = append(g.Members, m)
		g.MemberIDs = append(g.MemberIDs, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return g, nil
}

func insertMembers(ctx context.Context, q querier, group *models.Group) error {
	for i, m := range group.Members {
		_, err := q.ExecContext(ctx,
			`INSERT INTO group_members (group_id, member_id, position, name, profile_url, balance)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			group.ID, m.ID, i, m.Name, m.ProfileURL, m.Balance.Minor(),
		)
		if err != nil {
			return mapErr(fmt.Errorf("failed to insert member: %w", err))
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	e := &models.Expense{}
	var amount int64
	err := row.Scan(&e.ID, &e.GroupID, &e.Title, &amount,
		&e.PaidBy.ID, &e.PaidBy.Name, &e.PaidBy.ProfileURL, &e.Date)
	if err != nil {
		return nil, err
	}
	e.Amount = money.FromMinor(amount)
	return e, nil
}

func loadShares(ctx context.Context, q querier, expenseID string) ([]models.Share, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT member_id, name, amount FROM expense_shares WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		var sh models.Share
		var amount int64
		if err := rows.Scan(&sh.MemberID, &sh.Name, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		sh.Amount = money.FromMinor(amount)
		shares = append(shares, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// mapErr turns lock contention into storage.ErrConflict so callers retry it
// like any other lost race.
func mapErr(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
	}
	return err
}
