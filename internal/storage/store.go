// Package storage defines the persistence contract for groups and expenses.
//
// Every change to a group's ledger goes through RunInTx: the expense write and
// the group's balances commit together or not at all. Backends detect lost
// updates with the group's Version and report them as ErrConflict so the
// caller can retry against fresh state.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/watch"
)

var (
	// ErrNotFound is returned when a group or expense does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a transaction lost a race with another
	// writer. The transaction had no effect and may be retried.
	ErrConflict = errors.New("write conflict")
)

// GroupsSnapshot is the full list of groups a member belongs to.
type GroupsSnapshot = watch.Snapshot[*models.Group]

// ExpensesSnapshot is the full list of expenses in a group.
type ExpensesSnapshot = watch.Snapshot[*models.Expense]

// Store is implemented by every backend (memory, SQLite, Firestore).
type Store interface {
	// GetGroup reads a group outside of any transaction.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// CreateGroup persists a new group. The store assigns ID and sets
	// Version to 1.
	CreateGroup(ctx context.Context, group *models.Group) error

	// ListGroupsByMember returns the groups whose MemberIDs contain memberID,
	// most recently updated first.
	ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error)

	// ListExpensesByGroup returns a group's expenses, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// RunInTx runs fn in a transaction. Writes made through tx are applied
	// atomically if fn returns nil and discarded otherwise. ErrConflict means
	// a concurrent commit invalidated what fn read.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// DeleteExpenses removes up to len(expenseIDs) expenses of a group in a
	// single batch without touching balances. Used only by group deletion.
	DeleteExpenses(ctx context.Context, groupID string, expenseIDs []string) error

	// DeleteGroup removes the group record. Missing groups are not an error.
	DeleteGroup(ctx context.Context, groupID string) error

	// SubscribeGroups streams snapshots of ListGroupsByMember(memberID). The
	// first snapshot reflects current state; the channel closes when ctx is
	// done.
	SubscribeGroups(ctx context.Context, memberID string) (<-chan GroupsSnapshot, error)

	// SubscribeExpenses streams snapshots of ListExpensesByGroup(groupID).
	SubscribeExpenses(ctx context.Context, groupID string) (<-chan ExpensesSnapshot, error)

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the view of the store inside RunInTx.
type Tx interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// PutGroup writes group if its Version still matches the stored one and
	// increments Version on success.
	PutGroup(ctx context.Context, group *models.Group) error

	// CreateExpense persists a new expense. The store assigns ID.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	DeleteExpense(ctx context.Context, expenseID string) error
}

// MemberKey is the watch key for a member's group list.
func MemberKey(memberID string) string { return "member/" + memberID }

// GroupKey is the watch key for a group's expense list.
func GroupKey(groupID string) string { return "group/" + groupID }
