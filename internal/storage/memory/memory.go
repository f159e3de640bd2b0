// Package memory provides an in-process implementation of storage.Store.
//
// Transactions are optimistic: reads are recorded with the group version they
// saw, writes are buffered, and commit validates both under the store lock.
// This gives the same conflict behaviour as the Firestore backend, which makes
// it useful for exercising retry paths in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/watch"
)

var _ storage.Store = (*Store)(nil)

// Store keeps groups and expenses in maps guarded by a single lock.
type Store struct {
	mu       sync.RWMutex
	groups   map[string]*models.Group
	expenses map[string]*models.Expense
	seq      int64

	groupHub   *watch.Hub[*models.Group]
	expenseHub *watch.Hub[*models.Expense]
}

// New creates an empty store.
func New() *Store {
	return &Store{
		groups:     make(map[string]*models.Group),
		expenses:   make(map[string]*models.Expense),
		groupHub:   watch.NewHub[*models.Group](),
		expenseHub: watch.NewHub[*models.Expense](),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// GetGroup returns a copy of the stored group.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return g.Clone(), nil
}

// CreateGroup stores a new group with a fresh ID and Version 1.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	group.Version = 1

	s.mu.Lock()
	if _, exists := s.groups[group.ID]; exists {
		s.mu.Unlock()
		return storage.ErrConflict
	}
	s.groups[group.ID] = group.Clone()
	s.seq++
	s.mu.Unlock()

	s.publishGroups(group.MemberIDs)
	return nil
}

// ListGroupsByMember returns copies of every group containing memberID.
func (s *Store) ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error) {
	groups, _ := s.groupsOf(memberID)
	return groups, nil
}

// ListExpensesByGroup returns copies of a group's expenses.
func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	expenses, _ := s.expensesOf(groupID)
	return expenses, nil
}

// DeleteExpenses removes the listed expenses that belong to groupID.
func (s *Store) DeleteExpenses(ctx context.Context, groupID string, expenseIDs []string) error {
	s.mu.Lock()
	for _, id := range expenseIDs {
		if e, ok := s.expenses[id]; ok && e.GroupID == groupID {
			delete(s.expenses, id)
		}
	}
	s.seq++
	s.mu.Unlock()

	s.publishExpenses(groupID)
	return nil
}

// DeleteGroup removes the group record.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	g, ok := s.groups[groupID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.groups, groupID)
	s.seq++
	s.mu.Unlock()

	s.publishGroups(g.MemberIDs)
	s.publishExpenses(groupID)
	return nil
}

// SubscribeGroups streams snapshots of the member's group list.
func (s *Store) SubscribeGroups(ctx context.Context, memberID string) (<-chan storage.GroupsSnapshot, error) {
	return s.groupHub.Subscribe(ctx, storage.MemberKey(memberID), func() (storage.GroupsSnapshot, error) {
		groups, seq := s.groupsOf(memberID)
		return storage.GroupsSnapshot{Seq: seq, Items: groups}, nil
	})
}

// SubscribeExpenses streams snapshots of the group's expense list.
func (s *Store) SubscribeExpenses(ctx context.Context, groupID string) (<-chan storage.ExpensesSnapshot, error) {
	return s.expenseHub.Subscribe(ctx, storage.GroupKey(groupID), func() (storage.ExpensesSnapshot, error) {
		expenses, seq := s.expensesOf(groupID)
		return storage.ExpensesSnapshot{Seq: seq, Items: expenses}, nil
	})
}

func (s *Store) groupsOf(memberID string) ([]*models.Group, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupsOfLocked(memberID), s.seq
}

func (s *Store) groupsOfLocked(memberID string) []*models.Group {
	var out []*models.Group
	for _, g := range s.groups {
		if slices.Contains(g.MemberIDs, memberID) {
			out = append(out, g.Clone())
		}
	}
	storage.SortGroups(out)
	return out
}

func (s *Store) expensesOf(groupID string) ([]*models.Expense, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expensesOfLocked(groupID), s.seq
}

func (s *Store) expensesOfLocked(groupID string) []*models.Expense {
	var out []*models.Expense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			out = append(out, e.Clone())
		}
	}
	storage.SortExpenses(out)
	return out
}

func (s *Store) publishGroups(memberIDs []string) {
	for _, id := range memberIDs {
		key := storage.MemberKey(id)
		if !s.groupHub.Watched(key) {
			continue
		}
		groups, seq := s.groupsOf(id)
		s.groupHub.Publish(storage.GroupsSnapshot{Seq: seq, Key: key, Items: groups})
	}
}

func (s *Store) publishExpenses(groupID string) {
	key := storage.GroupKey(groupID)
	if !s.expenseHub.Watched(key) {
		return
	}
	expenses, seq := s.expensesOf(groupID)
	s.expenseHub.Publish(storage.ExpensesSnapshot{Seq: seq, Key: key, Items: expenses})
}
