package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// tx buffers writes until commit. reads records the version of every group
// observed so commit can detect that another writer got there first.
type tx struct {
	s *Store

	reads    map[string]int64
	groups   map[string]*models.Group
	puts     map[string]*models.Group
	created  map[string]*models.Expense
	deleted  map[string]*models.Expense
	observed map[string]bool
}

// RunInTx runs fn against a buffered transaction and commits it if fn
// succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	t := &tx{
		s:        s,
		reads:    make(map[string]int64),
		groups:   make(map[string]*models.Group),
		puts:     make(map[string]*models.Group),
		created:  make(map[string]*models.Expense),
		deleted:  make(map[string]*models.Expense),
		observed: make(map[string]bool),
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (t *tx) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	if g, ok := t.groups[groupID]; ok {
		return g.Clone(), nil
	}
	t.s.mu.RLock()
	g, ok := t.s.groups[groupID]
	t.s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	t.reads[groupID] = g.Version
	t.groups[groupID] = g.Clone()
	return g.Clone(), nil
}

func (t *tx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	if _, ok := t.deleted[expenseID]; ok {
		return nil, storage.ErrNotFound
	}
	if e, ok := t.created[expenseID]; ok {
		return e.Clone(), nil
	}
	t.s.mu.RLock()
	e, ok := t.s.expenses[expenseID]
	t.s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	t.observed[expenseID] = true
	return e.Clone(), nil
}

func (t *tx) PutGroup(ctx context.Context, group *models.Group) error {
	staged, ok := t.groups[group.ID]
	if !ok {
		cur, err := t.GetGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		staged = cur
	}
	if staged.Version != group.Version {
		return storage.ErrConflict
	}
	next := group.Clone()
	next.Version++
	t.groups[group.ID] = next
	t.puts[group.ID] = group
	return nil
}

func (t *tx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	t.created[expense.ID] = expense.Clone()
	return nil
}

func (t *tx) DeleteExpense(ctx context.Context, expenseID string) error {
	if _, ok := t.created[expenseID]; ok {
		delete(t.created, expenseID)
		return nil
	}
	e, err := t.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	t.deleted[expenseID] = e
	return nil
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	for id, version := range t.reads {
		cur, ok := s.groups[id]
		if !ok || cur.Version != version {
			s.mu.Unlock()
			return storage.ErrConflict
		}
	}
	for id := range t.observed {
		if _, ok := s.expenses[id]; !ok {
			s.mu.Unlock()
			return storage.ErrConflict
		}
	}

	changedGroups := make(map[string][]string)
	for id, caller := range t.puts {
		before := s.groups[id].MemberIDs
		next := t.groups[id]
		s.groups[id] = next.Clone()
		caller.Version = next.Version
		changedGroups[id] = append(append([]string(nil), before...), next.MemberIDs...)
	}
	touched := make(map[string]bool)
	for id, e := range t.created {
		s.expenses[id] = e
		touched[e.GroupID] = true
	}
	for id, e := range t.deleted {
		delete(s.expenses, id)
		touched[e.GroupID] = true
	}
	if len(changedGroups) > 0 || len(touched) > 0 {
		s.seq++
	}
	s.mu.Unlock()

	for _, members := range changedGroups {
		s.publishGroups(uniq(members))
	}
	for groupID := range touched {
		s.publishExpenses(groupID)
	}
	return nil
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
