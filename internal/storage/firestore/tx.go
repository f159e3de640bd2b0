package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// fsTx adapts *firestore.Transaction. Firestore requires every read to come
// before the first write, so PutGroup checks versions against what GetGroup
// already saw instead of reading again.
type fsTx struct {
	s        *Store
	tx       *firestore.Transaction
	versions map[string]int64
	wrote    bool
}

// RunInTx runs fn in a single Firestore transaction attempt. Retries are the
// caller's decision, so contention is reported rather than retried here.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &fsTx{s: s, tx: tx, versions: make(map[string]int64)})
	}, firestore.MaxAttempts(1))
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *fsTx) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	snap, err := t.tx.Get(t.s.groups().Doc(groupID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get group: %w", err))
	}
	g, err := decodeGroup(snap)
	if err != nil {
		return nil, err
	}
	t.versions[groupID] = g.Version
	return g, nil
}

func (t *fsTx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	snap, err := t.tx.Get(t.s.expenses().Doc(expenseID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get expense: %w", err))
	}
	return decodeExpense(snap)
}

func (t *fsTx) PutGroup(ctx context.Context, group *models.Group) error {
	version, ok := t.versions[group.ID]
	if !ok {
		if t.wrote {
			return fmt.Errorf("group %s must be read before the first write", group.ID)
		}
		cur, err := t.GetGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		version = cur.Version
	}
	if version != group.Version {
		return storage.ErrConflict
	}

	next := *group
	next.Version++
	if err := t.tx.Set(t.s.groups().Doc(group.ID), toGroupDoc(&next)); err != nil {
		return fmt.Errorf("failed to write group: %w", err)
	}
	t.wrote = true
	t.versions[group.ID] = next.Version
	group.Version = next.Version
	return nil
}

func (t *fsTx) CreateExpense(ctx context.Context, expense *models.Expense) error {
	ref := t.s.expenses().NewDoc()
	if expense.ID != "" {
		ref = t.s.expenses().Doc(expense.ID)
	}
	if err := t.tx.Create(ref, toExpenseDoc(expense)); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	t.wrote = true
	expense.ID = ref.ID
	return nil
}

func (t *fsTx) DeleteExpense(ctx context.Context, expenseID string) error {
	ref := t.s.expenses().Doc(expenseID)
	if err := t.tx.Delete(ref, firestore.Exists); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	t.wrote = true
	return nil
}
