// Package storagetest holds a behavioural suite every storage.Store backend
// must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetGroup", func(t *testing.T) { testCreateAndGetGroup(t, newStore(t)) })
	t.Run("GetMissingGroup", func(t *testing.T) { testGetMissingGroup(t, newStore(t)) })
	t.Run("TxCommitsExpenseAndGroupTogether", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollsBackOnError", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("StaleVersionConflicts", func(t *testing.T) { testStaleVersion(t, newStore(t)) })
	t.Run("DeletingFlagPersists", func(t *testing.T) { testDeletingFlag(t, newStore(t)) })
	t.Run("DeleteExpenseInTx", func(t *testing.T) { testDeleteExpenseInTx(t, newStore(t)) })
	t.Run("ListGroupsByMember", func(t *testing.T) { testListGroupsByMember(t, newStore(t)) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascadeDelete(t, newStore(t)) })
	t.Run("SubscribeGroups", func(t *testing.T) { testSubscribeGroups(t, newStore(t)) })
	t.Run("SubscribeExpenses", func(t *testing.T) { testSubscribeExpenses(t, newStore(t)) })
}

// NewGroup returns a two-member group ready for CreateGroup.
func NewGroup(name string, memberIDs ...string) *models.Group {
	g := &models.Group{Name: name, CreatedBy: memberIDs[0], CreatedAt: 1, UpdatedAt: 1}
	for _, id := range memberIDs {
		g.MemberIDs = append(g.MemberIDs, id)
		g.Members = append(g.Members, models.Member{ID: id, Name: "Name " + id})
	}
	return g
}

// NewExpense returns an expense paid by payer and shared evenly by sharers.
func NewExpense(groupID, title string, amount money.Money, date int64, payer string, sharers ...string) *models.Expense {
	e := &models.Expense{
		GroupID: groupID,
		Title:   title,
		Amount:  amount,
		PaidBy:  models.MemberRef{ID: payer, Name: "Name " + payer},
		Date:    date,
	}
	for i, share := range amount.SplitEvenly(len(sharers)) {
		e.SharedBy = append(e.SharedBy, models.Share{MemberID: sharers[i], Name: "Name " + sharers[i], Amount: share})
	}
	return e
}

func mustCreate(t *testing.T, s storage.Store, g *models.Group) {
	t.Helper()
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
}

// addExpense commits e and the matching balance change on its group.
func addExpense(t *testing.T, s storage.Store, e *models.Expense) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		g, err := tx.GetGroup(ctx, e.GroupID)
		if err != nil {
			return err
		}
		if err := tx.CreateExpense(ctx, e); err != nil {
			return err
		}
		g.TotalExpenses += e.Amount
		g.UpdatedAt = e.Date
		return tx.PutGroup(ctx, g)
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
}

func testCreateAndGetGroup(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Roommates", "a", "b")
	g.Description = "rent"
	g.Members[0].Balance = 1500
	g.Members[1].Balance = -1500
	g.TotalBalance = 1500
	mustCreate(t, s, g)

	if g.ID == "" {
		t.Fatal("expected ID to be assigned")
	}
	if g.Version != 1 {
		t.Errorf("Version = %d, want 1", g.Version)
	}

	got, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if got.Name != "Roommates" || got.Description != "rent" || got.CreatedBy != "a" || got.Version != 1 {
		t.Errorf("GetGroup = %+v", got)
	}
	if len(got.Members) != 2 || got.Members[0].ID != "a" || got.Members[1].Balance != -1500 {
		t.Errorf("Members = %+v", got.Members)
	}
	if len(got.MemberIDs) != 2 || got.TotalBalance != 1500 {
		t.Errorf("MemberIDs/TotalBalance = %v / %s", got.MemberIDs, got.TotalBalance)
	}
}

func testGetMissingGroup(t *testing.T, s storage.Store) {
	_, err := s.GetGroup(context.Background(), "does-not-exist")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetGroup() error = %v, want ErrNotFound", err)
	}
}

func testTxCommit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	e := NewExpense(g.ID, "Fuel", 3000, 10, "a", "a", "b")
	addExpense(t, s, e)
	if e.ID == "" {
		t.Fatal("expected expense ID to be assigned")
	}

	got, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.TotalExpenses != 3000 {
		t.Errorf("group after tx: version=%d total=%s", got.Version, got.TotalExpenses)
	}

	expenses, err := s.ListExpensesByGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 1 || expenses[0].ID != e.ID || len(expenses[0].SharedBy) != 2 {
		t.Fatalf("expenses = %+v", expenses)
	}
	if expenses[0].SharedBy[0].Amount+expenses[0].SharedBy[1].Amount != 3000 {
		t.Error("shares did not round-trip")
	}
	if expenses[0].PaidBy.ID != "a" || expenses[0].Title != "Fuel" {
		t.Errorf("expense = %+v", expenses[0])
	}
}

func testDeletingFlag(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.GetGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		cur.Deleting = true
		return tx.PutGroup(ctx, cur)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	got, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Deleting {
		t.Error("Deleting flag was not persisted")
	}
	listed, err := s.ListGroupsByMember(ctx, "b")
	if err != nil || len(listed) != 1 || !listed[0].Deleting {
		t.Errorf("ListGroupsByMember = %+v, %v", listed, err)
	}
}

func testTxRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		cur, err := tx.GetGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		if err := tx.CreateExpense(ctx, NewExpense(g.ID, "Lost", 500, 1, "a", "b")); err != nil {
			return err
		}
		cur.TotalExpenses = 500
		if err := tx.PutGroup(ctx, cur); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx() error = %v, want boom", err)
	}

	got, _ := s.GetGroup(ctx, g.ID)
	if got.Version != 1 || !got.TotalExpenses.IsZero() {
		t.Errorf("group changed by rolled back tx: %+v", got)
	}
	expenses, _ := s.ListExpensesByGroup(ctx, g.ID)
	if len(expenses) != 0 {
		t.Errorf("expense persisted by rolled back tx: %+v", expenses)
	}
}

func testStaleVersion(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	stale, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	addExpense(t, s, NewExpense(g.ID, "Fuel", 1000, 2, "a", "b"))

	err = s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		stale.Name = "Overwritten"
		return tx.PutGroup(ctx, stale)
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("PutGroup(stale) error = %v, want ErrConflict", err)
	}
	got, _ := s.GetGroup(ctx, g.ID)
	if got.Name != "Trip" || got.Version != 2 {
		t.Errorf("stale write applied: %+v", got)
	}
}

func testDeleteExpenseInTx(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)
	e := NewExpense(g.ID, "Fuel", 1000, 2, "a", "b")
	addExpense(t, s, e)

	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetExpense(ctx, e.ID)
		if err != nil {
			return err
		}
		if got.Amount != 1000 {
			t.Errorf("GetExpense amount = %s", got.Amount)
		}
		return tx.DeleteExpense(ctx, e.ID)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.GetExpense(ctx, e.ID)
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetExpense after delete = %v, want ErrNotFound", err)
	}
}

func testListGroupsByMember(t *testing.T, s storage.Store) {
	ctx := context.Background()
	older := NewGroup("Older", "a", "b")
	newer := NewGroup("Newer", "c", "a")
	newer.UpdatedAt = 50
	other := NewGroup("Other", "c", "d")
	mustCreate(t, s, older)
	mustCreate(t, s, newer)
	mustCreate(t, s, other)

	groups, err := s.ListGroupsByMember(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Name != "Newer" || groups[1].Name != "Older" {
		names := []string{}
		for _, g := range groups {
			names = append(names, g.Name)
		}
		t.Errorf("ListGroupsByMember(a) = %v, want [Newer Older]", names)
	}

	none, err := s.ListGroupsByMember(ctx, "nobody")
	if err != nil || len(none) != 0 {
		t.Errorf("ListGroupsByMember(nobody) = %v, %v", none, err)
	}
}

func testCascadeDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := NewGroup("Trip", "a", "b")
	keep := NewGroup("Keep", "a", "b")
	mustCreate(t, s, g)
	mustCreate(t, s, keep)

	var ids []string
	for i := range 5 {
		e := NewExpense(g.ID, "Item", 100, int64(i+1), "a", "a", "b")
		addExpense(t, s, e)
		ids = append(ids, e.ID)
	}
	kept := NewExpense(keep.ID, "Other", 100, 1, "b", "a")
	addExpense(t, s, kept)

	// an id from another group must be ignored
	if err := s.DeleteExpenses(ctx, g.ID, append(ids[:3:3], kept.ID)); err != nil {
		t.Fatalf("DeleteExpenses: %v", err)
	}
	left, _ := s.ListExpensesByGroup(ctx, g.ID)
	if len(left) != 2 {
		t.Fatalf("after first batch %d expenses remain, want 2", len(left))
	}
	if left[0].Date < left[1].Date {
		t.Error("expenses not ordered newest first")
	}
	if err := s.DeleteExpenses(ctx, g.ID, ids[3:]); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Errorf("second DeleteGroup: %v", err)
	}

	if _, err := s.GetGroup(ctx, g.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("group still present: %v", err)
	}
	if left, _ := s.ListExpensesByGroup(ctx, g.ID); len(left) != 0 {
		t.Errorf("%d expenses left after cascade", len(left))
	}
	if other, _ := s.ListExpensesByGroup(ctx, keep.ID); len(other) != 1 {
		t.Error("cascade removed another group's expense")
	}
}

func testSubscribeGroups(t *testing.T, s storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	ch, err := s.SubscribeGroups(ctx, "b")
	if err != nil {
		t.Fatalf("SubscribeGroups: %v", err)
	}
	first := Await(t, ch, func(snap storage.GroupsSnapshot) bool { return len(snap.Items) == 1 })

	addExpense(t, s, NewExpense(g.ID, "Fuel", 2500, 5, "a", "b"))
	Await(t, ch, func(snap storage.GroupsSnapshot) bool {
		return snap.Seq > first.Seq && len(snap.Items) == 1 && snap.Items[0].TotalExpenses == 2500
	})

	mustCreate(t, s, NewGroup("Second", "b"))
	Await(t, ch, func(snap storage.GroupsSnapshot) bool { return len(snap.Items) == 2 })
}

func testSubscribeExpenses(t *testing.T, s storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := NewGroup("Trip", "a", "b")
	mustCreate(t, s, g)

	ch, err := s.SubscribeExpenses(ctx, g.ID)
	if err != nil {
		t.Fatalf("SubscribeExpenses: %v", err)
	}
	Await(t, ch, func(snap storage.ExpensesSnapshot) bool { return len(snap.Items) == 0 })

	e := NewExpense(g.ID, "Fuel", 2500, 5, "a", "b")
	addExpense(t, s, e)
	Await(t, ch, func(snap storage.ExpensesSnapshot) bool {
		return len(snap.Items) == 1 && snap.Items[0].ID == e.ID
	})
}

// Await reads snapshots until one satisfies ok. Intermediate snapshots may be
// coalesced away, so tests wait for a state rather than a count.
func Await[T any](t *testing.T, ch <-chan T, ok func(T) bool) T {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-ch:
			if !open {
				t.Fatal("subscription closed")
			}
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}
