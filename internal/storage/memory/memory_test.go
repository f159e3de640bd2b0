package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestConcurrentWritersConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := storagetest.NewGroup("Trip", "a", "b")
	if err := s.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	// Both transactions read version 1 before either commits.
	var read sync.WaitGroup
	read.Add(2)
	results := make(chan error, 2)
	for range 2 {
		go func() {
			results <- s.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
				cur, err := tx.GetGroup(ctx, g.ID)
				read.Done()
				if err != nil {
					return err
				}
				read.Wait()
				cur.TotalExpenses += 100
				return tx.PutGroup(ctx, cur)
			})
		}()
	}

	var ok, conflicts int
	for range 2 {
		switch err := <-results; {
		case err == nil:
			ok++
		case errors.Is(err, storage.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok=%d conflicts=%d, want 1/1", ok, conflicts)
	}
	got, _ := s.GetGroup(ctx, g.ID)
	if got.TotalExpenses != 100 || got.Version != 2 {
		t.Errorf("group = total %s version %d", got.TotalExpenses, got.Version)
	}
}

func TestGetGroupReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := storagetest.NewGroup("Trip", "a", "b")
	_ = s.CreateGroup(ctx, g)

	got, _ := s.GetGroup(ctx, g.ID)
	got.Members[0].Balance = 999
	again, _ := s.GetGroup(ctx, g.ID)
	if again.Members[0].Balance != 0 {
		t.Error("mutating a returned group changed stored state")
	}
}
