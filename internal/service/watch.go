package service

import (
	"context"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/watch"
)

// WatchGroups streams the member's group list. Each value is the full list;
// stale or repeated snapshots from the store are dropped.
func (s *LedgerService) WatchGroups(ctx context.Context, memberID string) (<-chan storage.GroupsSnapshot, error) {
	ch, err := s.store.SubscribeGroups(ctx, memberID)
	if err != nil {
		return nil, s.storageErr("subscribe to groups", err)
	}
	return track(ctx, watch.Fold(ctx, ch), s.metrics.SubscriptionOpened("groups")), nil
}

// WatchExpenses streams a group's expense list to one of its members.
func (s *LedgerService) WatchExpenses(ctx context.Context, groupID, actingID string) (<-chan storage.ExpensesSnapshot, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("get group", notFound(err, apperr.CodeGroupNotFound, groupID))
	}
	if err := ledger.AuthorizeMember(g, actingID); err != nil {
		return nil, err
	}
	ch, err := s.store.SubscribeExpenses(ctx, groupID)
	if err != nil {
		return nil, s.storageErr("subscribe to expenses", err)
	}
	return track(ctx, watch.Fold(ctx, ch), s.metrics.SubscriptionOpened("expenses")), nil
}

// track forwards in to the returned channel and calls done when the stream
// ends.
func track[T any](ctx context.Context, in <-chan T, done func()) <-chan T {
	out := make(chan T)
	go func() {
		defer done()
		defer close(out)
		for v := range in {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
