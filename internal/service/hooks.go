package service

import (
	"context"

	"github.com/mmynk/splitledger/internal/models"
)

// afterCommit runs side effects of a committed change. Failures are logged
// and never undo or fail the operation.
func (s *LedgerService) afterCommit(ctx context.Context, event models.LedgerEvent) {
	if event.OccurredAt == 0 {
		event.OccurredAt = s.timestamp()
	}
	if s.cache != nil {
		s.fills.bump(event.MemberIDs...)
		s.cache.Invalidate(ctx, event.MemberIDs...)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish ledger event",
				"type", event.Type, "group_id", event.GroupID, "error", err)
		}
	}
}
