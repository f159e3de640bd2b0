package cache

import (
	"context"
	"maps"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// Summaries is an in-process summary cache.
type Summaries struct {
	lru *LRUCache[models.GroupSummary]
}

// NewSummaries creates a cache holding up to maxSize summaries for ttl.
func NewSummaries(maxSize int, ttl time.Duration) *Summaries {
	return &Summaries{lru: NewLRUCache[models.GroupSummary](maxSize, ttl)}
}

func (s *Summaries) Get(_ context.Context, userID string) (models.GroupSummary, bool) {
	summary, ok := s.lru.Get(userID)
	if !ok {
		return models.GroupSummary{}, false
	}
	return cloneSummary(summary), true
}

func (s *Summaries) Set(_ context.Context, userID string, summary models.GroupSummary) {
	s.lru.Set(userID, cloneSummary(summary))
}

func (s *Summaries) Invalidate(_ context.Context, userIDs ...string) {
	for _, id := range userIDs {
		s.lru.Delete(id)
	}
}

// cloneSummary copies the maps so callers cannot mutate cached entries.
func cloneSummary(s models.GroupSummary) models.GroupSummary {
	s.PerCounterparty = maps.Clone(s.PerCounterparty)
	s.CounterpartyNames = maps.Clone(s.CounterpartyNames)
	return s
}
