package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
)

// summaryFetchLimit bounds concurrent expense listings per summary.
const summaryFetchLimit = 8

// GetSummary returns userID's position across all their groups, plus what
// they paid and what their own shares came to.
func (s *LedgerService) GetSummary(ctx context.Context, userID string) (_ models.GroupSummary, err error) {
	ctx, end := s.begin(ctx, "GetSummary", attribute.String("member_id", userID))
	defer end(&err)

	var gen uint64
	if s.cache != nil {
		cached, ok := s.cache.Get(ctx, userID)
		s.metrics.SummaryCache(ok)
		if ok {
			return cached, nil
		}
		gen = s.fills.current(userID)
	}

	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		return models.GroupSummary{}, s.storageErr("list groups", err)
	}
	summary := calculator.Summarize(groups, userID)

	perGroup := make([][]*models.Expense, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(summaryFetchLimit)
	for i, g := range groups {
		eg.Go(func() error {
			expenses, err := s.store.ListExpensesByGroup(egCtx, g.ID)
			if err != nil {
				return err
			}
			perGroup[i] = expenses
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return models.GroupSummary{}, s.storageErr("list expenses", err)
	}

	var all []*models.Expense
	for _, expenses := range perGroup {
		all = append(all, expenses...)
	}
	spending := calculator.SpendingTotals(all, userID)
	summary.TotalPaid = spending.Paid
	summary.TotalShare = spending.Share

	if s.cache != nil {
		stored := s.fills.fill(userID, gen, func() { s.cache.Set(ctx, userID, summary) })
		if !stored {
			s.logger.DebugContext(ctx, "Summary changed while computing, not cached", "member_id", userID)
		}
	}
	return summary, nil
}

// fillGuard orders cache fills against invalidations. Each invalidation
// bumps the user's generation; a fill whose reads began under an older
// generation is dropped.
type fillGuard struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func (g *fillGuard) current(userID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[userID]
}

// bump advances the generation of every user. Callers drop cache entries
// after bump returns.
func (g *fillGuard) bump(userIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens == nil {
		g.gens = make(map[string]uint64)
	}
	for _, id := range userIDs {
		g.gens[id]++
	}
}

// fill runs set if userID is still at gen. set runs under the lock, so no
// bump can slip between the check and the write.
func (g *fillGuard) fill(userID string, gen uint64, set func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[userID] != gen {
		return false
	}
	set()
	return true
}
