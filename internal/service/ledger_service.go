// Package service runs the ledger workflows against a storage.Store.
//
// Every operation that reads a group and writes a derived update runs inside
// a store transaction that re-reads the group first, so concurrent expenses
// on the same group never overwrite each other. Lost races are retried a
// bounded number of times before surfacing as a commit conflict.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

const (
	DefaultMaxCommitAttempts = 5
	DefaultCascadeBatchSize  = 100
)

// SummaryCache stores computed summaries per user. Implementations must be
// safe for concurrent use; a failing cache only costs a recomputation.
type SummaryCache interface {
	Get(ctx context.Context, userID string) (models.GroupSummary, bool)
	Set(ctx context.Context, userID string, summary models.GroupSummary)
	Invalidate(ctx context.Context, userIDs ...string)
}

// EventPublisher is notified after each committed change.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

// LedgerService implements group, expense and summary workflows.
type LedgerService struct {
	store storage.Store

	maxCommitAttempts int
	cascadeBatchSize  int
	maxAmount         money.Money

	cache     SummaryCache
	fills     fillGuard
	publisher EventPublisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithMaxCommitAttempts bounds how often a conflicting transaction is tried.
func WithMaxCommitAttempts(n int) Option {
	return func(s *LedgerService) {
		if n > 0 {
			s.maxCommitAttempts = n
		}
	}
}

// WithCascadeBatchSize sets how many expenses group deletion removes per batch.
func WithCascadeBatchSize(n int) Option {
	return func(s *LedgerService) {
		if n > 0 {
			s.cascadeBatchSize = n
		}
	}
}

// WithMaxAmount caps expense amounts.
func WithMaxAmount(max money.Money) Option {
	return func(s *LedgerService) {
		if max > 0 {
			s.maxAmount = max
		}
	}
}

func WithSummaryCache(c SummaryCache) Option    { return func(s *LedgerService) { s.cache = c } }
func WithEventPublisher(p EventPublisher) Option { return func(s *LedgerService) { s.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option     { return func(s *LedgerService) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option          { return func(s *LedgerService) { s.logger = l } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *LedgerService) { s.now = now } }

// New creates a LedgerService over store.
func New(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:             store,
		maxCommitAttempts: DefaultMaxCommitAttempts,
		cascadeBatchSize:  DefaultCascadeBatchSize,
		maxAmount:         money.DefaultMax,
		tracer:            otel.Tracer("github.com/mmynk/splitledger/internal/service"),
		logger:            slog.Default(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseAmount parses user input into an amount within the configured limit.
func (s *LedgerService) ParseAmount(input string) (money.Money, error) {
	return money.Parse(input, s.maxAmount)
}

func (s *LedgerService) timestamp() int64 {
	return s.now().Unix()
}
