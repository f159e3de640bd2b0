package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/storage"
)

// transact runs fn in a store transaction, retrying lost races with a short
// linear backoff. fn must be safe to run more than once.
func (s *LedgerService) transact(ctx context.Context, op string, fn func(ctx context.Context, tx storage.Tx) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = s.store.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, storage.ErrConflict) {
			break
		}
		s.metrics.CommitConflict(op)
		trace.SpanFromContext(ctx).AddEvent("commit conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
		if attempt >= s.maxCommitAttempts {
			s.logger.WarnContext(ctx, "Giving up after repeated commit conflicts", "op", op, "attempts", attempt)
			return apperr.WithMetadata(apperr.CodeCommitConflict,
				fmt.Sprintf("%s conflicted with concurrent updates", op),
				map[string]string{"attempts": fmt.Sprint(attempt)})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
	return s.storageErr(op, err)
}

// storageErr passes domain and context errors through and wraps anything
// else, so raw storage errors never leave the service.
func (s *LedgerService) storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Wrap(apperr.CodeStorage, "failed to "+op, err)
}

// notFound converts storage.ErrNotFound into the domain error for code.
func notFound(err error, code apperr.Code, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		key := "group_id"
		if code == apperr.CodeExpenseNotFound {
			key = "expense_id"
		}
		return apperr.WithMetadata(code, "not found", map[string]string{key: id})
	}
	return err
}

// begin starts a span and returns a func that ends it and records the
// outcome in metrics. Call as `defer end(&err)`.
func (s *LedgerService) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "LedgerService."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		result := "ok"
		if err := *errp; err != nil {
			result = string(apperr.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.ObserveOperation(op, result, s.now().Sub(start))
		span.End()
	}
}
