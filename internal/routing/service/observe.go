package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
)

// run wraps one engine operation with a span, latency and outcome metrics, and
// a log line on failure.
func (s *Service) run(ctx context.Context, op string, actor models.Actor, recordID int64, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "routing."+op, trace.WithAttributes(
		attribute.String("department", actor.Department),
		attribute.Int64("record_id", recordID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.observeLatency(op, time.Since(start))

	if err != nil {
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		s.incrementFailure(op, string(code))
		s.logFailure(ctx, op, actor, recordID, code, err)
		return err
	}
	s.incrementTransition(op)
	return nil
}

func (s *Service) logFailure(ctx context.Context, op string, actor models.Actor, recordID int64, code dErrors.Code, err error) {
	if s.logger == nil {
		return
	}
	attrs := []any{
		"operation", op,
		"record_id", recordID,
		"department", actor.Department,
		"code", string(code),
		"request_id", requestcontext.RequestID(ctx),
	}
	switch code {
	case dErrors.CodeStorage, dErrors.CodeInternal, dErrors.CodeTimeout:
		s.logger.ErrorContext(ctx, "transition failed", append(attrs, "error", err)...)
	default:
		s.logger.InfoContext(ctx, "transition rejected", append(attrs, "reason", dErrors.MessageOf(err))...)
	}
}

func (s *Service) incrementTransition(op string) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(op)
	}
}

func (s *Service) incrementFailure(op, code string) {
	if s.metrics != nil {
		s.metrics.IncrementFailure(op, code)
	}
}

func (s *Service) observeLatency(op string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveLatency(op, d.Seconds())
	}
}

func (s *Service) incrementPublicIDRetry() {
	if s.metrics != nil {
		s.metrics.IncrementPublicIDRetry()
	}
}
