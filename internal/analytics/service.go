package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
)

// EventSource is a read-only view of the whole audit log.
type EventSource interface {
	ListAll(ctx context.Context) ([]models.AuditEvent, error)
}

// Cache holds the last computed report. Get reports a miss with ErrCacheMiss.
type Cache interface {
	Get(ctx context.Context) (*Report, error)
	Set(ctx context.Context, report *Report, ttl time.Duration) error
}

// ErrCacheMiss is returned by Cache.Get when no fresh report is stored.
var ErrCacheMiss = errors.New("analytics cache miss")

const (
	reportKey  = "bottlenecks"
	defaultTTL = 30 * time.Second

	computeTimeout = 30 * time.Second
)

// Service serves bottleneck reports. It never locks the log and tolerates a
// report up to one TTL stale.
type Service struct {
	events  EventSource
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Service)

func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(events EventSource, opts ...Option) *Service {
	s := &Service{
		events: events,
		ttl:    defaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report returns the cached report when fresh, otherwise recomputes it.
// Concurrent misses share one computation.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		switch {
		case err == nil:
			s.recordCache(true)
			return cached, nil
		case !errors.Is(err, ErrCacheMiss):
			s.logger.WarnContext(ctx, "analytics cache read failed", "error", err)
		}
		s.recordCache(false)
	}

	v, err, _ := s.group.Do(reportKey, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return s.compute(scanCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

// Compute always scans the log, bypassing the cache.
func (s *Service) Compute(ctx context.Context) (*Report, error) {
	return s.compute(ctx)
}

func (s *Service) compute(ctx context.Context) (*Report, error) {
	start := time.Now()
	events, err := s.events.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("scan audit log: %w", err), dErrors.CodeStorage, "failed to read audit log")
	}
	report := Compute(events, requestcontext.Now(ctx))
	s.observeCompute(time.Since(start), len(events))

	if s.cache != nil {
		if err := s.cache.Set(ctx, report, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "analytics cache write failed", "error", err)
		}
	}
	return report, nil
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.IncrementCacheHit()
	} else {
		s.metrics.IncrementCacheMiss()
	}
}

func (s *Service) observeCompute(d time.Duration, events int) {
	if s.metrics != nil {
		s.metrics.ObserveCompute(d.Seconds(), events)
	}
}
