package outbox

import (
	"context"
	"log/slog"
	"time"

	"doctrack/pkg/platform/circuit"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker polls the store and publishes pending entries in creation order.
// Run it as a single instance per database; more would only add duplicates.
type Worker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	batchSize int
	breaker   *circuit.Breaker
	now       func() time.Time
}

type WorkerOption func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithBreaker skips polling while the broker keeps failing. Without it every
// poll retries the oldest pending entry.
func WithBreaker(b *circuit.Breaker) WorkerOption {
	return func(w *Worker) { w.breaker = b }
}

func NewWorker(store Store, publisher Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "outbox batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch publishes up to one batch. Publishing stops at the first
// failure so per-document ordering is kept; the failed entry is retried on the
// next poll.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	if w.breaker != nil && !w.breaker.Allow() {
		return 0, nil
	}
	entries, err := w.store.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, entry := range entries {
		start := time.Now()
		if err := w.publisher.Publish(ctx, entry); err != nil {
			w.recordFailure(ctx)
			w.logger.WarnContext(ctx, "outbox publish failed",
				"entry_id", entry.ID,
				"event_type", entry.EventType,
				"attempts", entry.Attempts+1,
				"error", err,
			)
			if markErr := w.store.MarkFailed(ctx, entry.ID); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to record outbox failure", "entry_id", entry.ID, "error", markErr)
			}
			break
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			return published, err
		}
		published++
		w.recordSuccess(ctx, time.Since(start))
	}

	w.updatePending(ctx)
	return published, nil
}

func (w *Worker) recordSuccess(ctx context.Context, d time.Duration) {
	if w.breaker != nil {
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.InfoContext(ctx, "broker circuit closed", "breaker", w.breaker.Name())
		}
	}
	if w.metrics == nil {
		return
	}
	w.metrics.IncrementPublished()
	w.metrics.ObservePublishLatency(d.Seconds())
}

func (w *Worker) recordFailure(ctx context.Context) {
	if w.breaker != nil {
		if _, change := w.breaker.RecordFailure(); change.Opened {
			w.logger.WarnContext(ctx, "broker circuit opened, pausing outbox", "breaker", w.breaker.Name())
		}
	}
	if w.metrics != nil {
		w.metrics.IncrementPublishFailed()
	}
}

func (w *Worker) updatePending(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	n, err := w.store.CountPending(ctx)
	if err != nil {
		return
	}
	w.metrics.SetPending(n)
}

// LogPublisher writes entries to the log. It stands in for a broker when none
// is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, entry Entry) error {
	p.Logger.InfoContext(ctx, "routing event",
		"entry_id", entry.ID,
		"event_type", entry.EventType,
		"aggregate_id", entry.AggregateID,
		"payload", string(entry.Payload),
	)
	return nil
}
