package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doctrack/pkg/platform/circuit"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []Entry
	failOn    string
}

func (p *recordingPublisher) Publish(_ context.Context, entry Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry.AggregateID == p.failOn {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, entry)
	return nil
}

type WorkerSuite struct {
	suite.Suite
	ctx       context.Context
	store     *InMemoryStore
	publisher *recordingPublisher
	worker    *Worker
	t0        time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.publisher = &recordingPublisher{}
	s.worker = NewWorker(s.store, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBatchSize(10),
	)
	s.t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *WorkerSuite) enqueue(aggregateID string, offset time.Duration) *Entry {
	e := NewEntry("document", aggregateID, "transfer", []byte(`{}`), s.t0.Add(offset))
	s.Require().NoError(s.store.Enqueue(s.ctx, e))
	return e
}

func (s *WorkerSuite) TestPublishesInCreationOrder() {
	s.enqueue("DOC-00000002", time.Minute)
	s.enqueue("DOC-00000001", 0)

	n, err := s.worker.ProcessBatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Require().Len(s.publisher.published, 2)
	s.Equal("DOC-00000001", s.publisher.published[0].AggregateID)

	pending, err := s.store.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}

func (s *WorkerSuite) TestStopsAtFirstFailureAndRetries() {
	s.enqueue("DOC-00000001", 0)
	failing := s.enqueue("DOC-0000000F", time.Minute)
	s.enqueue("DOC-00000003", 2*time.Minute)
	s.publisher.failOn = "DOC-0000000F"

	n, err := s.worker.ProcessBatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := s.store.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(failing.ID, pending[0].ID)
	s.Equal(1, pending[0].Attempts)

	s.publisher.failOn = ""
	n, err = s.worker.ProcessBatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *WorkerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.enqueue("DOC-00000001", 0)

	done := make(chan error, 1)
	go func() { done <- s.worker.Run(ctx) }()

	s.Eventually(func() bool {
		n, _ := s.store.CountPending(s.ctx)
		return n == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.Fail("worker did not stop")
	}
}

func (s *WorkerSuite) TestBreakerPausesPublishingUntilCooldown() {
	now := s.t0
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	s.worker = NewWorker(s.store, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBreaker(breaker),
	)
	failing := s.enqueue("DOC-0000000F", 0)
	s.publisher.failOn = "DOC-0000000F"

	for i := 0; i < 2; i++ {
		_, err := s.worker.ProcessBatch(s.ctx)
		s.Require().NoError(err)
	}
	s.True(breaker.IsOpen())

	_, err := s.worker.ProcessBatch(s.ctx)
	s.Require().NoError(err)
	pending, err := s.store.FetchPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(2, pending[0].Attempts, "no attempt while the circuit is open")

	s.publisher.failOn = ""
	now = now.Add(time.Minute)
	n, err := s.worker.ProcessBatch(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(breaker.IsOpen())
	s.Equal(failing.AggregateID, s.publisher.published[0].AggregateID)
}
