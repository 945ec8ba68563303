package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"doctrack/internal/routing/models"
	"doctrack/internal/routing/service"
	"doctrack/internal/routing/store/auditlog"
	"doctrack/internal/routing/store/document"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
)

type countingSource struct {
	calls  atomic.Int32
	events []models.AuditEvent
	err    error
	gate   chan struct{}
}

func (c *countingSource) ListAll(_ context.Context) ([]models.AuditEvent, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.events, c.err
}

type AnalyticsServiceSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	ctx    context.Context
	logger *slog.Logger
}

func TestAnalyticsServiceSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceSuite))
}

func (s *AnalyticsServiceSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.ctx = requestcontext.WithTime(context.Background(), t0)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AnalyticsServiceSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *AnalyticsServiceSuite) TestServesFromRedisUntilExpiry() {
	source := &countingSource{events: []models.AuditEvent{ev(1, 1, "X", 0), ev(2, 1, "", time.Hour)}}
	svc := NewService(source, WithCache(NewRedisCache(s.client), time.Minute), WithLogger(s.logger))

	first, err := svc.Report(s.ctx)
	s.Require().NoError(err)
	second, err := svc.Report(s.ctx)
	s.Require().NoError(err)

	s.Equal(int32(1), source.calls.Load())
	s.Equal(first.Values, second.Values)
	s.True(s.mr.Exists(redisReportKey))

	s.mr.FastForward(2 * time.Minute)
	_, err = svc.Report(s.ctx)
	s.Require().NoError(err)
	s.Equal(int32(2), source.calls.Load())
}

func (s *AnalyticsServiceSuite) TestCacheOutageFallsBackToCompute() {
	source := &countingSource{}
	svc := NewService(source, WithCache(NewRedisCache(s.client), time.Minute), WithLogger(s.logger))
	s.mr.Close()

	report, err := svc.Report(s.ctx)
	s.Require().NoError(err)
	s.Empty(report.Departments)
}

func (s *AnalyticsServiceSuite) TestConcurrentMissesShareOneScan() {
	source := &countingSource{gate: make(chan struct{})}
	svc := NewService(source, WithLogger(s.logger))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Report(s.ctx)
			s.NoError(err)
		}()
	}
	s.Eventually(func() bool { return source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	s.LessOrEqual(source.calls.Load(), int32(10))
	s.GreaterOrEqual(source.calls.Load(), int32(1))
}

func (s *AnalyticsServiceSuite) TestScanFailureIsStorageError() {
	svc := NewService(&countingSource{err: errors.New("connection refused")}, WithLogger(s.logger))
	_, err := svc.Report(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage))
}

// TestRoutingScenario runs the Engineering, BAC, Accounting hand-off through
// the engine and checks who is charged for the wait.
func (s *AnalyticsServiceSuite) TestRoutingScenario() {
	docs := document.NewInMemory()
	events := auditlog.NewInMemory()
	engine := service.New(docs, events, service.WithLogger(s.logger))
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), t0.Add(d))
	}
	engineering := models.Actor{Name: "E", Department: "Engineering"}
	bac := models.Actor{Name: "B", Department: "BAC"}
	accounting := models.Actor{Name: "A", Department: "Accounting"}

	doc, err := engine.CreateAndRelease(at(0), engineering, models.CreateRequest{
		Title: "Canal", DocType: "Purchase Request", ImplementingOffice: "BAC", Status: "Request for PR",
	})
	s.Require().NoError(err)
	_, err = engine.Transfer(at(time.Hour), bac, doc.ID, "Accounting", "Request for PO")
	s.Require().NoError(err)
	pending, err := engine.PendingTransfers(context.Background(), "Accounting")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	_, err = engine.Receive(at(4*time.Hour), accounting, pending[0].ID)
	s.Require().NoError(err)

	report, err := NewService(events, WithLogger(s.logger)).Report(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Accounting", "BAC"}, report.Labels)
	s.Equal([]float64{3, 1}, report.Values)
}
