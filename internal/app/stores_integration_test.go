//go:build integration

package app_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doctrack/internal/app"
	"doctrack/internal/platform/config"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/projection"
	"doctrack/internal/routing/service"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/requestcontext"
	"doctrack/pkg/testutil/containers"
)

type PostgresEngineSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	stores   *app.Stores
	engine   *service.Service
}

func TestPostgresEngineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEngineSuite))
}

func (s *PostgresEngineSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())

	cfg, err := config.FromMap(map[string]string{
		"DATABASE_URL":             s.postgres.DSN,
		"DOCTRACK_JWT_SIGNING_KEY": "integration",
		"DATABASE_AUTO_MIGRATE":    "true",
	})
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.stores, err = app.OpenStores(context.Background(), cfg, logger)
	s.Require().NoError(err)
	s.Require().NotNil(s.stores.Tx)
	s.engine = app.NewEngine(cfg, s.stores, logger)
}

func (s *PostgresEngineSuite) TearDownSuite() {
	if s.stores != nil {
		_ = s.stores.Close()
	}
}

func (s *PostgresEngineSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox", "audit_events", "documents"))
}

func (s *PostgresEngineSuite) at(d time.Duration) context.Context {
	base := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	return requestcontext.WithTime(context.Background(), base.Add(d))
}

func (s *PostgresEngineSuite) TestConcurrentReceiveSettlesOnce() {
	eng := models.Actor{Name: "E", Department: "Engineering"}
	doc, err := s.engine.CreateAndRelease(s.at(0), eng, models.CreateRequest{
		Title: "Canal", DocType: "Voucher", ImplementingOffice: "BAC", Status: "Pending",
	})
	s.Require().NoError(err)
	_, err = s.engine.Transfer(s.at(time.Hour), models.Actor{Name: "B", Department: "BAC"}, doc.ID, "Accounting", "For Payment")
	s.Require().NoError(err)
	pending, err := s.engine.PendingTransfers(context.Background(), "Accounting")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)

	const receivers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < receivers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Receive(s.at(2*time.Hour), models.Actor{Name: "A", Department: "Accounting"}, pending[0].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case dErrors.HasCode(err, dErrors.CodeNotPendingTransfer):
				rejected++
			default:
				s.Failf("unexpected receive error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, ok)
	s.Equal(receivers-1, rejected)

	stored, err := s.stores.Documents.FindByID(context.Background(), doc.ID)
	s.Require().NoError(err)
	s.Equal("Accounting", stored.CurrentDepartment)

	count, err := s.stores.Outbox.CountPending(context.Background())
	s.Require().NoError(err)
	s.Equal(3, count, "release, transfer and one receipt")

	drifts, err := projection.Verify(context.Background(), s.stores.Documents, s.stores.Events)
	s.Require().NoError(err)
	s.Empty(drifts)
}

func (s *PostgresEngineSuite) TestDuplicateTransferLeavesNoTrace() {
	eng := models.Actor{Name: "E", Department: "Engineering"}
	bac := models.Actor{Name: "B", Department: "BAC"}
	doc, err := s.engine.CreateAndRelease(s.at(0), eng, models.CreateRequest{
		Title: "Memo", DocType: "Memorandum", ImplementingOffice: "BAC", Status: "Pending",
	})
	s.Require().NoError(err)
	_, err = s.engine.Transfer(s.at(time.Hour), bac, doc.ID, "Accounting", "For Payment")
	s.Require().NoError(err)

	_, err = s.engine.Transfer(s.at(2*time.Hour), bac, doc.ID, "Accounting", "Pending")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := s.stores.Documents.FindByID(context.Background(), doc.ID)
	s.Require().NoError(err)
	s.Equal("For Payment", stored.Status)
	_, events, err := s.engine.History(context.Background(), "BAC", doc.ID)
	s.Require().NoError(err)
	s.Len(events, 2)
	count, err := s.stores.Outbox.CountPending(context.Background())
	s.Require().NoError(err)
	s.Equal(2, count)
}
