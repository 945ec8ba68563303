package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"doctrack/internal/analytics"
	"doctrack/internal/app"
	jwttoken "doctrack/internal/jwt_token"
	"doctrack/internal/outbox"
	"doctrack/internal/platform/config"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/store/auditlog"
	"doctrack/internal/routing/store/document"
	"doctrack/pkg/requestcontext"
)

var t0 = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

type CtlSuite struct {
	suite.Suite
	cfg    config.Server
	stores *app.Stores
}

func TestCtlSuite(t *testing.T) {
	suite.Run(t, new(CtlSuite))
}

func (s *CtlSuite) SetupTest() {
	cfg, err := config.FromMap(map[string]string{
		"DOCTRACK_JWT_SIGNING_KEY": "test-signing-key",
	})
	s.Require().NoError(err)
	s.cfg = cfg
	s.stores = &app.Stores{
		Documents: document.NewInMemory(),
		Events:    auditlog.NewInMemory(),
		Outbox:    outbox.NewInMemory(),
	}
}

func (s *CtlSuite) env() env {
	return env{
		loadConfig: func() (config.Server, error) { return s.cfg, nil },
		openStores: func(context.Context, config.Server, *slog.Logger) (*app.Stores, error) {
			return s.stores, nil
		},
		newLogger: func(config.Server, io.Writer) *slog.Logger {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		},
	}
}

func (s *CtlSuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(s.env())
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed routes one document Engineering -> BAC -> Accounting.
func (s *CtlSuite) seed() int64 {
	engine := app.NewEngine(s.cfg, s.stores, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), t0.Add(d))
	}
	doc, err := engine.CreateAndRelease(at(0), models.Actor{Name: "E", Department: "Engineering"}, models.CreateRequest{
		Title: "Canal", DocType: "Voucher", ImplementingOffice: "BAC", Status: "Pending",
	})
	s.Require().NoError(err)
	_, err = engine.Transfer(at(4*time.Hour), models.Actor{Name: "B", Department: "BAC"}, doc.ID, "Accounting", "For Payment")
	s.Require().NoError(err)
	pending, err := engine.PendingTransfers(context.Background(), "Accounting")
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	_, err = engine.Receive(at(6*time.Hour), models.Actor{Name: "A", Department: "Accounting"}, pending[0].ID)
	s.Require().NoError(err)
	return doc.ID
}

func (s *CtlSuite) TestVerify() {
	s.Run("clean projection", func() {
		s.seed()
		out, err := s.run("verify")
		s.Require().NoError(err)
		s.Contains(out, "matches")
	})

	s.Run("drift exits with status 2", func() {
		s.SetupTest()
		id := s.seed()
		ctx := context.Background()
		doc, err := s.stores.Documents.FindByID(ctx, id)
		s.Require().NoError(err)
		doc.CurrentDepartment = "Treasury"
		s.Require().NoError(s.stores.Documents.Update(ctx, doc, models.Fields(models.FieldCurrentDepartment)))

		out, err := s.run("verify")
		s.Require().Error(err)
		s.ErrorIs(err, errDrift)
		s.Equal(2, exitCode(err))
		s.Contains(out, "stored Treasury")
		s.Contains(out, "replayed Accounting")
	})
}

func (s *CtlSuite) TestAnalytics() {
	s.Run("empty log", func() {
		out, err := s.run("analytics")
		s.Require().NoError(err)
		s.Contains(out, "no completed dwell intervals")
	})

	s.Run("table", func() {
		s.seed()
		out, err := s.run("analytics")
		s.Require().NoError(err)
		s.Contains(out, "DEPARTMENT")
		s.Contains(out, "BAC")
	})

	s.Run("json", func() {
		out, err := s.run("analytics", "--json")
		s.Require().NoError(err)
		var report analytics.Report
		s.Require().NoError(json.Unmarshal([]byte(out), &report))
		s.NotEmpty(report.Departments)
	})
}

func (s *CtlSuite) TestToken() {
	out, err := s.run("token", "--name", "Ana", "--department", "BAC", "--role", "admin", "--ttl", "1h")
	s.Require().NoError(err)

	tokens := jwttoken.NewJWTService(s.cfg.JWTSigningKey, s.cfg.JWTIssuer, s.cfg.JWTAudience)
	claims, err := tokens.ValidateToken(strings.TrimSpace(out))
	s.Require().NoError(err)
	s.Equal(requestcontext.Identity{Name: "Ana", Department: "BAC", Role: "admin"}, claims.Identity())
}

func (s *CtlSuite) TestTokenRequiresDepartment() {
	_, err := s.run("token", "--name", "Ana")
	s.Error(err)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	e := defaultEnv()
	e.loadConfig = func() (config.Server, error) { return config.Server{}, nil }
	cmd := newRootCmd(e)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"migrate"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Equal(t, 1, exitCode(err))
}
