// Package app builds the storage and engine graph shared by cmd/server and
// cmd/doctrackctl.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"doctrack/internal/outbox"
	"doctrack/internal/platform/config"
	"doctrack/internal/platform/postgres"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/service"
	"doctrack/internal/routing/store/auditlog"
	"doctrack/internal/routing/store/document"
)

// DocumentStore is the projection store as the engine and the replay see it.
type DocumentStore interface {
	service.DocumentStore
	ListAll(ctx context.Context) ([]*models.Document, error)
}

// AuditLog is the event log as the engine, analytics and the replay see it.
type AuditLog interface {
	service.AuditLog
	ListAll(ctx context.Context) ([]models.AuditEvent, error)
}

// Stores groups one backend's stores with the unit of work that spans them.
type Stores struct {
	DB        *sql.DB
	Documents DocumentStore
	Events    AuditLog
	Outbox    outbox.Store
	// Tx is nil for the in-memory backend; the engine then uses shard locks.
	Tx service.StoreTx
}

// OpenStores picks Postgres when a database URL is configured and in-memory
// stores otherwise.
func OpenStores(ctx context.Context, cfg config.Server, logger *slog.Logger) (*Stores, error) {
	if !cfg.UsesPostgres() {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return &Stores{
			Documents: document.NewInMemory(),
			Events:    auditlog.NewInMemory(),
			Outbox:    outbox.NewInMemory(),
		}, nil
	}

	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.InfoContext(ctx, "migrations applied", "migrations", applied)
		}
	}
	return &Stores{
		DB:        db,
		Documents: document.NewPostgres(db),
		Events:    auditlog.NewPostgres(db),
		Outbox:    outbox.NewPostgres(db),
		Tx:        postgres.NewTxRunner(db, cfg.TxTimeout),
	}, nil
}

// Ping checks the database. The in-memory backend is always up.
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Vocabulary applies configured overrides on top of the built-in lists.
func Vocabulary(cfg config.Server) *models.Vocabulary {
	statuses, docTypes := models.DefaultStatuses, models.DefaultDocumentTypes
	if len(cfg.Statuses) > 0 {
		statuses = cfg.Statuses
	}
	if len(cfg.DocumentTypes) > 0 {
		docTypes = cfg.DocumentTypes
	}
	return models.NewVocabulary(statuses, docTypes)
}

// NewEngine builds the routing engine over stores.
func NewEngine(cfg config.Server, stores *Stores, logger *slog.Logger, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger),
		service.WithVocabulary(Vocabulary(cfg)),
		service.WithOutbox(stores.Outbox),
	}
	if stores.Tx != nil {
		base = append(base, service.WithTx(stores.Tx))
	}
	return service.New(stores.Documents, stores.Events, append(base, opts...)...)
}
