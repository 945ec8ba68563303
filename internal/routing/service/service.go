// Package service is the document routing transition engine. Every
// transition validates, mutates the projection, appends one audit event and
// enqueues one outbox entry inside a single unit of work.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"doctrack/internal/outbox"
	"doctrack/internal/routing/metrics"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/visibility"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks DocumentStore,AuditLog,Outbox

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id int64) (*models.Document, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Document, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document, fields models.FieldSet) error
	Delete(ctx context.Context, id int64) error
	ListByCustodian(ctx context.Context, department string) ([]*models.Document, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Document, error)
}

type AuditLog interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	History(ctx context.Context, recordID int64) ([]models.AuditEvent, error)
	FindByID(ctx context.Context, id int64) (*models.AuditEvent, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error)
	MarkReceived(ctx context.Context, id int64, by string, at time.Time) error
	HasPendingTransfer(ctx context.Context, recordID int64, toDepartment string) (bool, error)
	PendingFor(ctx context.Context, department string) ([]models.AuditEvent, error)
	RecordIDsTouchedBy(ctx context.Context, department string) ([]int64, error)
	DeleteByRecord(ctx context.Context, recordID int64) error
}

type Outbox interface {
	Enqueue(ctx context.Context, entry *outbox.Entry) error
}

const defaultPublicIDAttempts = 5

// Service orchestrates document transitions and visibility-scoped reads.
type Service struct {
	documents     DocumentStore
	events        AuditLog
	outbox        Outbox
	tx            StoreTx
	visibility    *visibility.Resolver
	vocabulary    *models.Vocabulary
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	newPublicID   func() string
	maxIDAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the unit-of-work boundary. Without it the service serialises
// transitions per document with in-process shard locks.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithOutbox(o Outbox) Option {
	return func(s *Service) {
		s.outbox = o
	}
}

func WithVocabulary(v *models.Vocabulary) Option {
	return func(s *Service) {
		s.vocabulary = v
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithPublicIDGenerator replaces the DOC-XXXXXXXX generator. Tests use it to
// force collisions.
func WithPublicIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newPublicID = gen
	}
}

func New(documents DocumentStore, events AuditLog, opts ...Option) *Service {
	s := &Service{
		documents:     documents,
		events:        events,
		vocabulary:    models.DefaultVocabulary(),
		logger:        slog.Default(),
		tracer:        otel.Tracer("doctrack/routing"),
		newPublicID:   models.NewPublicID,
		maxIDAttempts: defaultPublicIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(0)
	}
	s.visibility = visibility.NewResolver(documents, events)
	return s
}

// Vocabulary exposes the configured status and document type names.
func (s *Service) Vocabulary() *models.Vocabulary {
	return s.vocabulary
}
