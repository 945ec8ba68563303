package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"doctrack/internal/platform/postgres"
	"doctrack/internal/routing/models"
	"doctrack/pkg/platform/sentinel"
	txcontext "doctrack/pkg/platform/tx"
)

const publicIDConstraint = "documents_public_id_key"

const documentColumns = `id, public_id, title, doc_type, current_department, implementing_office,
	date_received, amount, released_by, received_by, status, created_at, updated_at, version`

// PostgresStore persists the document projection in PostgreSQL. Writes join
// the transaction bound to the context when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	query := `
		INSERT INTO documents (public_id, title, doc_type, current_department, implementing_office,
			date_received, amount, released_by, received_by, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		doc.PublicID, doc.Title, doc.DocType, doc.CurrentDepartment, doc.ImplementingOffice,
		doc.DateReceived, doc.Amount, doc.ReleasedBy, doc.ReceivedBy, doc.Status,
		doc.CreatedAt, doc.UpdatedAt, doc.Version,
	).Scan(&doc.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err, publicIDConstraint) {
			return fmt.Errorf("public id %s: %w", doc.PublicID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	return s.findOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return s.findOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) FindByPublicID(ctx context.Context, publicID string) (*models.Document, error) {
	return s.findOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE public_id = $1`, publicID)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Document, error) {
	doc, err := scanDocument(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

type column struct {
	field models.Field
	name  string
	value func(*models.Document) any
}

var projectionColumns = []column{
	{models.FieldTitle, "title", func(d *models.Document) any { return d.Title }},
	{models.FieldDocType, "doc_type", func(d *models.Document) any { return d.DocType }},
	{models.FieldImplementingOffice, "implementing_office", func(d *models.Document) any { return d.ImplementingOffice }},
	{models.FieldDateReceived, "date_received", func(d *models.Document) any { return d.DateReceived }},
	{models.FieldAmount, "amount", func(d *models.Document) any { return d.Amount }},
	{models.FieldReleasedBy, "released_by", func(d *models.Document) any { return d.ReleasedBy }},
	{models.FieldReceivedBy, "received_by", func(d *models.Document) any { return d.ReceivedBy }},
	{models.FieldStatus, "status", func(d *models.Document) any { return d.Status }},
	{models.FieldCurrentDepartment, "current_department", func(d *models.Document) any { return d.CurrentDepartment }},
}

// Update writes the given fields guarded by the version the caller read.
func (s *PostgresStore) Update(ctx context.Context, doc *models.Document, fields models.FieldSet) error {
	var (
		sets []string
		args []any
	)
	for _, c := range projectionColumns {
		if fields.Has(c.field) {
			args = append(args, c.value(doc))
			sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
		}
	}
	args = append(args, doc.UpdatedAt)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)), "version = version + 1")
	args = append(args, doc.ID, doc.Version)

	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d AND version = $%d RETURNING version`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	var version int64
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindByID(ctx, doc.ID); findErr != nil {
			return findErr
		}
		return fmt.Errorf("document %d version %d: %w", doc.ID, doc.Version, sentinel.ErrInvalidState)
	}
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	doc.Version = version
	return nil
}

// Delete removes the document; its audit events go with it through the
// foreign key cascade.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCustodian(ctx context.Context, department string) ([]*models.Document, error) {
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE current_department = $1 ORDER BY created_at DESC, id DESC`, department)
}

func (s *PostgresStore) ListByIDs(ctx context.Context, ids []int64) ([]*models.Document, error) {
	if len(ids) == 0 {
		return []*models.Document{}, nil
	}
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE id = ANY($1) ORDER BY created_at DESC, id DESC`, pq.Array(ids))
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Document, error) {
	return s.list(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc          models.Document
		dateReceived sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.PublicID, &doc.Title, &doc.DocType, &doc.CurrentDepartment, &doc.ImplementingOffice,
		&dateReceived, &doc.Amount, &doc.ReleasedBy, &doc.ReceivedBy, &doc.Status,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.Version,
	)
	if err != nil {
		return nil, err
	}
	if dateReceived.Valid {
		t := dateReceived.Time
		doc.DateReceived = &t
	}
	return &doc, nil
}
