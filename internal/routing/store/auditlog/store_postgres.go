package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"doctrack/internal/platform/postgres"
	"doctrack/internal/routing/models"
	"doctrack/pkg/platform/sentinel"
	txcontext "doctrack/pkg/platform/tx"
	"doctrack/pkg/requestcontext"
)

const pendingTransferConstraint = "audit_events_pending_transfer_key"

const eventColumns = `id, record_id, action_type, status, from_department, to_department,
	action_by, timestamp, settlement_state, settled_by, settled_at`

// PostgresStore persists the audit log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event *models.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is required")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	event.PrepareForAppend(requestcontext.Now(ctx))

	query := `
		INSERT INTO audit_events (record_id, action_type, status, from_department, to_department,
			action_by, timestamp, settlement_state, settled_by, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query,
		event.RecordID, string(event.Action), event.Status,
		nullable(event.FromDepartment), nullable(event.ToDepartment),
		event.ActionBy, event.Timestamp, string(event.Settlement.State),
		nullable(event.Settlement.By), event.Settlement.At,
	).Scan(&event.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err, pendingTransferConstraint) {
			return fmt.Errorf("pending transfer to %s: %w", event.ToDepartment, sentinel.ErrConflict)
		}
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, recordID int64) ([]models.AuditEvent, error) {
	return s.list(ctx, `SELECT `+eventColumns+` FROM audit_events
		WHERE record_id = $1 ORDER BY timestamp, id`, recordID)
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*models.AuditEvent, error) {
	return s.findOne(ctx, `SELECT `+eventColumns+` FROM audit_events WHERE id = $1`, id)
}

// FindByIDForUpdate locks the event row until the surrounding transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error) {
	return s.findOne(ctx, `SELECT `+eventColumns+` FROM audit_events WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, id int64) (*models.AuditEvent, error) {
	ev, err := scanEvent(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find audit event: %w", err)
	}
	return ev, nil
}

// MarkReceived settles a pending transfer with a conditional update, so two
// concurrent receivers cannot both succeed.
func (s *PostgresStore) MarkReceived(ctx context.Context, id int64, by string, at time.Time) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE audit_events
		SET action_type = 'received', settlement_state = 'settled', settled_by = $2, settled_at = $3
		WHERE id = $1 AND action_type = 'transfer' AND settlement_state = 'pending'
	`, id, by, at)
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("event %d: %w", id, sentinel.ErrInvalidState)
}

func (s *PostgresStore) HasPendingTransfer(ctx context.Context, recordID int64, toDepartment string) (bool, error) {
	var exists bool
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM audit_events
			WHERE record_id = $1 AND to_department = $2
			  AND action_type = 'transfer' AND settlement_state = 'pending'
		)
	`, recordID, toDepartment).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending transfer: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) PendingFor(ctx context.Context, department string) ([]models.AuditEvent, error) {
	return s.list(ctx, `SELECT `+eventColumns+` FROM audit_events
		WHERE to_department = $1 AND action_type = 'transfer' AND settlement_state = 'pending'
		ORDER BY timestamp, id`, department)
}

func (s *PostgresStore) RecordIDsTouchedBy(ctx context.Context, department string) ([]int64, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT DISTINCT record_id FROM audit_events
		WHERE from_department = $1 OR to_department = $1
		ORDER BY record_id
	`, department)
	if err != nil {
		return nil, fmt.Errorf("list touched records: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.AuditEvent, error) {
	return s.list(ctx, `SELECT `+eventColumns+` FROM audit_events ORDER BY record_id, timestamp, id`)
}

// DeleteByRecord is normally redundant with the foreign key cascade.
func (s *PostgresStore) DeleteByRecord(ctx context.Context, recordID int64) error {
	if _, err := txcontext.Pick(ctx, s.db).ExecContext(ctx,
		`DELETE FROM audit_events WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("delete audit events: %w", err)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.AuditEvent, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.AuditEvent, error) {
	var (
		ev                  models.AuditEvent
		action, state       string
		from, to, settledBy sql.NullString
		settledAt           sql.NullTime
	)
	err := row.Scan(&ev.ID, &ev.RecordID, &action, &ev.Status, &from, &to,
		&ev.ActionBy, &ev.Timestamp, &state, &settledBy, &settledAt)
	if err != nil {
		return nil, err
	}
	ev.Action = models.ActionType(action)
	ev.FromDepartment = from.String
	ev.ToDepartment = to.String
	ev.Settlement = models.Settlement{State: models.SettlementState(state), By: settledBy.String}
	if settledAt.Valid {
		t := settledAt.Time
		ev.Settlement.At = &t
	}
	return &ev, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
