package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doctrack/internal/outbox"
	"doctrack/internal/routing/models"
	"doctrack/pkg/requestcontext"
)

const (
	aggregateDocument = "document"
	eventTypePrefix   = "routing."
	eventTypeDeleted  = eventTypePrefix + "deleted"
)

// routingEvent is the outbox payload consumers receive for every transition.
type routingEvent struct {
	EventID        int64      `json:"event_id,omitempty"`
	RecordID       int64      `json:"record_id"`
	DocumentID     string     `json:"document_id"`
	Action         string     `json:"action_type"`
	Status         string     `json:"status,omitempty"`
	FromDepartment string     `json:"from_department,omitempty"`
	ToDepartment   string     `json:"to_department,omitempty"`
	ActionBy       string     `json:"action_by"`
	Timestamp      time.Time  `json:"timestamp"`
	SettledBy      string     `json:"settled_by,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	RequestID      string     `json:"request_id,omitempty"`
}

// enqueueEvent writes the outbox entry for ev inside the caller's unit of work.
func (s *Service) enqueueEvent(ctx context.Context, doc *models.Document, ev *models.AuditEvent) error {
	return s.enqueue(ctx, eventTypePrefix+string(ev.Action), routingEvent{
		EventID:        ev.ID,
		RecordID:       doc.ID,
		DocumentID:     doc.PublicID,
		Action:         string(ev.Action),
		Status:         ev.Status,
		FromDepartment: ev.FromDepartment,
		ToDepartment:   ev.ToDepartment,
		ActionBy:       ev.ActionBy,
		Timestamp:      ev.Timestamp,
		SettledBy:      ev.Settlement.By,
		SettledAt:      ev.Settlement.At,
		RequestID:      requestcontext.RequestID(ctx),
	}, doc.PublicID)
}

func (s *Service) enqueueDeletion(ctx context.Context, doc *models.Document, actor models.Actor, at time.Time) error {
	return s.enqueue(ctx, eventTypeDeleted, routingEvent{
		RecordID:       doc.ID,
		DocumentID:     doc.PublicID,
		Action:         "deleted",
		FromDepartment: actor.Department,
		ActionBy:       actor.Name,
		Timestamp:      at,
		RequestID:      requestcontext.RequestID(ctx),
	}, doc.PublicID)
}

func (s *Service) enqueue(ctx context.Context, eventType string, payload routingEvent, aggregateID string) error {
	if s.outbox == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal routing event: %w", err)
	}
	entry := outbox.NewEntry(aggregateDocument, aggregateID, eventType, body, requestcontext.Now(ctx))
	if err := s.outbox.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("enqueue routing event: %w", err)
	}
	return nil
}
