package auditlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"doctrack/internal/routing/models"
	"doctrack/pkg/platform/sentinel"
	txcontext "doctrack/pkg/platform/tx"
	"doctrack/pkg/requestcontext"
)

// InMemoryStore is an append-only event log held in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   map[int64]*models.AuditEvent
	byRecord map[int64][]int64
	nextID   int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		events:   make(map[int64]*models.AuditEvent),
		byRecord: make(map[int64][]int64),
	}
}

// Append validates and stores the event, assigning its id and, when absent,
// its timestamp. A second pending transfer to the same department yields
// sentinel.ErrConflict.
func (s *InMemoryStore) Append(ctx context.Context, event *models.AuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is required")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	event.PrepareForAppend(requestcontext.Now(ctx))

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.IsPendingTransfer() && s.hasPendingLocked(event.RecordID, event.ToDepartment) {
		return fmt.Errorf("pending transfer to %s: %w", event.ToDepartment, sentinel.ErrConflict)
	}
	s.nextID++
	event.ID = s.nextID
	stored := *event
	s.events[event.ID] = &stored
	s.byRecord[event.RecordID] = append(s.byRecord[event.RecordID], event.ID)

	id, recordID := event.ID, event.RecordID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.events, id)
		ids := s.byRecord[recordID]
		for i, v := range ids {
			if v == id {
				s.byRecord[recordID] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
		if len(s.byRecord[recordID]) == 0 {
			delete(s.byRecord, recordID)
		}
	})
	return nil
}

// History returns a document's events ordered by (timestamp, id).
func (s *InMemoryStore) History(_ context.Context, recordID int64) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEvent, 0, len(s.byRecord[recordID]))
	for _, id := range s.byRecord[recordID] {
		out = append(out, *s.events[id])
	}
	models.SortHistory(out)
	return out, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *ev
	return &c, nil
}

// FindByIDForUpdate is FindByID; callers hold the document's shard lock.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error) {
	return s.FindByID(ctx, id)
}

// MarkReceived settles a pending transfer. An event in any other state yields
// sentinel.ErrInvalidState.
func (s *InMemoryStore) MarkReceived(ctx context.Context, id int64, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !ev.IsPendingTransfer() {
		return fmt.Errorf("event %d: %w", id, sentinel.ErrInvalidState)
	}
	prev := *ev
	if err := ev.Settle(by, at); err != nil {
		return err
	}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := prev
		s.events[id] = &restored
	})
	return nil
}

func (s *InMemoryStore) HasPendingTransfer(_ context.Context, recordID int64, toDepartment string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPendingLocked(recordID, toDepartment), nil
}

func (s *InMemoryStore) hasPendingLocked(recordID int64, toDepartment string) bool {
	for _, id := range s.byRecord[recordID] {
		ev := s.events[id]
		if ev.IsPendingTransfer() && ev.ToDepartment == toDepartment {
			return true
		}
	}
	return false
}

// PendingFor lists transfers awaiting receipt by department, oldest first.
func (s *InMemoryStore) PendingFor(_ context.Context, department string) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.AuditEvent{}
	for _, ev := range s.events {
		if ev.IsPendingTransfer() && ev.ToDepartment == department {
			out = append(out, *ev)
		}
	}
	models.SortHistory(out)
	return out, nil
}

// RecordIDsTouchedBy returns the ids of documents with an event naming
// department on either side, ascending.
func (s *InMemoryStore) RecordIDsTouchedBy(_ context.Context, department string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []int64{}
	for recordID, eventIDs := range s.byRecord {
		for _, id := range eventIDs {
			if s.events[id].Touches(department) {
				ids = append(ids, recordID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListAll returns every event grouped by record and ordered by (timestamp, id)
// within each record.
func (s *InMemoryStore) ListAll(_ context.Context) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordID != out[j].RecordID {
			return out[i].RecordID < out[j].RecordID
		}
		return out[i].Before(&out[j])
	})
	return out, nil
}

// DeleteByRecord drops a document's events. It is only called when the
// document itself is deleted.
func (s *InMemoryStore) DeleteByRecord(ctx context.Context, recordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byRecord[recordID]
	removed := make([]*models.AuditEvent, 0, len(ids))
	for _, id := range ids {
		removed = append(removed, s.events[id])
		delete(s.events, id)
	}
	delete(s.byRecord, recordID)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ev := range removed {
			s.events[ev.ID] = ev
		}
		if len(ids) > 0 {
			s.byRecord[recordID] = ids
		}
	})
	return nil
}
