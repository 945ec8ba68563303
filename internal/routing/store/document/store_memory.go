package document

import (
	"context"
	"fmt"
	"sync"

	"doctrack/internal/routing/models"
	"doctrack/pkg/platform/sentinel"
	txcontext "doctrack/pkg/platform/tx"
)

// InMemoryStore keeps the document projection in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	docs       map[int64]*models.Document
	byPublicID map[string]int64
	nextID     int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		docs:       make(map[int64]*models.Document),
		byPublicID: make(map[string]int64),
	}
}

// Create assigns the next id. A taken public id yields sentinel.ErrConflict.
func (s *InMemoryStore) Create(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byPublicID[doc.PublicID]; taken {
		return fmt.Errorf("public id %s: %w", doc.PublicID, sentinel.ErrConflict)
	}
	s.nextID++
	doc.ID = s.nextID
	if doc.Version == 0 {
		doc.Version = 1
	}
	s.docs[doc.ID] = clone(doc)
	s.byPublicID[doc.PublicID] = doc.ID

	id, publicID := doc.ID, doc.PublicID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.docs, id)
		delete(s.byPublicID, publicID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(doc), nil
}

// FindByIDForUpdate is FindByID; callers hold the document's shard lock.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return s.FindByID(ctx, id)
}

func (s *InMemoryStore) FindByPublicID(_ context.Context, publicID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPublicID[publicID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.docs[id]), nil
}

// Update writes the given fields when doc.Version matches the stored version.
// On success doc carries the new version. A stale version yields
// sentinel.ErrInvalidState.
func (s *InMemoryStore) Update(ctx context.Context, doc *models.Document, fields models.FieldSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != doc.Version {
		return fmt.Errorf("document %d version %d: %w", doc.ID, doc.Version, sentinel.ErrInvalidState)
	}
	s.restoreOnRollback(ctx, clone(stored))
	copyFields(stored, doc, fields)
	stored.UpdatedAt = doc.UpdatedAt
	stored.Version++
	doc.Version = stored.Version
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	s.restoreOnRollback(ctx, clone(doc))
	delete(s.byPublicID, doc.PublicID)
	delete(s.docs, id)
	return nil
}

// restoreOnRollback puts prev back if the surrounding unit of work fails.
func (s *InMemoryStore) restoreOnRollback(ctx context.Context, prev *models.Document) {
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.docs[prev.ID] = prev
		s.byPublicID[prev.PublicID] = prev.ID
	})
}

// ListByCustodian returns documents currently held by department, newest first.
func (s *InMemoryStore) ListByCustodian(_ context.Context, department string) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.CurrentDepartment == department {
			out = append(out, clone(doc))
		}
	}
	models.SortNewestFirst(out)
	return out, nil
}

// ListByIDs returns the documents that exist among ids, newest first.
func (s *InMemoryStore) ListByIDs(_ context.Context, ids []int64) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if doc, ok := s.docs[id]; ok {
			out = append(out, clone(doc))
		}
	}
	models.SortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, clone(doc))
	}
	models.SortNewestFirst(out)
	return out, nil
}

func clone(doc *models.Document) *models.Document {
	c := *doc
	if doc.DateReceived != nil {
		d := *doc.DateReceived
		c.DateReceived = &d
	}
	return &c
}

func copyFields(dst, src *models.Document, fields models.FieldSet) {
	if fields.Has(models.FieldTitle) {
		dst.Title = src.Title
	}
	if fields.Has(models.FieldDocType) {
		dst.DocType = src.DocType
	}
	if fields.Has(models.FieldImplementingOffice) {
		dst.ImplementingOffice = src.ImplementingOffice
	}
	if fields.Has(models.FieldDateReceived) {
		if src.DateReceived == nil {
			dst.DateReceived = nil
		} else {
			d := *src.DateReceived
			dst.DateReceived = &d
		}
	}
	if fields.Has(models.FieldAmount) {
		dst.Amount = src.Amount
	}
	if fields.Has(models.FieldReleasedBy) {
		dst.ReleasedBy = src.ReleasedBy
	}
	if fields.Has(models.FieldReceivedBy) {
		dst.ReceivedBy = src.ReceivedBy
	}
	if fields.Has(models.FieldStatus) {
		dst.Status = src.Status
	}
	if fields.Has(models.FieldCurrentDepartment) {
		dst.CurrentDepartment = src.CurrentDepartment
	}
}
