// Package visibility decides which documents a department may see: the ones
// it holds now and the ones it ever sent or received.
package visibility

import (
	"context"
	"fmt"

	"doctrack/internal/routing/models"
)

type DocumentLister interface {
	ListByCustodian(ctx context.Context, department string) ([]*models.Document, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Document, error)
}

type TouchIndex interface {
	RecordIDsTouchedBy(ctx context.Context, department string) ([]int64, error)
}

// Resolver scopes reads. It never gates writes.
type Resolver struct {
	documents DocumentLister
	events    TouchIndex
}

func NewResolver(documents DocumentLister, events TouchIndex) *Resolver {
	return &Resolver{documents: documents, events: events}
}

// Visible returns the department's documents ordered by created_at desc, id desc.
func (r *Resolver) Visible(ctx context.Context, department string) ([]*models.Document, error) {
	if department == "" {
		return []*models.Document{}, nil
	}
	held, err := r.documents.ListByCustodian(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("list held documents: %w", err)
	}
	ids, err := r.events.RecordIDsTouchedBy(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("list touched documents: %w", err)
	}
	touched, err := r.documents.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load touched documents: %w", err)
	}
	return Union(held, touched), nil
}

// CanSee reports whether department may read doc given the doc's history.
func CanSee(department string, doc *models.Document, history []models.AuditEvent) bool {
	if department == "" || doc == nil {
		return false
	}
	if doc.CurrentDepartment == department {
		return true
	}
	for i := range history {
		if history[i].Touches(department) {
			return true
		}
	}
	return false
}

// Union merges document sets, keeping one copy per id, newest first.
func Union(sets ...[]*models.Document) []*models.Document {
	seen := make(map[int64]struct{})
	out := []*models.Document{}
	for _, set := range sets {
		for _, d := range set {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, d)
		}
	}
	models.SortNewestFirst(out)
	return out
}
