// Package projection rebuilds custody and status from the audit log and
// compares the result with the stored document projection.
package projection

import (
	"context"
	"fmt"
	"sort"

	"doctrack/internal/routing/models"
)

// Custody is the replayable part of a document: who holds it and its status.
type Custody struct {
	Department string `json:"department"`
	Status     string `json:"status"`
}

type fact struct {
	models.Mark
	department string
	status     string
}

// Fold replays one document's events. Each event's status takes effect at its
// timestamp; custody moves at the release and at every settled receipt.
func Fold(events []models.AuditEvent) Custody {
	facts := make([]fact, 0, len(events)+1)
	for _, ev := range events {
		for _, m := range ev.Marks() {
			f := fact{Mark: m, status: ev.Status}
			if m.Settlement || ev.Action == models.ActionRelease {
				f.department = ev.ToDepartment
			}
			facts = append(facts, f)
		}
	}

	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Before(facts[j].Mark)
	})

	var c Custody
	for _, f := range facts {
		if f.department != "" {
			c.Department = f.department
		}
		if f.status != "" {
			c.Status = f.status
		}
	}
	return c
}

// Drift is a document whose stored projection disagrees with its log.
type Drift struct {
	RecordID   int64   `json:"record_id"`
	DocumentID string  `json:"document_id"`
	Stored     Custody `json:"stored"`
	Replayed   Custody `json:"replayed"`
}

type DocumentSource interface {
	ListAll(ctx context.Context) ([]*models.Document, error)
}

type EventSource interface {
	ListAll(ctx context.Context) ([]models.AuditEvent, error)
}

// Verify folds every document's history and reports mismatches, ordered by
// record id. Documents without any events are reported too.
func Verify(ctx context.Context, documents DocumentSource, events EventSource) ([]Drift, error) {
	docs, err := documents.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	all, err := events.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	byRecord := make(map[int64][]models.AuditEvent)
	for _, ev := range all {
		byRecord[ev.RecordID] = append(byRecord[ev.RecordID], ev)
	}

	drifts := []Drift{}
	for _, doc := range docs {
		replayed := Fold(byRecord[doc.ID])
		stored := Custody{Department: doc.CurrentDepartment, Status: doc.Status}
		if replayed != stored {
			drifts = append(drifts, Drift{
				RecordID:   doc.ID,
				DocumentID: doc.PublicID,
				Stored:     stored,
				Replayed:   replayed,
			})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].RecordID < drifts[j].RecordID })
	return drifts, nil
}
