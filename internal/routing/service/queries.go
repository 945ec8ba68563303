package service

import (
	"context"
	"strconv"
	"strings"

	"doctrack/internal/routing/models"
	"doctrack/internal/routing/visibility"
	dErrors "doctrack/pkg/domain-errors"
)

// ListVisible returns every document the department holds or has touched,
// newest first.
func (s *Service) ListVisible(ctx context.Context, department string) ([]*models.Document, error) {
	if strings.TrimSpace(department) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "department is required")
	}
	docs, err := s.visibility.Visible(ctx, department)
	if err != nil {
		return nil, wrapStoreErr(err, "")
	}
	return docs, nil
}

// Trace finds visible documents whose public id or title contains query,
// ignoring case.
func (s *Service) Trace(ctx context.Context, department, query string) ([]*models.Document, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "search query is required")
	}
	docs, err := s.ListVisible(ctx, department)
	if err != nil {
		return nil, err
	}
	out := []*models.Document{}
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.PublicID), query) || strings.Contains(strings.ToLower(d.Title), query) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Get returns one document if the department may see it. Invisible documents
// are reported as not found.
func (s *Service) Get(ctx context.Context, department string, recordID int64) (*models.Document, error) {
	doc, _, err := s.loadVisible(ctx, department, recordID)
	return doc, err
}

// History returns a visible document with its events ordered by
// (timestamp, id), read under one visibility check.
func (s *Service) History(ctx context.Context, department string, recordID int64) (*models.Document, []models.AuditEvent, error) {
	return s.loadVisible(ctx, department, recordID)
}

func (s *Service) loadVisible(ctx context.Context, department string, recordID int64) (*models.Document, []models.AuditEvent, error) {
	doc, err := s.documents.FindByID(ctx, recordID)
	if err != nil {
		return nil, nil, documentNotFound(err)
	}
	history, err := s.events.History(ctx, recordID)
	if err != nil {
		return nil, nil, wrapStoreErr(err, "")
	}
	if !visibility.CanSee(department, doc, history) {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return doc, history, nil
}

// ResolveRecordID accepts either a numeric record id or a DOC-XXXXXXXX public id.
func (s *Service) ResolveRecordID(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if models.IsPublicID(strings.ToUpper(ref)) {
		doc, err := s.documents.FindByPublicID(ctx, strings.ToUpper(ref))
		if err != nil {
			return 0, documentNotFound(err)
		}
		return doc.ID, nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid document id: "+ref)
	}
	return id, nil
}

// Summary is the dashboard view scoped to what the department can see.
func (s *Service) Summary(ctx context.Context, department string) (models.Summary, error) {
	docs, err := s.ListVisible(ctx, department)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summarize(docs, models.SummaryLatestLimit), nil
}

// PendingTransfers lists hand-offs waiting for the department to receive them.
func (s *Service) PendingTransfers(ctx context.Context, department string) ([]models.AuditEvent, error) {
	if strings.TrimSpace(department) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "department is required")
	}
	events, err := s.events.PendingFor(ctx, department)
	if err != nil {
		return nil, wrapStoreErr(err, "")
	}
	return events, nil
}
