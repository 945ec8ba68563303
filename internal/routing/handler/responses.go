package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"doctrack/internal/routing/models"
)

// DocumentResponse is the wire form of a document.
type DocumentResponse struct {
	ID                 int64            `json:"id"`
	DocumentID         string           `json:"document_id"`
	Title              string           `json:"title"`
	DocType            string           `json:"doc_type"`
	CurrentDepartment  string           `json:"current_department"`
	ImplementingOffice string           `json:"implementing_office"`
	DateReceived       *string          `json:"date_received"`
	Amount             *decimal.Decimal `json:"amount"`
	ReleasedBy         string           `json:"released_by"`
	ReceivedBy         string           `json:"received_by"`
	Status             string           `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ListResponse is the body of GET /documents and GET /documents/trace.
type ListResponse struct {
	Total     int                 `json:"total"`
	Documents []*DocumentResponse `json:"documents"`
}

// EventResponse is the wire form of one audit event.
type EventResponse struct {
	ID             int64      `json:"id"`
	RecordID       int64      `json:"record_id"`
	ActionType     string     `json:"action_type"`
	Status         string     `json:"status"`
	FromDepartment string     `json:"from_department,omitempty"`
	ToDepartment   string     `json:"to_department,omitempty"`
	ActionBy       string     `json:"action_by"`
	Timestamp      time.Time  `json:"timestamp"`
	Pending        bool       `json:"pending"`
	ReceivedBy     string     `json:"received_by,omitempty"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
}

// HistoryResponse is the body of GET /documents/{id}/history.
type HistoryResponse struct {
	DocumentID string           `json:"document_id"`
	Events     []*EventResponse `json:"events"`
}

// PendingResponse is the body of GET /transfers/pending.
type PendingResponse struct {
	Department string           `json:"department"`
	Transfers  []*EventResponse `json:"transfers"`
}

// SummaryResponse is the dashboard body of GET /documents/summary.
type SummaryResponse struct {
	Total        int                 `json:"total"`
	ByStatus     map[string]int      `json:"by_status"`
	ByDepartment map[string]int      `json:"by_department"`
	Latest       []*DocumentResponse `json:"latest"`
}

func FromDocument(d *models.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:                 d.ID,
		DocumentID:         d.PublicID,
		Title:              d.Title,
		DocType:            d.DocType,
		CurrentDepartment:  d.CurrentDepartment,
		ImplementingOffice: d.ImplementingOffice,
		ReleasedBy:         d.ReleasedBy,
		ReceivedBy:         d.ReceivedBy,
		Status:             d.Status,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.DateReceived != nil {
		s := d.DateReceived.Format(DateLayout)
		resp.DateReceived = &s
	}
	if d.Amount.Valid {
		a := d.Amount.Decimal
		resp.Amount = &a
	}
	return resp
}

func FromDocuments(docs []*models.Document) []*DocumentResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDocument(d))
	}
	return out
}

func FromEvent(e models.AuditEvent) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		RecordID:       e.RecordID,
		ActionType:     string(e.Action),
		Status:         e.Status,
		FromDepartment: e.FromDepartment,
		ToDepartment:   e.ToDepartment,
		ActionBy:       e.ActionBy,
		Timestamp:      e.Timestamp,
		Pending:        e.IsPendingTransfer(),
		ReceivedBy:     e.Settlement.By,
		ReceivedAt:     e.Settlement.At,
	}
}

func FromEvents(events []models.AuditEvent) []*EventResponse {
	out := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return out
}

func FromSummary(s models.Summary) *SummaryResponse {
	return &SummaryResponse{
		Total:        s.Total,
		ByStatus:     s.ByStatus,
		ByDepartment: s.ByDepartment,
		Latest:       FromDocuments(s.Latest),
	}
}
