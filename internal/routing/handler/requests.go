package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
)

// DateLayout is the wire format of date_received.
const DateLayout = "2006-01-02"

const maxTextLen = 512

// CreateDocumentRequest is the HTTP request body for POST /documents.
type CreateDocumentRequest struct {
	Title              string           `json:"title"`
	DocType            string           `json:"doc_type"`
	ImplementingOffice string           `json:"implementing_office"`
	DateReceived       string           `json:"date_received,omitempty"`
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	ReleasedBy         string           `json:"released_by,omitempty"`
	Status             string           `json:"status"`

	parsedDate *time.Time
}

func (r *CreateDocumentRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.DocType = strings.TrimSpace(r.DocType)
	r.ImplementingOffice = strings.TrimSpace(r.ImplementingOffice)
	r.DateReceived = strings.TrimSpace(r.DateReceived)
	r.ReleasedBy = strings.TrimSpace(r.ReleasedBy)
	r.Status = strings.TrimSpace(r.Status)
}

// Validate checks sizes and parses the date. Vocabulary checks happen in the engine.
func (r *CreateDocumentRequest) Validate() error {
	if len(r.Title) > maxTextLen || len(r.ImplementingOffice) > maxTextLen || len(r.ReleasedBy) > maxTextLen {
		return dErrors.New(dErrors.CodeValidation, "text fields must be at most 512 characters")
	}
	if r.DateReceived != "" {
		d, err := parseDate(r.DateReceived)
		if err != nil {
			return err
		}
		r.parsedDate = &d
	}
	return nil
}

// ToModel builds the engine request.
func (r *CreateDocumentRequest) ToModel() models.CreateRequest {
	req := models.CreateRequest{
		Title:              r.Title,
		DocType:            r.DocType,
		ImplementingOffice: r.ImplementingOffice,
		DateReceived:       r.parsedDate,
		ReleasedBy:         r.ReleasedBy,
		Status:             r.Status,
	}
	if r.Amount != nil {
		req.Amount = decimal.NewNullDecimal(*r.Amount)
	}
	return req
}

// TransferRequest is the HTTP request body for POST /documents/{id}/transfer.
type TransferRequest struct {
	ToDepartment string `json:"to_department"`
	Status       string `json:"status"`
}

func (r *TransferRequest) Normalize() {
	r.ToDepartment = strings.TrimSpace(r.ToDepartment)
	r.Status = strings.TrimSpace(r.Status)
}

func (r *TransferRequest) Validate() error {
	if r.ToDepartment == "" {
		return dErrors.New(dErrors.CodeValidation, "to_department is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

// optionalString distinguishes an absent key from an explicit value.
type optionalString struct {
	Set   bool
	Value string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		return dErrors.New(dErrors.CodeValidation, "fields cannot be null")
	}
	return json.Unmarshal(b, &o.Value)
}

// optionalAmount accepts a number, a numeric string or null (clears the amount).
type optionalAmount struct {
	Set   bool
	Value decimal.NullDecimal
}

func (o *optionalAmount) UnmarshalJSON(b []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(b)
}

// EditDocumentRequest is the HTTP request body for PATCH /documents/{id}.
// Only supplied keys are changed.
type EditDocumentRequest struct {
	Title              optionalString `json:"title"`
	DocType            optionalString `json:"doc_type"`
	ImplementingOffice optionalString `json:"implementing_office"`
	DateReceived       optionalString `json:"date_received"`
	Amount             optionalAmount `json:"amount"`
	ReleasedBy         optionalString `json:"released_by"`
	ReceivedBy         optionalString `json:"received_by"`
	Status             optionalString `json:"status"`

	parsedDate *time.Time
}

func (r *EditDocumentRequest) Normalize() {
	for _, f := range r.strings() {
		f.Value = strings.TrimSpace(f.Value)
	}
}

func (r *EditDocumentRequest) Validate() error {
	for _, f := range r.strings() {
		if len(f.Value) > maxTextLen {
			return dErrors.New(dErrors.CodeValidation, "text fields must be at most 512 characters")
		}
	}
	if r.DateReceived.Set {
		d, err := parseDate(r.DateReceived.Value)
		if err != nil {
			return err
		}
		r.parsedDate = &d
	}
	return nil
}

func (r *EditDocumentRequest) strings() []*optionalString {
	return []*optionalString{
		&r.Title, &r.DocType, &r.ImplementingOffice, &r.DateReceived,
		&r.ReleasedBy, &r.ReceivedBy, &r.Status,
	}
}

// ToModel builds the engine request. The engine rejects an empty edit.
func (r *EditDocumentRequest) ToModel() models.EditRequest {
	pick := func(o optionalString) *string {
		if !o.Set {
			return nil
		}
		v := o.Value
		return &v
	}
	req := models.EditRequest{
		Title:              pick(r.Title),
		DocType:            pick(r.DocType),
		ImplementingOffice: pick(r.ImplementingOffice),
		DateReceived:       r.parsedDate,
		ReleasedBy:         pick(r.ReleasedBy),
		ReceivedBy:         pick(r.ReceivedBy),
		Status:             pick(r.Status),
	}
	if r.Amount.Set {
		a := r.Amount.Value
		req.Amount = &a
	}
	return req
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "date_received must be formatted as YYYY-MM-DD")
	}
	return d, nil
}
