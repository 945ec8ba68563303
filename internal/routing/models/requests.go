package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "doctrack/pkg/domain-errors"
)

// CreateRequest carries the fields of a new document released into routing.
type CreateRequest struct {
	Title              string
	DocType            string
	ImplementingOffice string
	DateReceived       *time.Time
	Amount             decimal.NullDecimal
	ReleasedBy         string
	Status             string
}

// Normalize trims free-text input.
func (r *CreateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.DocType = strings.TrimSpace(r.DocType)
	r.ImplementingOffice = strings.TrimSpace(r.ImplementingOffice)
	r.ReleasedBy = strings.TrimSpace(r.ReleasedBy)
	r.Status = strings.TrimSpace(r.Status)
}

// Validate checks presence and shape; vocabulary lookups happen in the engine.
func (r *CreateRequest) Validate() error {
	switch {
	case r.Title == "":
		return dErrors.New(dErrors.CodeValidation, "title is required")
	case r.DocType == "":
		return dErrors.New(dErrors.CodeValidation, "doc_type is required")
	case r.ImplementingOffice == "":
		return dErrors.New(dErrors.CodeValidation, "implementing_office is required")
	case r.Status == "":
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return validateAmount(r.Amount)
}

// EditRequest carries the subset of mutable fields a caller supplied. Nil
// pointers are left untouched.
type EditRequest struct {
	Title              *string
	DocType            *string
	ImplementingOffice *string
	DateReceived       *time.Time
	Amount             *decimal.NullDecimal
	ReleasedBy         *string
	ReceivedBy         *string
	Status             *string
}

func (r *EditRequest) Normalize() {
	for _, p := range []*string{r.Title, r.DocType, r.ImplementingOffice, r.ReleasedBy, r.ReceivedBy, r.Status} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func (r *EditRequest) Validate() error {
	if r.Fields() == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be supplied")
	}
	if r.Title != nil && *r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title cannot be blank")
	}
	if r.ImplementingOffice != nil && *r.ImplementingOffice == "" {
		return dErrors.New(dErrors.CodeValidation, "implementing_office cannot be blank")
	}
	if r.Amount != nil {
		return validateAmount(*r.Amount)
	}
	return nil
}

// Fields returns the projection fields the request touches.
func (r *EditRequest) Fields() FieldSet {
	var set FieldSet
	add := func(present bool, f Field) {
		if present {
			set |= FieldSet(f)
		}
	}
	add(r.Title != nil, FieldTitle)
	add(r.DocType != nil, FieldDocType)
	add(r.ImplementingOffice != nil, FieldImplementingOffice)
	add(r.DateReceived != nil, FieldDateReceived)
	add(r.Amount != nil, FieldAmount)
	add(r.ReleasedBy != nil, FieldReleasedBy)
	add(r.ReceivedBy != nil, FieldReceivedBy)
	add(r.Status != nil, FieldStatus)
	return set
}

// ApplyTo copies the supplied fields onto doc. Values must already be
// canonicalized against the vocabulary.
func (r *EditRequest) ApplyTo(doc *Document) {
	if r.Title != nil {
		doc.Title = *r.Title
	}
	if r.DocType != nil {
		doc.DocType = *r.DocType
	}
	if r.ImplementingOffice != nil {
		doc.ImplementingOffice = *r.ImplementingOffice
	}
	if r.DateReceived != nil {
		d := *r.DateReceived
		doc.DateReceived = &d
	}
	if r.Amount != nil {
		doc.Amount = *r.Amount
	}
	if r.ReleasedBy != nil {
		doc.ReleasedBy = *r.ReleasedBy
	}
	if r.ReceivedBy != nil {
		doc.ReceivedBy = *r.ReceivedBy
	}
	if r.Status != nil {
		doc.Status = *r.Status
	}
}

func validateAmount(a decimal.NullDecimal) error {
	if a.Valid && a.Decimal.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "amount cannot be negative")
	}
	return nil
}
