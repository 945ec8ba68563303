package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dErrors "doctrack/pkg/domain-errors"
)

const publicIDPrefix = "DOC-"

var publicIDPattern = regexp.MustCompile(`^DOC-[0-9A-F]{8}$`)

// Document is the current custody/status projection of a routed document.
//
// Invariants:
//   - PublicID is unique and immutable for the document's lifetime
//   - CurrentDepartment changes only on release and on receipt of a transfer
//   - UpdatedAt never moves backwards; Version increments on every accepted transition
//   - Closed is terminal
type Document struct {
	ID                 int64               `json:"id"`
	PublicID           string              `json:"document_id"`
	Title              string              `json:"title"`
	DocType            string              `json:"doc_type"`
	CurrentDepartment  string              `json:"current_department"`
	ImplementingOffice string              `json:"implementing_office"`
	DateReceived       *time.Time          `json:"date_received,omitempty"`
	Amount             decimal.NullDecimal `json:"amount"`
	ReleasedBy         string              `json:"released_by"`
	ReceivedBy         string              `json:"received_by"`
	Status             string              `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Version            int64               `json:"version"`
}

// NewPublicID returns a fresh DOC-XXXXXXXX identifier.
func NewPublicID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return publicIDPrefix + strings.ToUpper(hex[:8])
}

// IsPublicID reports whether s is a well-formed public identifier.
func IsPublicID(s string) bool {
	return publicIDPattern.MatchString(s)
}

func (d *Document) IsClosed() bool {
	return IsTerminal(d.Status)
}

// CanTransition rejects any transition out of the terminal state.
func (d *Document) CanTransition() error {
	if d.IsClosed() {
		return dErrors.New(dErrors.CodeInvalidTransition, fmt.Sprintf("document %s is closed", d.PublicID))
	}
	return nil
}

// CanTransferTo checks the transfer preconditions that depend only on the document.
func (d *Document) CanTransferTo(department string) error {
	if err := d.CanTransition(); err != nil {
		return err
	}
	if d.CurrentDepartment == department {
		return dErrors.New(dErrors.CodeInvalidTransition, "document is already in the custody of "+department)
	}
	return nil
}

// ClockStep is the smallest gap Touch keeps between successive writes. It is
// the finest resolution Postgres timestamps hold.
const ClockStep = time.Microsecond

// Touch advances UpdatedAt strictly and returns the instant actually
// recorded. A request clock at or behind the last write lands one ClockStep
// after it, so each transition of a document has its own instant.
func (d *Document) Touch(now time.Time) time.Time {
	if !now.After(d.UpdatedAt) {
		now = d.UpdatedAt.Add(ClockStep)
	}
	d.UpdatedAt = now
	return now
}

// ApplyTransfer records the requested status. Custody stays put until receipt.
func (d *Document) ApplyTransfer(status string, now time.Time) time.Time {
	d.Status = status
	return d.Touch(now)
}

// ApplyReceipt moves custody to the receiving department.
func (d *Document) ApplyReceipt(department, receivedBy, status string, now time.Time) time.Time {
	d.CurrentDepartment = department
	d.ReceivedBy = receivedBy
	d.Status = status
	return d.Touch(now)
}

// ApplyClose moves the document to the terminal status.
func (d *Document) ApplyClose(now time.Time) time.Time {
	d.Status = StatusClosed
	return d.Touch(now)
}

// Field names one mutable column of the projection.
type Field uint16

const (
	FieldTitle Field = 1 << iota
	FieldDocType
	FieldImplementingOffice
	FieldDateReceived
	FieldAmount
	FieldReleasedBy
	FieldReceivedBy
	FieldStatus
	FieldCurrentDepartment
)

// FieldSet is a set of projection fields. UpdatedAt and Version are always
// written alongside any set.
type FieldSet uint16

func Fields(fs ...Field) FieldSet {
	var set FieldSet
	for _, f := range fs {
		set |= FieldSet(f)
	}
	return set
}

func (s FieldSet) Has(f Field) bool { return s&FieldSet(f) != 0 }

// Within reports whether every field in s is also in allowed.
func (s FieldSet) Within(allowed FieldSet) bool { return s&^allowed == 0 }

// EditableFields are the fields an edit may change. Custody is not among them.
var EditableFields = Fields(
	FieldTitle, FieldDocType, FieldImplementingOffice, FieldDateReceived,
	FieldAmount, FieldReleasedBy, FieldReceivedBy, FieldStatus,
)

// PermittedFields is the projection write surface of each transition kind.
func PermittedFields(action ActionType) FieldSet {
	switch action {
	case ActionTransfer:
		return Fields(FieldStatus)
	case ActionReceived:
		return Fields(FieldCurrentDepartment, FieldReceivedBy, FieldStatus)
	case ActionEdit:
		return EditableFields
	case ActionClose:
		return Fields(FieldStatus)
	}
	return 0
}
