package models

import (
	"strings"

	dErrors "doctrack/pkg/domain-errors"
	pstrings "doctrack/pkg/platform/strings"
)

// StatusClosed is the single terminal status. No transition leaves it.
const StatusClosed = "Closed"

// DefaultStatuses is the status vocabulary used when none is configured.
var DefaultStatuses = []string{
	"Request for PR",
	"Request for PO",
	"For Canvass",
	"For Approval",
	"For Payment",
	"Pending",
	"Completed",
	StatusClosed,
}

// DefaultDocumentTypes is the document type vocabulary used when none is configured.
var DefaultDocumentTypes = []string{
	"Purchase Request",
	"Purchase Order",
	"Voucher",
	"Payroll",
	"Letter",
	"Memorandum",
}

// Vocabulary is the configured, finite set of status and document type names.
// Lookups are case-insensitive and return the canonical spelling.
type Vocabulary struct {
	statuses map[string]string
	docTypes map[string]string
}

// NewVocabulary builds a vocabulary from configured names. Blank and duplicate
// entries are dropped; the terminal status is always present.
func NewVocabulary(statuses, docTypes []string) *Vocabulary {
	v := &Vocabulary{
		statuses: make(map[string]string),
		docTypes: make(map[string]string),
	}
	for _, s := range pstrings.DedupeAndTrim(append(append([]string{}, statuses...), StatusClosed)) {
		v.statuses[strings.ToLower(s)] = s
	}
	for _, d := range pstrings.DedupeAndTrim(docTypes) {
		v.docTypes[strings.ToLower(d)] = d
	}
	return v
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(DefaultStatuses, DefaultDocumentTypes)
}

// Status resolves a status name to its canonical form.
func (v *Vocabulary) Status(name string) (string, bool) {
	s, ok := v.statuses[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// DocType resolves a document type name to its canonical form. An empty
// vocabulary accepts any non-blank type.
func (v *Vocabulary) DocType(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if len(v.docTypes) == 0 {
		return name, true
	}
	d, ok := v.docTypes[strings.ToLower(name)]
	return d, ok
}

// IsTerminal reports whether status is the terminal status.
func IsTerminal(status string) bool {
	return strings.EqualFold(status, StatusClosed)
}

// OpenStatus resolves name to a known, non-terminal status.
func (v *Vocabulary) OpenStatus(name string) (string, error) {
	s, ok := v.Status(name)
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+strings.TrimSpace(name))
	}
	if IsTerminal(s) {
		return "", dErrors.New(dErrors.CodeInvalidTransition, "documents are closed through the close operation")
	}
	return s, nil
}
