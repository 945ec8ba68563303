package models

import (
	"time"

	dErrors "doctrack/pkg/domain-errors"
)

// ActionType is the kind of transition an audit event records.
type ActionType string

const (
	ActionRelease  ActionType = "release"
	ActionTransfer ActionType = "transfer"
	ActionReceived ActionType = "received"
	ActionEdit     ActionType = "edit"
	ActionClose    ActionType = "close"
)

func (a ActionType) IsValid() bool {
	switch a {
	case ActionRelease, ActionTransfer, ActionReceived, ActionEdit, ActionClose:
		return true
	}
	return false
}

// SettlementState tracks the hand-off sub-state of a transfer event.
type SettlementState string

const (
	// SettlementNone applies to every event that is not a hand-off.
	SettlementNone SettlementState = ""
	// SettlementPending marks a transfer the receiving department has not acknowledged.
	SettlementPending SettlementState = "pending"
	// SettlementSettled marks a transfer that was received.
	SettlementSettled SettlementState = "settled"
)

// Settlement is the only mutable part of an audit event. A transfer starts
// pending and may settle exactly once; settling stamps who received it and when.
type Settlement struct {
	State SettlementState `json:"state,omitempty"`
	By    string          `json:"by,omitempty"`
	At    *time.Time      `json:"at,omitempty"`
}

// AuditEvent is one entry of a document's append-only routing history.
//
// Invariants:
//   - ID is assigned by the log in insertion order and breaks timestamp ties
//   - Timestamp never changes once written
//   - Only a pending transfer may change, and only into a settled "received" event
//
// FromDepartment and ToDepartment are empty when not applicable.
type AuditEvent struct {
	ID             int64      `json:"id"`
	RecordID       int64      `json:"record_id"`
	Action         ActionType `json:"action_type"`
	Status         string     `json:"status"`
	FromDepartment string     `json:"from_department,omitempty"`
	ToDepartment   string     `json:"to_department,omitempty"`
	ActionBy       string     `json:"action_by"`
	Timestamp      time.Time  `json:"timestamp"`
	Settlement     Settlement `json:"settlement"`
}

// Validate rejects malformed events before they are appended.
func (e *AuditEvent) Validate() error {
	if e.RecordID == 0 {
		return dErrors.New(dErrors.CodeValidation, "audit event requires record_id")
	}
	if !e.Action.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "audit event requires a known action_type")
	}
	return nil
}

// PrepareForAppend fills defaults the log owns: the timestamp when absent and
// the pending sub-state of a fresh transfer.
func (e *AuditEvent) PrepareForAppend(now time.Time) {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Action == ActionTransfer {
		e.Settlement = Settlement{State: SettlementPending}
	} else if e.Action != ActionReceived {
		e.Settlement = Settlement{}
	}
}

// IsPendingTransfer reports whether the event is a transfer still awaiting receipt.
func (e *AuditEvent) IsPendingTransfer() bool {
	return e.Action == ActionTransfer && e.Settlement.State == SettlementPending
}

// Settle flips a pending transfer to received. It is the single permitted
// in-place change of an audit event.
func (e *AuditEvent) Settle(by string, at time.Time) error {
	if !e.IsPendingTransfer() {
		return dErrors.New(dErrors.CodeNotPendingTransfer, "event is not a pending transfer")
	}
	e.Action = ActionReceived
	e.Settlement = Settlement{State: SettlementSettled, By: by, At: &at}
	return nil
}

// Touches reports whether department appears on either side of the event.
func (e *AuditEvent) Touches(department string) bool {
	return department != "" && (e.FromDepartment == department || e.ToDepartment == department)
}

// Mark is one instant on a document's timeline: an event taking effect, or a
// transfer settling at its settled_at.
type Mark struct {
	At         time.Time
	EventID    int64
	Settlement bool
}

// Before orders marks by time, then event id, with an event's own mark ahead
// of its settlement. Replay and dwell analytics both sort with it.
func (m Mark) Before(o Mark) bool {
	if !m.At.Equal(o.At) {
		return m.At.Before(o.At)
	}
	if m.EventID != o.EventID {
		return m.EventID < o.EventID
	}
	return !m.Settlement && o.Settlement
}

// Marks returns the event's own mark and, once settled, its settlement mark.
func (e *AuditEvent) Marks() []Mark {
	marks := []Mark{{At: e.Timestamp, EventID: e.ID}}
	if e.Settlement.State == SettlementSettled && e.Settlement.At != nil {
		marks = append(marks, Mark{At: *e.Settlement.At, EventID: e.ID, Settlement: true})
	}
	return marks
}

// Before orders events by timestamp, breaking ties by insertion order.
func (e *AuditEvent) Before(other *AuditEvent) bool {
	if e.Timestamp.Equal(other.Timestamp) {
		return e.ID < other.ID
	}
	return e.Timestamp.Before(other.Timestamp)
}
