package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "doctrack/pkg/domain-errors"
)

func TestNewPublicID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewPublicID()
		require.True(t, IsPublicID(id), "malformed public id %q", id)
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 95)
	assert.False(t, IsPublicID("DOC-1234"))
	assert.False(t, IsPublicID("doc-abcdef12"))
}

func TestVocabulary(t *testing.T) {
	v := NewVocabulary([]string{" Pending ", "pending", "Request for PR", ""}, []string{"Voucher"})

	t.Run("resolves case-insensitively", func(t *testing.T) {
		s, ok := v.Status("request FOR pr")
		require.True(t, ok)
		assert.Equal(t, "Request for PR", s)
	})

	t.Run("terminal status always present", func(t *testing.T) {
		s, ok := v.Status("closed")
		require.True(t, ok)
		assert.Equal(t, StatusClosed, s)
	})

	t.Run("open status rejects unknown and terminal", func(t *testing.T) {
		_, err := v.OpenStatus("Archived")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = v.OpenStatus("Closed")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("doc types are looked up by name", func(t *testing.T) {
		d, ok := v.DocType("voucher")
		require.True(t, ok)
		assert.Equal(t, "Voucher", d)

		_, ok = v.DocType("Payroll")
		assert.False(t, ok)
	})

	t.Run("empty doc type vocabulary accepts any name", func(t *testing.T) {
		open := NewVocabulary(nil, nil)
		d, ok := open.DocType(" Letter ")
		require.True(t, ok)
		assert.Equal(t, "Letter", d)
	})
}

func TestAuditEventSettlement(t *testing.T) {
	now := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	t.Run("transfer starts pending and settles once", func(t *testing.T) {
		ev := &AuditEvent{RecordID: 1, Action: ActionTransfer, ToDepartment: "Accounting"}
		ev.PrepareForAppend(now)
		require.True(t, ev.IsPendingTransfer())
		assert.Equal(t, now, ev.Timestamp)

		later := now.Add(time.Hour)
		require.NoError(t, ev.Settle("M. Cruz", later))
		assert.Equal(t, ActionReceived, ev.Action)
		assert.Equal(t, SettlementSettled, ev.Settlement.State)
		assert.Equal(t, later, *ev.Settlement.At)
		assert.Equal(t, now, ev.Timestamp, "settling never moves the event in history")

		err := ev.Settle("someone else", later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotPendingTransfer))
	})

	t.Run("non-transfer events cannot settle", func(t *testing.T) {
		ev := &AuditEvent{RecordID: 1, Action: ActionEdit}
		ev.PrepareForAppend(now)
		assert.True(t, dErrors.HasCode(ev.Settle("x", now), dErrors.CodeNotPendingTransfer))
	})

	t.Run("malformed events are rejected", func(t *testing.T) {
		assert.True(t, dErrors.HasCode((&AuditEvent{Action: ActionEdit}).Validate(), dErrors.CodeValidation))
		assert.True(t, dErrors.HasCode((&AuditEvent{RecordID: 3}).Validate(), dErrors.CodeValidation))
	})
}

func TestDocumentTransitions(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	doc := &Document{PublicID: "DOC-0000000A", CurrentDepartment: "BAC", Status: "Pending", UpdatedAt: t0}

	t.Run("touch never moves backwards", func(t *testing.T) {
		got := doc.Touch(t0.Add(-time.Minute))
		assert.Equal(t, t0.Add(ClockStep), got)
		assert.Equal(t, t0.Add(ClockStep), doc.UpdatedAt)
	})

	t.Run("touch at the last write instant still advances", func(t *testing.T) {
		last := doc.UpdatedAt
		got := doc.Touch(last)
		assert.True(t, got.After(last))
		assert.Equal(t, last.Add(ClockStep), got)
	})

	t.Run("transfer to current custodian is rejected", func(t *testing.T) {
		err := doc.CanTransferTo("BAC")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("transfer keeps custody", func(t *testing.T) {
		doc.ApplyTransfer("Request for PO", t0.Add(time.Hour))
		assert.Equal(t, "BAC", doc.CurrentDepartment)
		assert.Equal(t, "Request for PO", doc.Status)
	})

	t.Run("closed is terminal", func(t *testing.T) {
		doc.ApplyClose(t0.Add(2 * time.Hour))
		assert.True(t, dErrors.HasCode(doc.CanTransition(), dErrors.CodeInvalidTransition))
		assert.True(t, dErrors.HasCode(doc.CanTransferTo("Accounting"), dErrors.CodeInvalidTransition))
	})
}

func TestEditRequest(t *testing.T) {
	title := "  Revised title "
	amount := decimal.NewNullDecimal(decimal.RequireFromString("-1"))

	req := &EditRequest{Title: &title}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, Fields(FieldTitle), req.Fields())
	assert.True(t, req.Fields().Within(PermittedFields(ActionEdit)))

	bad := &EditRequest{Amount: &amount}
	assert.True(t, dErrors.HasCode(bad.Validate(), dErrors.CodeValidation))

	empty := &EditRequest{}
	assert.True(t, dErrors.HasCode(empty.Validate(), dErrors.CodeValidation))

	assert.False(t, Fields(FieldCurrentDepartment).Within(EditableFields))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var docs []*Document
	for i := 1; i <= 7; i++ {
		status := "Pending"
		if i%2 == 0 {
			status = StatusClosed
		}
		docs = append(docs, &Document{ID: int64(i), Status: status, CurrentDepartment: "BAC", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	s := Summarize(docs, SummaryLatestLimit)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 4, s.ByStatus["Pending"])
	assert.Equal(t, 3, s.ByStatus[StatusClosed])
	assert.Equal(t, 7, s.ByDepartment["BAC"])
	require.Len(t, s.Latest, SummaryLatestLimit)
	assert.Equal(t, int64(7), s.Latest[0].ID)
	assert.Equal(t, int64(1), docs[0].ID, "input order is untouched")
}

func TestMarkOrdering(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	settled := t0.Add(time.Hour)
	transfer := AuditEvent{ID: 2, Action: ActionReceived, Timestamp: t0,
		Settlement: Settlement{State: SettlementSettled, At: &settled}}
	edit := AuditEvent{ID: 3, Action: ActionEdit, Timestamp: settled}

	marks := transfer.Marks()
	require.Len(t, marks, 2)
	assert.True(t, marks[0].Before(marks[1]), "own mark precedes settlement")
	assert.False(t, marks[1].Before(marks[0]))

	editMark := edit.Marks()[0]
	assert.True(t, marks[1].Before(editMark), "equal instants fall back to event id")
	assert.False(t, editMark.Before(marks[1]))

	pending := AuditEvent{ID: 4, Action: ActionTransfer, Timestamp: t0,
		Settlement: Settlement{State: SettlementPending}}
	assert.Len(t, pending.Marks(), 1)
}
