package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/platform/sentinel"
	"doctrack/pkg/requestcontext"
)

const (
	opCreate   = "create"
	opTransfer = "transfer"
	opReceive  = "receive"
	opEdit     = "edit"
	opClose    = "close"
	opDelete   = "delete"
)

// CreateAndRelease registers a new document and releases it to its
// implementing office, which becomes the first custodian.
func (s *Service) CreateAndRelease(ctx context.Context, actor models.Actor, req models.CreateRequest) (*models.Document, error) {
	var created *models.Document
	err := s.run(ctx, opCreate, actor, 0, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return err
		}
		status, err := s.vocabulary.OpenStatus(req.Status)
		if err != nil {
			return err
		}
		docType, ok := s.vocabulary.DocType(req.DocType)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "unknown doc_type: "+req.DocType)
		}
		req.Status, req.DocType = status, docType
		if req.ReleasedBy == "" {
			req.ReleasedBy = actor.Name
		}

		for attempt := 1; ; attempt++ {
			doc, err := s.createOnce(ctx, actor, req)
			if err == nil {
				created = doc
				return nil
			}
			if !errors.Is(err, sentinel.ErrConflict) {
				return wrapStoreErr(err, "document not found")
			}
			if attempt >= s.maxIDAttempts {
				return dErrors.Wrap(err, dErrors.CodeStorage, "could not allocate a unique document id")
			}
			s.incrementPublicIDRetry()
		}
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document released",
		"record_id", created.ID,
		"document_id", created.PublicID,
		"department", created.CurrentDepartment,
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// createOnce runs one creation attempt. A public id collision surfaces as
// sentinel.ErrConflict so the caller can retry with a fresh id.
func (s *Service) createOnce(ctx context.Context, actor models.Actor, req models.CreateRequest) (*models.Document, error) {
	var doc *models.Document
	err := s.tx.RunInTx(ctx, 0, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		d := &models.Document{
			PublicID:           s.newPublicID(),
			Title:              req.Title,
			DocType:            req.DocType,
			CurrentDepartment:  req.ImplementingOffice,
			ImplementingOffice: req.ImplementingOffice,
			DateReceived:       req.DateReceived,
			Amount:             req.Amount,
			ReleasedBy:         req.ReleasedBy,
			Status:             req.Status,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.documents.Create(txCtx, d); err != nil {
			return err
		}
		ev := &models.AuditEvent{
			RecordID:       d.ID,
			Action:         models.ActionRelease,
			Status:         d.Status,
			FromDepartment: actor.Department,
			ToDepartment:   d.ImplementingOffice,
			ActionBy:       actor.Name,
			Timestamp:      now,
		}
		if err := s.events.Append(txCtx, ev); err != nil {
			return err
		}
		if err := s.enqueueEvent(txCtx, d, ev); err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

// Transfer records the intent to hand a document to another department and
// updates its visible status. Custody does not move until Receive.
func (s *Service) Transfer(ctx context.Context, actor models.Actor, recordID int64, toDepartment, newStatus string) (*models.Document, error) {
	var result *models.Document
	err := s.run(ctx, opTransfer, actor, recordID, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		toDepartment = strings.TrimSpace(toDepartment)
		if toDepartment == "" {
			return dErrors.New(dErrors.CodeValidation, "to_department is required")
		}
		status, err := s.vocabulary.OpenStatus(newStatus)
		if err != nil {
			return err
		}

		return s.tx.RunInTx(ctx, recordID, func(txCtx context.Context) error {
			doc, err := s.documents.FindByIDForUpdate(txCtx, recordID)
			if err != nil {
				return documentNotFound(err)
			}
			if err := doc.CanTransferTo(toDepartment); err != nil {
				return err
			}
			pending, err := s.events.HasPendingTransfer(txCtx, recordID, toDepartment)
			if err != nil {
				return wrapStoreErr(err, "document not found")
			}
			if pending {
				return pendingTransferExists(toDepartment)
			}

			from := doc.CurrentDepartment
			at := doc.ApplyTransfer(status, requestcontext.Now(txCtx))
			if err := s.documents.Update(txCtx, doc, models.PermittedFields(models.ActionTransfer)); err != nil {
				return documentNotFound(err)
			}
			ev := &models.AuditEvent{
				RecordID:       doc.ID,
				Action:         models.ActionTransfer,
				Status:         status,
				FromDepartment: from,
				ToDepartment:   toDepartment,
				ActionBy:       actor.Name,
				Timestamp:      at,
			}
			if err := s.events.Append(txCtx, ev); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return pendingTransferExists(toDepartment)
				}
				return wrapStoreErr(err, "document not found")
			}
			if err := s.enqueueEvent(txCtx, doc, ev); err != nil {
				return wrapStoreErr(err, "")
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func pendingTransferExists(department string) error {
	return dErrors.New(dErrors.CodeInvalidTransition, fmt.Sprintf("a transfer to %s is already pending", department))
}

// Receive acknowledges a pending transfer on behalf of the receiving
// department and moves custody to it.
func (s *Service) Receive(ctx context.Context, actor models.Actor, transferEventID int64) (*models.Document, error) {
	var result *models.Document
	err := s.run(ctx, opReceive, actor, 0, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		target, err := s.events.FindByID(ctx, transferEventID)
		if err != nil {
			return wrapStoreErr(err, "transfer event not found")
		}

		return s.tx.RunInTx(ctx, target.RecordID, func(txCtx context.Context) error {
			doc, err := s.documents.FindByIDForUpdate(txCtx, target.RecordID)
			if err != nil {
				return documentNotFound(err)
			}
			ev, err := s.events.FindByIDForUpdate(txCtx, transferEventID)
			if err != nil {
				return wrapStoreErr(err, "transfer event not found")
			}
			if err := doc.CanTransition(); err != nil {
				return err
			}
			if !ev.IsPendingTransfer() || ev.ToDepartment != actor.Department {
				return notPendingFor(actor.Department)
			}

			at := doc.ApplyReceipt(actor.Department, actor.Name, ev.Status, requestcontext.Now(txCtx))
			if err := s.events.MarkReceived(txCtx, ev.ID, actor.Name, at); err != nil {
				if errors.Is(err, sentinel.ErrInvalidState) {
					return notPendingFor(actor.Department)
				}
				return wrapStoreErr(err, "transfer event not found")
			}
			if err := ev.Settle(actor.Name, at); err != nil {
				return err
			}
			if err := s.documents.Update(txCtx, doc, models.PermittedFields(models.ActionReceived)); err != nil {
				return documentNotFound(err)
			}
			if err := s.enqueueEvent(txCtx, doc, ev); err != nil {
				return wrapStoreErr(err, "")
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func notPendingFor(department string) error {
	return dErrors.New(dErrors.CodeNotPendingTransfer, "no pending transfer to "+department+" with that id")
}

// Edit changes the supplied mutable fields. Only the custodian department or
// an admin may edit, and custody is never among the editable fields.
func (s *Service) Edit(ctx context.Context, actor models.Actor, recordID int64, req models.EditRequest) (*models.Document, error) {
	var result *models.Document
	err := s.run(ctx, opEdit, actor, recordID, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return err
		}
		if err := s.canonicalizeEdit(&req); err != nil {
			return err
		}
		fields := req.Fields()
		if !fields.Within(models.PermittedFields(models.ActionEdit)) {
			return dErrors.New(dErrors.CodeValidation, "edit touches fields it may not change")
		}

		return s.tx.RunInTx(ctx, recordID, func(txCtx context.Context) error {
			doc, err := s.documents.FindByIDForUpdate(txCtx, recordID)
			if err != nil {
				return documentNotFound(err)
			}
			if err := doc.CanTransition(); err != nil {
				return err
			}
			if !actor.IsAdmin() && actor.Department != doc.CurrentDepartment {
				return dErrors.New(dErrors.CodeForbidden, "only the custodian department may edit this document")
			}

			req.ApplyTo(doc)
			at := doc.Touch(requestcontext.Now(txCtx))
			if err := s.documents.Update(txCtx, doc, fields); err != nil {
				return documentNotFound(err)
			}
			ev := &models.AuditEvent{
				RecordID:       doc.ID,
				Action:         models.ActionEdit,
				Status:         doc.Status,
				FromDepartment: actor.Department,
				ToDepartment:   doc.CurrentDepartment,
				ActionBy:       actor.Name,
				Timestamp:      at,
			}
			if err := s.events.Append(txCtx, ev); err != nil {
				return wrapStoreErr(err, "document not found")
			}
			if err := s.enqueueEvent(txCtx, doc, ev); err != nil {
				return wrapStoreErr(err, "")
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) canonicalizeEdit(req *models.EditRequest) error {
	if req.Status != nil {
		status, err := s.vocabulary.OpenStatus(*req.Status)
		if err != nil {
			return err
		}
		req.Status = &status
	}
	if req.DocType != nil {
		docType, ok := s.vocabulary.DocType(*req.DocType)
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "unknown doc_type: "+*req.DocType)
		}
		req.DocType = &docType
	}
	return nil
}

// Close moves a document to the terminal status.
func (s *Service) Close(ctx context.Context, actor models.Actor, recordID int64) (*models.Document, error) {
	var result *models.Document
	err := s.run(ctx, opClose, actor, recordID, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		return s.tx.RunInTx(ctx, recordID, func(txCtx context.Context) error {
			doc, err := s.documents.FindByIDForUpdate(txCtx, recordID)
			if err != nil {
				return documentNotFound(err)
			}
			if doc.IsClosed() {
				return dErrors.New(dErrors.CodeInvalidTransition, "document "+doc.PublicID+" is already closed")
			}
			at := doc.ApplyClose(requestcontext.Now(txCtx))
			if err := s.documents.Update(txCtx, doc, models.PermittedFields(models.ActionClose)); err != nil {
				return documentNotFound(err)
			}
			ev := &models.AuditEvent{
				RecordID:       doc.ID,
				Action:         models.ActionClose,
				Status:         models.StatusClosed,
				FromDepartment: actor.Department,
				ActionBy:       actor.Name,
				Timestamp:      at,
			}
			if err := s.events.Append(txCtx, ev); err != nil {
				return wrapStoreErr(err, "document not found")
			}
			if err := s.enqueueEvent(txCtx, doc, ev); err != nil {
				return wrapStoreErr(err, "")
			}
			result = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a document and its history. It is an administrative
// correction, not a routing transition, so no audit event is written.
func (s *Service) Delete(ctx context.Context, actor models.Actor, recordID int64) error {
	return s.run(ctx, opDelete, actor, recordID, func(ctx context.Context) error {
		if err := actor.Validate(); err != nil {
			return err
		}
		if !actor.IsAdmin() {
			return dErrors.New(dErrors.CodeForbidden, "only administrators may delete documents")
		}
		return s.tx.RunInTx(ctx, recordID, func(txCtx context.Context) error {
			doc, err := s.documents.FindByIDForUpdate(txCtx, recordID)
			if err != nil {
				return documentNotFound(err)
			}
			if err := s.events.DeleteByRecord(txCtx, recordID); err != nil {
				return wrapStoreErr(err, "document not found")
			}
			if err := s.documents.Delete(txCtx, recordID); err != nil {
				return documentNotFound(err)
			}
			if err := s.enqueueDeletion(txCtx, doc, actor, requestcontext.Now(txCtx)); err != nil {
				return wrapStoreErr(err, "")
			}
			s.logger.InfoContext(txCtx, "document deleted",
				"record_id", recordID,
				"document_id", doc.PublicID,
				"actor", actor.Name,
				"request_id", requestcontext.RequestID(txCtx),
			)
			return nil
		})
	})
}
