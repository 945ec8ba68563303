// Package handler exposes the routing engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"doctrack/internal/routing/models"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/platform/httputil"
	"doctrack/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the routing operations the handler needs.
type Service interface {
	CreateAndRelease(ctx context.Context, actor models.Actor, req models.CreateRequest) (*models.Document, error)
	Transfer(ctx context.Context, actor models.Actor, recordID int64, toDepartment, newStatus string) (*models.Document, error)
	Receive(ctx context.Context, actor models.Actor, transferEventID int64) (*models.Document, error)
	Edit(ctx context.Context, actor models.Actor, recordID int64, req models.EditRequest) (*models.Document, error)
	Close(ctx context.Context, actor models.Actor, recordID int64) (*models.Document, error)
	Delete(ctx context.Context, actor models.Actor, recordID int64) error
	ListVisible(ctx context.Context, department string) ([]*models.Document, error)
	Trace(ctx context.Context, department, query string) ([]*models.Document, error)
	Get(ctx context.Context, department string, recordID int64) (*models.Document, error)
	History(ctx context.Context, department string, recordID int64) (*models.Document, []models.AuditEvent, error)
	Summary(ctx context.Context, department string) (models.Summary, error)
	PendingTransfers(ctx context.Context, department string) ([]models.AuditEvent, error)
	ResolveRecordID(ctx context.Context, ref string) (int64, error)
}

// Handler wires routing endpoints to the engine.
type Handler struct {
	service Service
	logger  *slog.Logger
	// adminOnly guards DELETE. It runs after authentication.
	adminOnly func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithAdminGuard installs middleware in front of administrative routes.
func WithAdminGuard(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.adminOnly = mw }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts routing endpoints on the router. Authentication is applied
// by the caller's route group.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/trace", h.HandleTrace)
		r.Get("/summary", h.HandleSummary)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleEdit)
			r.Get("/history", h.HandleHistory)
			r.Post("/transfer", h.HandleTransfer)
			r.Post("/close", h.HandleClose)
			r.Group(func(r chi.Router) {
				if h.adminOnly != nil {
					r.Use(h.adminOnly)
				}
				r.Delete("/", h.HandleDelete)
			})
		})
	})
	r.Get("/transfers/pending", h.HandlePending)
	r.Post("/transfers/{eventID}/receive", h.HandleReceive)
}

// actor reads the authenticated caller. It writes 401 and returns false when
// the auth middleware did not run.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	id := requestcontext.Actor(r.Context())
	if id.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return models.Actor{}, false
	}
	return models.Actor{Name: id.Name, Department: id.Department, Role: id.Role}, true
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := h.service.ResolveRecordID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "resolve document id", err)
		return 0, false
	}
	return id, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	attrs := []any{
		"op", op,
		"code", string(code),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeStorage, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "routing request failed", attrs...)
	default:
		h.logger.InfoContext(ctx, "routing request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

// HandleCreate handles POST /documents.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.service.CreateAndRelease(ctx, actor, req.ToModel())
	if err != nil {
		h.fail(w, r, "create", err)
		return
	}
	w.Header().Set("Location", "/documents/"+doc.PublicID)
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

// HandleList handles GET /documents.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	docs, err := h.service.ListVisible(r.Context(), actor.Department)
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Total: len(docs), Documents: FromDocuments(docs)})
}

// HandleTrace handles GET /documents/trace?q=.
func (h *Handler) HandleTrace(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	docs, err := h.service.Trace(r.Context(), actor.Department, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, "trace", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Total: len(docs), Documents: FromDocuments(docs)})
}

// HandleSummary handles GET /documents/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), actor.Department)
	if err != nil {
		h.fail(w, r, "summary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleGet handles GET /documents/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), actor.Department, id)
	if err != nil {
		h.fail(w, r, "get", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleHistory handles GET /documents/{id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	doc, events, err := h.service.History(r.Context(), actor.Department, id)
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{DocumentID: doc.PublicID, Events: FromEvents(events)})
}

// HandleTransfer handles POST /documents/{id}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.service.Transfer(ctx, actor, id, req.ToDepartment, req.Status)
	if err != nil {
		h.fail(w, r, "transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleReceive handles POST /transfers/{eventID}/receive.
func (h *Handler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	eventID, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil || eventID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid transfer event id"))
		return
	}
	doc, err := h.service.Receive(r.Context(), actor, eventID)
	if err != nil {
		h.fail(w, r, "receive", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandlePending handles GET /transfers/pending.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	events, err := h.service.PendingTransfers(r.Context(), actor.Department)
	if err != nil {
		h.fail(w, r, "pending", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PendingResponse{Department: actor.Department, Transfers: FromEvents(events)})
}

// HandleEdit handles PATCH /documents/{id}.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EditDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	doc, err := h.service.Edit(ctx, actor, id, req.ToModel())
	if err != nil {
		h.fail(w, r, "edit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleClose handles POST /documents/{id}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Close(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "close", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleDelete handles DELETE /documents/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
