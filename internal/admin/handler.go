// Package admin serves operator endpoints guarded by the admin token.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doctrack/internal/routing/projection"
	dErrors "doctrack/pkg/domain-errors"
	"doctrack/pkg/platform/httputil"
	"doctrack/pkg/requestcontext"
)

// OutboxCounter reports how many entries await publishing.
type OutboxCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type Handler struct {
	documents projection.DocumentSource
	events    projection.EventSource
	outbox    OutboxCounter
	logger    *slog.Logger
}

// New builds the operator handler. outbox may be nil when no store is wired.
func New(documents projection.DocumentSource, events projection.EventSource, outbox OutboxCounter, logger *slog.Logger) *Handler {
	return &Handler{documents: documents, events: events, outbox: outbox, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/projection/drift", h.HandleDrift)
	r.Get("/admin/outbox", h.HandleOutbox)
}

// HandleDrift replays every document's log and lists mismatches.
func (h *Handler) HandleDrift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	drifts, err := projection.Verify(ctx, h.documents, h.events)
	if err != nil {
		h.logger.ErrorContext(ctx, "projection verify failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "projection verify failed"))
		return
	}
	if len(drifts) > 0 {
		h.logger.WarnContext(ctx, "projection drift detected", "documents", len(drifts))
	}
	httputil.WriteJSON(w, http.StatusOK, DriftResponse{
		Drifts:    drifts,
		Total:     len(drifts),
		CheckedAt: requestcontext.Now(ctx),
	})
}

// HandleOutbox reports the number of unpublished routing events.
func (h *Handler) HandleOutbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.outbox == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "outbox is not configured"))
		return
	}
	n, err := h.outbox.CountPending(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeStorage, "count outbox entries"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OutboxResponse{Pending: n, CheckedAt: requestcontext.Now(ctx)})
}
