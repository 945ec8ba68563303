package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doctrack/pkg/platform/httputil"
	"doctrack/pkg/requestcontext"
)

type Reporter interface {
	Report(ctx context.Context) (*Report, error)
}

// Handler exposes the bottleneck report over HTTP.
type Handler struct {
	reporter Reporter
	logger   *slog.Logger
}

func NewHandler(reporter Reporter, logger *slog.Logger) *Handler {
	return &Handler{reporter: reporter, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/analytics/bottlenecks", h.HandleBottlenecks)
}

// HandleBottlenecks returns the latest report.
func (h *Handler) HandleBottlenecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.reporter.Report(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build bottleneck report",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
