// Package httptransport assembles the public HTTP surface from the bounded
// context handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"doctrack/internal/platform/metrics"
	"doctrack/pkg/platform/httputil"
	adminmw "doctrack/pkg/platform/middleware/admin"
	authmw "doctrack/pkg/platform/middleware/auth"
	request "doctrack/pkg/platform/middleware/request"
	"doctrack/pkg/platform/middleware/requesttime"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators the router needs.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	Validator      authmw.JWTValidator
	AdminToken     string
	// Authenticated groups require a bearer actor token.
	Authenticated []Registrar
	// Operator groups require the admin token.
	Operator []Registrar
	Health   []HealthCheck
}

// NewRouter wires middleware, health, metrics and every registered handler.
func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(metrics.LatencyMiddleware(d.Metrics))

	r.Get("/health", healthHandler(d.Health))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.ContentTypeJSON)
		r.Use(authmw.RequireAuth(d.Validator, d.Logger))
		for _, reg := range d.Authenticated {
			reg.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
		for _, reg := range d.Operator {
			reg.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
