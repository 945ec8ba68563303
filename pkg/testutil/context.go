package testutil

import (
	"net/http"

	"doctrack/pkg/requestcontext"
)

// WithActor attaches an authenticated identity, as RequireAuth would.
func WithActor(req *http.Request, id requestcontext.Identity) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), id))
}
