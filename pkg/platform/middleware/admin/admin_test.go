package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(expected, sent string) int {
		r := httptest.NewRequest(http.MethodGet, "/admin/projection/drift", nil)
		if sent != "" {
			r.Header.Set(HeaderAdminToken, sent)
		}
		w := httptest.NewRecorder()
		RequireAdminToken(expected, logger)(next).ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("s3cret", "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, serve("s3cret", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, serve("s3cret", ""))
	assert.Equal(t, http.StatusNotFound, serve("", ""))
}
