package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrack/internal/outbox"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/store/auditlog"
	"doctrack/internal/routing/store/document"
	"doctrack/pkg/testutil"
)

type failingEvents struct{}

func (failingEvents) ListAll(context.Context) ([]models.AuditEvent, error) {
	return nil, errors.New("connection reset")
}

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	return testutil.DoRequest(testutil.Mount(h), testutil.NewJSONRequest(t, http.MethodGet, path, nil))
}

func TestHandleDrift(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs := document.NewInMemory()
	events := auditlog.NewInMemory()

	t0 := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	doc := &models.Document{PublicID: "DOC-0000000A", Title: "Memo", CurrentDepartment: "Mayor", Status: "Pending", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, docs.Create(ctx, doc))
	require.NoError(t, events.Append(ctx, &models.AuditEvent{
		RecordID: doc.ID, Action: models.ActionRelease, Status: "Pending", ToDepartment: "Mayor", ActionBy: "E", Timestamp: t0,
	}))

	w := serve(t, New(docs, events, nil, logger), "/admin/projection/drift")
	require.Equal(t, http.StatusOK, w.Code)
	clean := testutil.UnmarshalResponse[DriftResponse](t, w)
	assert.Zero(t, clean.Total)

	doc.Status = "Completed"
	require.NoError(t, docs.Update(ctx, doc, models.Fields(models.FieldStatus)))

	w = serve(t, New(docs, events, nil, logger), "/admin/projection/drift")
	drifted := testutil.UnmarshalResponse[DriftResponse](t, w)
	require.Equal(t, 1, drifted.Total)
	assert.Equal(t, "DOC-0000000A", drifted.Drifts[0].DocumentID)

	w = serve(t, New(docs, failingEvents{}, nil, logger), "/admin/projection/drift")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleOutbox(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := outbox.NewInMemory()
	require.NoError(t, store.Enqueue(context.Background(), outbox.NewEntry("document", "DOC-0000000A", "routing.release", []byte(`{}`), time.Now())))

	w := serve(t, New(document.NewInMemory(), auditlog.NewInMemory(), store, logger), "/admin/outbox")
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.UnmarshalResponse[OutboxResponse](t, w)
	assert.Equal(t, 1, resp.Pending)

	w = serve(t, New(document.NewInMemory(), auditlog.NewInMemory(), nil, logger), "/admin/outbox")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
