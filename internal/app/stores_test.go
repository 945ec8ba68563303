package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrack/internal/platform/config"
	"doctrack/internal/routing/models"
)

func TestOpenStoresInMemory(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := OpenStores(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.DB)
	assert.Nil(t, stores.Tx)
	assert.NoError(t, stores.Ping(context.Background()))

	engine := NewEngine(cfg, stores, logger)
	doc, err := engine.CreateAndRelease(context.Background(),
		models.Actor{Name: "E", Department: "Engineering"},
		models.CreateRequest{Title: "Memo", DocType: "memorandum", ImplementingOffice: "Mayor", Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, "Memorandum", doc.DocType)

	n, err := stores.Outbox.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVocabularyOverrides(t *testing.T) {
	cfg, err := config.FromMap(map[string]string{"DOCTRACK_STATUSES": "Draft,Signed"})
	require.NoError(t, err)

	v := Vocabulary(cfg)
	_, ok := v.Status("draft")
	assert.True(t, ok)
	_, ok = v.Status("For Payment")
	assert.False(t, ok)
	_, ok = v.Status("closed")
	assert.True(t, ok, "the terminal status is always known")
	_, ok = v.DocType("Voucher")
	assert.True(t, ok)
}
