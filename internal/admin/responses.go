package admin

import (
	"time"

	"doctrack/internal/routing/projection"
)

// DriftResponse is the HTTP response DTO for a projection check.
type DriftResponse struct {
	Drifts    []projection.Drift `json:"drifts"`
	Total     int                `json:"total"`
	CheckedAt time.Time          `json:"checked_at"`
}

// OutboxResponse reports the publishing backlog.
type OutboxResponse struct {
	Pending   int       `json:"pending"`
	CheckedAt time.Time `json:"checked_at"`
}
