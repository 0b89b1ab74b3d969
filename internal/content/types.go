// Package content holds externally sourced video records. Rows originate
// from an ingestion pipeline outside this service, so other tables reference
// them by plain id without rigid foreign keys.
package content

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("content: not found")

// Record is a single ingested video. ValidationHash is a denormalized copy
// of the latest VERIFIED ownership hash, kept for fast lookups; the ownership
// claim row stays the source of truth.
type Record struct {
	ID             uuid.UUID
	Title          string
	Description    string
	URL            string
	ThumbnailURL   string
	ChannelID      string
	ChannelName    string
	ValidationHash string
	PublishedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
