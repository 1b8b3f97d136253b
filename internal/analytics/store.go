// Package analytics persists visit events published on the redirect path and
// answers per-link event counts.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one stored visit notification. It references its link by short code only.
type Event struct {
	ID         uuid.UUID
	ShortURLID string
	IPAddress  string
	Timestamp  time.Time
}

// Store is an append-only event log.
type Store interface {
	Insert(ctx context.Context, e Event) error
	Count(ctx context.Context, shortURLID string) (int64, error)
}
