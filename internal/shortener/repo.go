package shortener

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the durable link store. Codes are unique; a duplicate code on
// Create is reported as errx.Conflict and a missing code as errx.NotFound.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)

	// List returns every link, newest first, without visits.
	List(ctx context.Context) ([]Link, error)

	// TrackVisit increments the click count and appends v in one statement.
	TrackVisit(ctx context.Context, code string, v Visit) error
	ListVisits(ctx context.Context, linkID uuid.UUID) ([]Visit, error)

	// DeleteExpired removes links that expired before the given instant,
	// together with their visits, and returns how many links were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
