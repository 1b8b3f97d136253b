package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/errx"
)

type querier interface {
	InsertAnalyticsEvent(ctx context.Context, arg db.InsertAnalyticsEventParams) error
	CountAnalyticsEvents(ctx context.Context, shortUrlID string) (int64, error)
}

// PostgresStore writes events to the analytics_events table.
type PostgresStore struct {
	q querier
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(q querier) *PostgresStore {
	return &PostgresStore{q: q}
}

func (s *PostgresStore) Insert(ctx context.Context, e Event) error {
	const op = "analytics.PostgresStore.Insert"

	err := s.q.InsertAnalyticsEvent(ctx, db.InsertAnalyticsEventParams{
		ID:         e.ID,
		ShortUrlID: e.ShortURLID,
		IpAddress:  e.IPAddress,
		Timestamp:  pgtype.Timestamptz{Time: e.Timestamp, Valid: true},
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, shortURLID string) (int64, error) {
	const op = "analytics.PostgresStore.Count"

	n, err := s.q.CountAnalyticsEvents(ctx, shortURLID)
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}
