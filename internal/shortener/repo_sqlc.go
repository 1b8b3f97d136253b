package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/idgen"
)

// querier is the subset of *db.Queries the repository needs.
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByShort(ctx context.Context, short string) (db.Link, error)
	ListLinks(ctx context.Context) ([]db.Link, error)
	TrackVisit(ctx context.Context, arg db.TrackVisitParams) (int64, error)
	ListVisitsByLinkID(ctx context.Context, linkID uuid.UUID) ([]db.LinkVisit, error)
	DeleteExpiredLinks(ctx context.Context, expiresAt pgtype.Timestamptz) (int64, error)
}

type repo struct {
	q   querier
	ids idgen.Generator
}

type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository returns a Repository backed by the generated Postgres queries.
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7()
	}

	return &repo{q: q, ids: ids}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	expiresAt, err := mustTime(x.ExpiresAt, "expires_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:        x.ID,
		FullURL:   x.FullUrl,
		Code:      x.Short,
		Clicks:    x.Clicks,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:        link.ID,
		FullUrl:   link.FullURL,
		Short:     link.Code,
		CreatedAt: timestamptz(link.CreatedAt),
		ExpiresAt: timestamptz(link.ExpiresAt),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	created, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return created, nil
}

func (r *repo) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.GetByCode"

	row, err := r.q.GetLinkByShort(ctx, code)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) List(ctx context.Context) ([]Link, error) {
	const op = "shortener.repo.List"

	rows, err := r.q.ListLinks(ctx)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := toDomainLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		links = append(links, link)
	}
	return links, nil
}

// TrackVisit reports errx.NotFound when the code no longer exists, e.g. after
// the sweeper removed a link whose cache entry was still live.
func (r *repo) TrackVisit(ctx context.Context, code string, v Visit) error {
	const op = "shortener.repo.TrackVisit"

	_, err := r.q.TrackVisit(ctx, db.TrackVisitParams{
		Short:     code,
		Ip:        v.IP,
		VisitedAt: timestamptz(v.Timestamp),
	})
	if err != nil {
		return mapRepoError(op, err)
	}
	return nil
}

func (r *repo) ListVisits(ctx context.Context, linkID uuid.UUID) ([]Visit, error) {
	const op = "shortener.repo.ListVisits"

	rows, err := r.q.ListVisitsByLinkID(ctx, linkID)
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	visits := make([]Visit, 0, len(rows))
	for _, row := range rows {
		at, err := mustTime(row.VisitedAt, "visited_at")
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		visits = append(visits, Visit{IP: row.Ip, Timestamp: at})
	}
	return visits, nil
}

func (r *repo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const op = "shortener.repo.DeleteExpired"

	n, err := r.q.DeleteExpiredLinks(ctx, timestamptz(before))
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}
