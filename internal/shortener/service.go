package shortener

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/sluggen"
)

const (
	DefaultCodeLength = sluggen.DefaultLength
	MinCodeLength     = 4
	MaxCodeLength     = 32
	DefaultMaxRetries = 3
	MaxURLLength      = 2048

	DefaultExpirationMinutes = 60
	// MaxExpirationMinutes is a century; larger windows overflow time.Duration arithmetic downstream.
	MaxExpirationMinutes = 100 * 365 * 24 * 60

	DefaultCacheWriteTimeout = 200 * time.Millisecond
)

// CreateLinkRequest holds the caller's input for issuing a link.
// A nil or zero ExpirationMinutes means the configured default.
type CreateLinkRequest struct {
	FullURL           string
	ExpirationMinutes *float64
}

// EventCounter counts stored analytics events for a short code.
type EventCounter interface {
	Count(ctx context.Context, shortURLID string) (int64, error)
}

// Service issues links and answers durable read queries about them.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Analytics(ctx context.Context, code string) (Analytics, error)
}

type service struct {
	repo              Repository
	codes             sluggen.Generator
	maxRetries        int
	defaultExpiration float64
	cache             Cache
	cacheWriteTimeout time.Duration
	events            EventCounter
	metrics           *metrics.Metrics
	logger            *slog.Logger
	now               func() time.Time
}

type ServiceConfig struct {
	CodeGenerator sluggen.Generator
	CodeLength    int // ignored when CodeGenerator is set
	MaxRetries    int // attempts at finding an unused code (default: 3)

	DefaultExpirationMinutes float64

	// Cache is primed with every new link. Optional.
	Cache             Cache
	CacheWriteTimeout time.Duration

	// Events backs the eventCount of Analytics. Optional; counts are 0 without it.
	Events EventCounter

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		length := config.CodeLength
		if length < MinCodeLength || length > MaxCodeLength {
			length = DefaultCodeLength
		}
		codes = sluggen.NewBase62(length)
	}

	retries := config.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	expiration := config.DefaultExpirationMinutes
	if expiration <= 0 {
		expiration = DefaultExpirationMinutes
	}

	writeTimeout := config.CacheWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultCacheWriteTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:              repo,
		codes:             codes,
		maxRetries:        retries,
		defaultExpiration: expiration,
		cache:             config.Cache,
		cacheWriteTimeout: writeTimeout,
		events:            config.Events,
		metrics:           config.Metrics,
		logger:            logger.With("component", "shortener"),
		now:               now,
	}
}

// Create stores a new link under a freshly generated code and primes the cache
// for the lifetime of the link.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	fullURL := strings.TrimSpace(req.FullURL)
	if fullURL == "" {
		return Link{}, errx.Errorf(op, errx.Invalid, "fullUrl is required")
	}
	if len(fullURL) > MaxURLLength {
		return Link{}, errx.Errorf(op, errx.Invalid, "fullUrl too long (max %d characters)", MaxURLLength)
	}

	window, err := s.expirationWindow(req.ExpirationMinutes)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	// Postgres keeps microseconds; truncating here keeps expiresAt - createdAt exact after the round trip.
	now := s.now().UTC().Truncate(time.Microsecond)
	link := Link{
		FullURL:   normalizeURL(fullURL),
		CreatedAt: now,
		ExpiresAt: now.Add(window),
	}

	for range s.maxRetries {
		link.Code = s.codes.Generate()

		created, err := s.repo.Create(ctx, link)
		if err == nil {
			s.prime(ctx, created, window)
			s.metrics.LinkCreated()
			return created, nil
		}

		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.Internal, err)
		}
		s.logger.DebugContext(ctx, "short code collision", "code", link.Code)
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique short code after retries"))
}

func (s *service) expirationWindow(minutes *float64) (time.Duration, error) {
	m := s.defaultExpiration
	if minutes != nil && *minutes != 0 {
		m = *minutes
	}

	switch {
	case math.IsNaN(m) || m < 0:
		return 0, errors.New("expirationMinutes must be a positive number")
	case m > MaxExpirationMinutes:
		return 0, errors.New("expirationMinutes is too large")
	}

	window := time.Duration(m * float64(time.Minute)).Truncate(time.Microsecond)
	if window < time.Millisecond {
		return 0, errors.New("expirationMinutes is too small")
	}
	return window, nil
}

// normalizeURL prepends http:// unless the URL already names http or https.
func normalizeURL(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "http://" + raw
}

func (s *service) prime(ctx context.Context, link Link, ttl time.Duration) {
	if s.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheWriteTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, link.Code, link.FullURL, ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to prime cache",
			"code", link.Code,
			"error", err.Error(),
		)
	}
}

func (s *service) List(ctx context.Context) ([]Link, error) {
	const op = "shortener.service.List"

	links, err := s.repo.List(ctx)
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}
	return links, nil
}

// Analytics reads the link, its visits and its event count from durable storage only.
func (s *service) Analytics(ctx context.Context, code string) (Analytics, error) {
	const op = "shortener.service.Analytics"

	if code == "" || len(code) > MaxCodeLength {
		return Analytics{}, errx.Errorf(op, errx.NotFound, "unknown short code")
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errx.Is(err, errx.NotFound) {
			return Analytics{}, errx.E(op, errx.NotFound, err)
		}
		return Analytics{}, errx.E(op, errx.Internal, err)
	}

	visits, err := s.repo.ListVisits(ctx, link.ID)
	if err != nil {
		return Analytics{}, errx.E(op, errx.Internal, err)
	}

	var count int64
	if s.events != nil {
		count, err = s.events.Count(ctx, code)
		if err != nil {
			return Analytics{}, errx.E(op, errx.Internal, err)
		}
	}

	return Analytics{
		Code:       link.Code,
		FullURL:    link.FullURL,
		Clicks:     link.Clicks,
		Visits:     visits,
		EventCount: count,
	}, nil
}
