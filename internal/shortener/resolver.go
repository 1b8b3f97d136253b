package shortener

import (
	"context"
	"log/slog"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/events"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/worker"
)

const (
	DefaultCacheLookupTimeout = 50 * time.Millisecond
	DefaultFallbackTTL        = time.Hour

	recordVisitTask = "record_visit"

	sourceCache = "cache"
	sourceStore = "store"
)

// Cache is the fast code to URL lookup in front of the Repository.
// Get reports a miss as ("", false, nil).
type Cache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code, url string, ttl time.Duration) error
}

// TaskSubmitter runs fire-and-forget work off the request path. *worker.Pool satisfies it.
type TaskSubmitter interface {
	Submit(name string, t worker.Task) error
}

// Resolver turns short codes into redirect targets and records visits.
type Resolver interface {
	Resolve(ctx context.Context, code string, v Visitor) (string, error)

	// RecordVisit publishes a visit event and bumps the link's click count and
	// visit history in the background. It never blocks and never fails the caller.
	RecordVisit(code, ip string)
}

type resolver struct {
	repo          Repository
	cache         Cache
	publisher     events.Publisher
	tasks         TaskSubmitter
	topic         string
	lookupTimeout time.Duration
	writeTimeout  time.Duration
	fallbackTTL   time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

type ResolverConfig struct {
	Cache     Cache
	Publisher events.Publisher
	Tasks     TaskSubmitter // nil runs visit tasks inline
	Topic     string

	LookupTimeout time.Duration
	WriteTimeout  time.Duration
	// FallbackTTL is used when repopulating the cache after a miss. It is not
	// derived from the link's expiry.
	FallbackTTL time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewResolver(repo Repository, config *ResolverConfig) Resolver {
	if config == nil {
		config = &ResolverConfig{}
	}

	r := &resolver{
		repo:          repo,
		cache:         config.Cache,
		publisher:     config.Publisher,
		tasks:         config.Tasks,
		topic:         config.Topic,
		lookupTimeout: config.LookupTimeout,
		writeTimeout:  config.WriteTimeout,
		fallbackTTL:   config.FallbackTTL,
		metrics:       config.Metrics,
		logger:        config.Logger,
		now:           config.Now,
	}

	if r.tasks == nil {
		r.tasks = inlineTasks{timeout: worker.DefaultTaskTimeout}
	}
	if r.topic == "" {
		r.topic = events.DefaultTopic
	}
	if r.lookupTimeout <= 0 {
		r.lookupTimeout = DefaultCacheLookupTimeout
	}
	if r.writeTimeout <= 0 {
		r.writeTimeout = DefaultCacheWriteTimeout
	}
	if r.fallbackTTL <= 0 {
		r.fallbackTTL = DefaultFallbackTTL
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "resolver")
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve serves from the cache when it can. A cache hit is trusted without
// an expiry check; only the durable path can report errx.Expired.
func (r *resolver) Resolve(ctx context.Context, code string, v Visitor) (string, error) {
	const op = "shortener.resolver.Resolve"

	if code == "" || len(code) > MaxCodeLength {
		r.metrics.Resolve(metrics.ResolveNotFound, sourceStore)
		return "", errx.Errorf(op, errx.NotFound, "unknown short code")
	}

	if url, ok := r.lookup(ctx, code); ok {
		r.RecordVisit(code, v.RemoteIP)
		r.metrics.Resolve(metrics.ResolveRedirect, sourceCache)
		return url, nil
	}

	link, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		if errx.Is(err, errx.NotFound) {
			r.metrics.Resolve(metrics.ResolveNotFound, sourceStore)
			return "", errx.E(op, errx.NotFound, err)
		}
		r.metrics.Resolve(metrics.ResolveError, sourceStore)
		return "", errx.E(op, errx.Internal, err)
	}

	if link.Expired(r.now()) {
		r.metrics.Resolve(metrics.ResolveExpired, sourceStore)
		return "", errx.Errorf(op, errx.Expired, "short link has expired")
	}

	r.RecordVisit(code, v.ip())
	r.repopulate(ctx, link)
	r.metrics.Resolve(metrics.ResolveRedirect, sourceStore)
	return link.FullURL, nil
}

// lookup fails open: a cache error or timeout is a miss.
func (r *resolver) lookup(ctx context.Context, code string) (string, bool) {
	if r.cache == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	url, found, err := r.cache.Get(ctx, code)
	switch {
	case err != nil:
		r.metrics.CacheLookup(metrics.CacheError)
		r.logger.WarnContext(ctx, "cache lookup failed, falling back to store",
			"code", code,
			"error", err.Error(),
		)
		return "", false
	case !found:
		r.metrics.CacheLookup(metrics.CacheMiss)
		return "", false
	default:
		r.metrics.CacheLookup(metrics.CacheHit)
		return url, true
	}
}

func (r *resolver) repopulate(ctx context.Context, link Link) {
	if r.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if err := r.cache.Set(ctx, link.Code, link.FullURL, r.fallbackTTL); err != nil {
		r.logger.WarnContext(ctx, "failed to repopulate cache",
			"code", link.Code,
			"error", err.Error(),
		)
	}
}

func (r *resolver) RecordVisit(code, ip string) {
	at := r.now().UTC()
	// Submit failures are logged and counted by the pool.
	_ = r.tasks.Submit(recordVisitTask, func(ctx context.Context) {
		r.recordVisit(ctx, code, ip, at)
	})
}

func (r *resolver) recordVisit(ctx context.Context, code, ip string, at time.Time) {
	if r.publisher != nil {
		msg := events.VisitMessage{ShortURLID: code, IPAddress: ip, Timestamp: &at}
		if err := events.PublishVisit(ctx, r.publisher, r.topic, msg); err != nil {
			r.metrics.VisitFailed("publish")
			r.logger.WarnContext(ctx, "failed to publish visit",
				"code", code,
				"topic", r.topic,
				"error", err.Error(),
			)
		}
	}

	if err := r.repo.TrackVisit(ctx, code, Visit{IP: ip, Timestamp: at}); err != nil {
		r.metrics.VisitFailed("track")
		level := slog.LevelError
		if errx.Is(err, errx.NotFound) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "failed to track visit",
			"code", code,
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
	}
}

// inlineTasks runs each task synchronously on a fresh bounded context.
type inlineTasks struct {
	timeout time.Duration
}

func (t inlineTasks) Submit(_ string, task worker.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	task(ctx)
	return nil
}
