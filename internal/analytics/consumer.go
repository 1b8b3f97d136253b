package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/shortlinks/internal/events"
	"github.com/sundayezeilo/shortlinks/internal/idgen"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
)

const DefaultInsertTimeout = 5 * time.Second

// ErrSubscriptionClosed is returned by Run when the bus ends the stream while ctx is still live.
var ErrSubscriptionClosed = errors.New("analytics subscription closed")

type ConsumerConfig struct {
	Subscriber events.Subscriber
	Store      Store
	Topic      string

	// Concurrency bounds in-flight inserts. 1 processes messages sequentially.
	Concurrency   int
	InsertTimeout time.Duration

	IDGenerator idgen.Generator
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Consumer turns visit messages into stored Events. Delivery is at-most-once:
// malformed payloads and failed inserts are logged and dropped.
type Consumer struct {
	sub           events.Subscriber
	store         Store
	topic         string
	concurrency   int
	insertTimeout time.Duration
	ids           idgen.Generator
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Topic == "" {
		cfg.Topic = events.DefaultTopic
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = DefaultInsertTimeout
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = idgen.NewV7()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Consumer{
		sub:           cfg.Subscriber,
		store:         cfg.Store,
		topic:         cfg.Topic,
		concurrency:   cfg.Concurrency,
		insertTimeout: cfg.InsertTimeout,
		ids:           cfg.IDGenerator,
		logger:        cfg.Logger.With("component", "analytics_consumer", "topic", cfg.Topic),
		metrics:       cfg.Metrics,
		now:           cfg.Now,
	}
}

// Run subscribes and processes messages until ctx is cancelled, then waits for
// in-flight inserts. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("analytics consumer: %w", err)
	}
	defer func() { _ = sub.Close() }()

	c.logger.Info("analytics consumer started", "concurrency", c.concurrency)

	// In-flight inserts are not tied to ctx so a shutdown lets them finish.
	insertCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	runErr := func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case payload, ok := <-sub.Messages():
				if !ok {
					if ctx.Err() != nil {
						return nil
					}
					return ErrSubscriptionClosed
				}
				g.Go(func() error {
					c.Handle(insertCtx, payload)
					return nil
				})
			}
		}
	}()

	_ = g.Wait()
	c.logger.Info("analytics consumer stopped")
	return runErr
}

// Handle processes one raw payload. It never returns an error; outcomes are logged and counted.
func (c *Consumer) Handle(ctx context.Context, payload []byte) {
	msg, err := events.ParseVisitMessage(payload)
	if err != nil {
		c.logger.Warn("dropping malformed visit message", "error", err, "payload_bytes", len(payload))
		c.metrics.EventConsumed(metrics.EventMalformed)
		return
	}

	id, err := c.ids.Generate()
	if err != nil {
		c.logger.Error("failed to generate analytics event id", "error", err, "short_url_id", msg.ShortURLID)
		c.metrics.EventConsumed(metrics.EventFailed)
		return
	}

	ev := Event{
		ID:         id,
		ShortURLID: msg.ShortURLID,
		IPAddress:  msg.IPAddress,
		Timestamp:  c.now(),
	}
	if msg.Timestamp != nil {
		ev.Timestamp = *msg.Timestamp
	}

	insertCtx, cancel := context.WithTimeout(ctx, c.insertTimeout)
	defer cancel()

	if err := c.store.Insert(insertCtx, ev); err != nil {
		c.logger.Error("failed to store analytics event", "error", err, "short_url_id", ev.ShortURLID)
		c.metrics.EventConsumed(metrics.EventFailed)
		return
	}

	c.logger.Debug("analytics event stored", "short_url_id", ev.ShortURLID)
	c.metrics.EventConsumed(metrics.EventStored)
}
