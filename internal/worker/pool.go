// Package worker runs fire-and-forget tasks on a fixed set of goroutines fed by a bounded queue.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers     = 8
	DefaultQueueSize   = 1024
	DefaultTaskTimeout = 5 * time.Second
)

// ErrClosed is returned by Submit after Shutdown has begun.
var ErrClosed = errors.New("worker pool is shut down")

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("worker queue is full")

// Task receives a context detached from the submitter, bounded by the pool's task timeout.
type Task func(ctx context.Context)

type job struct {
	name string
	run  Task
}

// Config sizes a Pool. Zero values take the package defaults.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *slog.Logger

	// OnDrop is called once for every task rejected by Submit.
	OnDrop func(name string, reason error)
}

type Pool struct {
	jobs    chan job
	timeout time.Duration
	logger  *slog.Logger
	onDrop  func(string, error)

	// base is cancelled when Shutdown gives up waiting, aborting in-flight tasks.
	base   context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// New starts cfg.Workers goroutines and returns the running pool.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.TaskTimeout,
		logger:  cfg.Logger.With("component", "worker_pool"),
		onDrop:  cfg.OnDrop,
		base:    base,
		cancel:  cancel,
		group:   &errgroup.Group{},
	}

	for range cfg.Workers {
		p.group.Go(func() error {
			for j := range p.jobs {
				p.run(j)
			}
			return nil
		})
	}
	return p
}

func (p *Pool) run(j job) {
	ctx, cancel := context.WithTimeout(p.base, p.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("task panicked",
				"task", j.name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()

	j.run(ctx)
}

// Submit enqueues t without blocking. A full queue or a closed pool drops the
// task, logs it at warn and reports the reason.
func (p *Pool) Submit(name string, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(name, ErrClosed)
		return ErrClosed
	}

	select {
	case p.jobs <- job{name: name, run: t}:
		return nil
	default:
		p.drop(name, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *Pool) drop(name string, reason error) {
	p.logger.Warn("task dropped", "task", name, "reason", reason)
	if p.onDrop != nil {
		p.onDrop(name, reason)
	}
}

// Pending reports how many tasks are queued but not yet started.
func (p *Pool) Pending() int { return len(p.jobs) }

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. If ctx ends first, in-flight tasks are cancelled and ctx's error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("shutdown deadline reached, abandoning queued tasks", "pending", len(p.jobs))
		return ctx.Err()
	}
}
