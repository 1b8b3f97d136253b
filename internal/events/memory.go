package events

import (
	"context"
	"errors"
	"sync"
)

// DefaultMemoryBuffer is the per-subscriber queue length of a MemoryBus.
const DefaultMemoryBuffer = 256

// ErrSubscriberFull is returned by MemoryBus.Publish when at least one
// subscriber's queue was full and the message was dropped for it.
var ErrSubscriberFull = errors.New("subscriber queue full, message dropped")

// MemoryBus is an in-process fan-out bus for single-binary deployments and tests.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
}

var _ Bus = (*MemoryBus)(nil)

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultMemoryBuffer
	}
	return &MemoryBus{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

// Publish never blocks.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := append([]byte(nil), payload...)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var dropped bool
	for s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		default:
			dropped = true
		}
	}
	if dropped {
		return ErrSubscriberFull
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &memorySubscription{bus: b, topic: topic, ch: make(chan []byte, b.buffer)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	return s, nil
}

func (b *MemoryBus) remove(s *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[s.topic]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.subs, s.topic)
	}
	close(s.ch)
}

type memorySubscription struct {
	bus   *MemoryBus
	topic string
	ch    chan []byte
}

func (s *memorySubscription) Messages() <-chan []byte { return s.ch }

// Close unsubscribes; buffered messages remain readable until the channel drains.
func (s *memorySubscription) Close() error {
	s.bus.remove(s)
	return nil
}
