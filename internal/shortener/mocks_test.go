package shortener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/worker"
)

/***************
 * Mocks
 ***************/

// mockRepository implements Repository with overridable funcs and records visits.
type mockRepository struct {
	createFunc        func(ctx context.Context, link Link) (Link, error)
	getByCodeFunc     func(ctx context.Context, code string) (Link, error)
	listFunc          func(ctx context.Context) ([]Link, error)
	trackVisitFunc    func(ctx context.Context, code string, v Visit) error
	listVisitsFunc    func(ctx context.Context, linkID uuid.UUID) ([]Visit, error)
	deleteExpiredFunc func(ctx context.Context, before time.Time) (int64, error)

	mu      sync.Mutex
	created []Link
	tracked []trackedVisit
}

type trackedVisit struct {
	code  string
	visit Visit
}

func (m *mockRepository) Create(ctx context.Context, link Link) (Link, error) {
	m.mu.Lock()
	m.created = append(m.created, link)
	m.mu.Unlock()

	if m.createFunc != nil {
		return m.createFunc(ctx, link)
	}
	link.ID = uuid.New()
	return link, nil
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (Link, error) {
	if m.getByCodeFunc != nil {
		return m.getByCodeFunc(ctx, code)
	}
	return Link{}, errx.E("repo.GetByCode", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) List(ctx context.Context) ([]Link, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) TrackVisit(ctx context.Context, code string, v Visit) error {
	m.mu.Lock()
	m.tracked = append(m.tracked, trackedVisit{code: code, visit: v})
	m.mu.Unlock()

	if m.trackVisitFunc != nil {
		return m.trackVisitFunc(ctx, code, v)
	}
	return nil
}

func (m *mockRepository) ListVisits(ctx context.Context, linkID uuid.UUID) ([]Visit, error) {
	if m.listVisitsFunc != nil {
		return m.listVisitsFunc(ctx, linkID)
	}
	return nil, nil
}

func (m *mockRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if m.deleteExpiredFunc != nil {
		return m.deleteExpiredFunc(ctx, before)
	}
	return 0, nil
}

func (m *mockRepository) trackedVisits() []trackedVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]trackedVisit(nil), m.tracked...)
}

// mockCache implements Cache over a map unless getFunc/setFunc override it.
type mockCache struct {
	getFunc func(ctx context.Context, code string) (string, bool, error)
	setFunc func(ctx context.Context, code, url string, ttl time.Duration) error

	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mockCache) Get(ctx context.Context, code string) (string, bool, error) {
	if c.getFunc != nil {
		return c.getFunc(ctx, code)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.entries[code]
	return url, ok, nil
}

func (c *mockCache) Set(ctx context.Context, code, url string, ttl time.Duration) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()

	if c.setFunc != nil {
		return c.setFunc(ctx, code, url, ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = url
	c.ttls[code] = ttl
	return nil
}

func (c *mockCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// mockPublisher records published payloads per topic.
type mockPublisher struct {
	err error

	mu       sync.Mutex
	payloads map[string][][]byte
}

func (p *mockPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = map[string][][]byte{}
	}
	p.payloads[topic] = append(p.payloads[topic], payload)
	return p.err
}

func (p *mockPublisher) published(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads[topic]...)
}

// mockCodes hands out codes in order, repeating the last one when exhausted.
type mockCodes struct {
	codes []string
	calls int
}

func (g *mockCodes) Generate() string {
	g.calls++
	if len(g.codes) == 0 {
		return "abc1234"
	}
	idx := min(g.calls, len(g.codes)) - 1
	return g.codes[idx]
}

// queuedTasks holds submitted tasks until run is called.
type queuedTasks struct {
	err   error
	names []string
	tasks []worker.Task
}

func (q *queuedTasks) Submit(name string, t worker.Task) error {
	if q.err != nil {
		return q.err
	}
	q.names = append(q.names, name)
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *queuedTasks) run() {
	for _, t := range q.tasks {
		t(context.Background())
	}
	q.tasks = nil
}

type mockCounter struct {
	count int64
	err   error
}

func (c mockCounter) Count(context.Context, string) (int64, error) { return c.count, c.err }

func ptr[T any](v T) *T { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// scrapeMetrics returns the exposition text served by m.
func scrapeMetrics(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler status = %d", rec.Code)
	}
	return rec.Body.String()
}
