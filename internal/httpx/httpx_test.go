package httpx

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/haukened/peek/internal/domain"
)

const testKey = "abcdefghij0123456789"

// mockBackend implements BackendPort with scripted results.
type mockBackend struct {
	mu sync.Mutex

	createKey domain.SecretKey
	createErr error
	created   []struct {
		content    string
		ttl        time.Duration
		passphrase string
	}

	retrieveContent string
	retrieveErr     error
	retrieved       []struct {
		key        domain.SecretKey
		passphrase string
	}
}

func (m *mockBackend) Create(_ context.Context, content string, ttl time.Duration, passphrase string) (domain.SecretKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, struct {
		content    string
		ttl        time.Duration
		passphrase string
	}{content, ttl, passphrase})
	return m.createKey, m.createErr
}

func (m *mockBackend) Retrieve(_ context.Context, key domain.SecretKey, passphrase string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieved = append(m.retrieved, struct {
		key        domain.SecretKey
		passphrase string
	}{key, passphrase})
	if m.retrieveErr != nil {
		return "", m.retrieveErr
	}
	return m.retrieveContent, nil
}

func (m *mockBackend) retrieveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retrieved)
}

// fakeStats records metric calls.
type fakeStats struct {
	mu       sync.Mutex
	incs     map[string]int64
	observed []int64
	outcomes []string
}

func newFakeStats() *fakeStats { return &fakeStats{incs: map[string]int64{}} }

func (s *fakeStats) Inc(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incs[name] += delta
}

func (s *fakeStats) Observe(_ string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, v)
}

func (s *fakeStats) RecordOutcome(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, kind)
}

// captureRenderer records the last data value passed to Execute.
type captureRenderer struct {
	mu   sync.Mutex
	data []any
	err  error
}

func (c *captureRenderer) Execute(w io.Writer, data any) error {
	c.mu.Lock()
	c.data = append(c.data, data)
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	_, _ = w.Write([]byte("rendered"))
	return nil
}

func (c *captureRenderer) last(t *testing.T) any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.data) == 0 {
		t.Fatal("renderer never invoked")
	}
	return c.data[len(c.data)-1]
}

// newTestHandler builds a Handler with capture renderers on every page.
func newTestHandler(b BackendPort) (*Handler, map[string]*captureRenderer) {
	renderers := map[string]*captureRenderer{
		"index":  {},
		"result": {},
		"secret": {},
		"about":  {},
	}
	h := New(b, slog.Default())
	h.IndexTmpl = renderers["index"]
	h.ResultTmpl = renderers["result"]
	h.SecretTmpl = renderers["secret"]
	h.AboutTmpl = renderers["about"]
	h.MinTTL = domain.MinTTL
	h.MaxTTL = domain.MaxTTL
	h.MaxBytes = 1024
	h.TTLOptions = []domain.TTLOption{
		{Label: "1h", Duration: time.Hour},
		{Label: "24h", Duration: 24 * time.Hour},
	}
	return h, renderers
}
