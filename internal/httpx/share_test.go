package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/haukened/peek/internal/backend"
	"github.com/haukened/peek/internal/domain"
)

func TestShareSuccess(t *testing.T) {
	mb := &mockBackend{createKey: domain.SecretKey(testKey)}
	h, renderers := newTestHandler(mb)
	stats := newFakeStats()
	h.Stats = stats

	rr := postForm(t, h.Router(), "/share", url.Values{
		"secret":     {"hello world"},
		"ttl":        {"24h"},
		"passphrase": {"hunter2"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	view, ok := renderers["result"].last(t).(ResultView)
	if !ok {
		t.Fatalf("unexpected view type")
	}
	if view.Link != "/secret/"+testKey {
		t.Fatalf("unexpected link %q", view.Link)
	}
	if view.TTLLabel != "24h" {
		t.Fatalf("unexpected ttl label %q", view.TTLLabel)
	}
	if mb.created[0].ttl != 24*time.Hour || mb.created[0].passphrase != "hunter2" {
		t.Fatalf("create request mismatch: %+v", mb.created[0])
	}
	stats.mu.Lock()
	defer stats.mu.Unlock()
	if stats.incs["secrets_created_total"] != 1 {
		t.Fatalf("created counter not incremented")
	}
}

func TestShareValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string // substring of the form banner
	}{
		{
			name: "empty secret",
			form: url.Values{"ttl": {"1h"}},
			want: "Enter the secret",
		},
		{
			name: "unknown ttl label",
			form: url.Values{"secret": {"x"}, "ttl": {"9h"}},
			want: "offered expiry",
		},
		{
			name: "missing ttl",
			form: url.Values{"secret": {"x"}},
			want: "offered expiry",
		},
		{
			name: "oversized secret",
			form: url.Values{"secret": {strings.Repeat("a", 2048)}, "ttl": {"1h"}},
			want: "too large",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mb := &mockBackend{}
			h, renderers := newTestHandler(mb)
			postForm(t, h.Router(), "/share", tc.form)
			view, ok := renderers["index"].last(t).(IndexView)
			if !ok {
				t.Fatalf("expected the form to re-render")
			}
			if !strings.Contains(view.Error, tc.want) {
				t.Fatalf("banner %q does not contain %q", view.Error, tc.want)
			}
			if len(mb.created) != 0 {
				t.Fatalf("invalid form reached the backend")
			}
		})
	}
}

func TestShareBackendFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "timeout", err: backend.ErrTimeout, want: "connection"},
		{name: "no response", err: backend.ErrNoResponse, want: "connection"},
		{name: "rate limited", err: &backend.APIError{Status: 429, Message: "slow down"}, want: "Too many requests"},
		{name: "server fault", err: &backend.APIError{Status: 500, Message: "boom"}, want: "could not be created"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mb := &mockBackend{createErr: tc.err}
			h, renderers := newTestHandler(mb)
			stats := newFakeStats()
			h.Stats = stats

			postForm(t, h.Router(), "/share", url.Values{"secret": {"x"}, "ttl": {"1h"}})
			view, ok := renderers["index"].last(t).(IndexView)
			if !ok {
				t.Fatalf("expected the form to re-render")
			}
			if !strings.Contains(view.Error, tc.want) {
				t.Fatalf("banner %q does not contain %q", view.Error, tc.want)
			}
			stats.mu.Lock()
			defer stats.mu.Unlock()
			if stats.incs["secret_create_failures_total"] != 1 {
				t.Fatalf("failure counter not incremented")
			}
		})
	}
}

func TestShareMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(&mockBackend{})
	req := httptest.NewRequest(http.MethodGet, "/share", nil)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
