package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/haukened/peek/internal/backend"
)

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func secretView(t *testing.T, r *captureRenderer) SecretView {
	t.Helper()
	view, ok := r.last(t).(SecretView)
	if !ok {
		t.Fatalf("unexpected view type %T", r.last(t))
	}
	return view
}

func TestSecretGetRendersPrompt(t *testing.T) {
	mb := &mockBackend{}
	h, renderers := newTestHandler(mb)
	router := h.Router()

	req := httptest.NewRequest(http.MethodGet, "/secret/"+testKey, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	view := secretView(t, renderers["secret"])
	if view.Phase != phasePrompt || view.Key != testKey {
		t.Fatalf("unexpected view: %+v", view)
	}
	if mb.retrieveCalls() != 0 {
		t.Fatalf("GET must never issue the consuming probe")
	}
}

func TestSecretInvalidKeyRejectedWithoutNetworkCall(t *testing.T) {
	mb := &mockBackend{}
	h, renderers := newTestHandler(mb)

	req := httptest.NewRequest(http.MethodGet, "/secret/not%20a%20key", nil)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)

	view := secretView(t, renderers["secret"])
	if view.Phase != phaseTerminal {
		t.Fatalf("expected terminal phase, got %+v", view)
	}
	if view.RedirectSeconds != 3 {
		t.Fatalf("expected 3s redirect, got %d", view.RedirectSeconds)
	}
	if mb.retrieveCalls() != 0 {
		t.Fatalf("malformed key reached the backend")
	}
}

func TestSecretProbeReveals(t *testing.T) {
	mb := &mockBackend{retrieveContent: "hello"}
	h, renderers := newTestHandler(mb)
	stats := newFakeStats()
	h.Stats = stats

	rr := postForm(t, h.Router(), "/secret/"+testKey, url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	view := secretView(t, renderers["secret"])
	if view.Phase != phaseRevealed || view.Content != "hello" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if mb.retrieved[0].passphrase != "" {
		t.Fatalf("probe carried a passphrase")
	}
	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.outcomes) != 1 || stats.outcomes[0] != "revealed" {
		t.Fatalf("outcome not recorded: %v", stats.outcomes)
	}
	if len(stats.observed) != 1 {
		t.Fatalf("duration not observed")
	}
}

func TestSecretProbeDiscoversPassphrase(t *testing.T) {
	mb := &mockBackend{retrieveErr: &backend.APIError{Status: 404, Message: "Unknown secret"}}
	h, renderers := newTestHandler(mb)

	postForm(t, h.Router(), "/secret/"+testKey, url.Values{})
	view := secretView(t, renderers["secret"])
	if view.Phase != phasePassword {
		t.Fatalf("expected password phase, got %+v", view)
	}
	if view.RedirectSeconds != 0 {
		t.Fatalf("no redirect may be scheduled while prompting")
	}
}

func TestSecretPassphraseRetryReveals(t *testing.T) {
	mb := &mockBackend{retrieveContent: "top secret"}
	h, renderers := newTestHandler(mb)

	postForm(t, h.Router(), "/secret/"+testKey, url.Values{
		"prompted":   {"1"},
		"passphrase": {"hunter2"},
	})
	view := secretView(t, renderers["secret"])
	if view.Phase != phaseRevealed || view.Content != "top secret" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if mb.retrieveCalls() != 1 {
		t.Fatalf("prompted retry must skip the probe, got %d calls", mb.retrieveCalls())
	}
	if mb.retrieved[0].passphrase != "hunter2" {
		t.Fatalf("passphrase not forwarded")
	}
}

func TestSecretWrongPassphraseTerminal(t *testing.T) {
	mb := &mockBackend{retrieveErr: &backend.APIError{Status: 404, Message: "Unknown secret"}}
	h, renderers := newTestHandler(mb)

	postForm(t, h.Router(), "/secret/"+testKey, url.Values{
		"prompted":   {"1"},
		"passphrase": {"wrong"},
	})
	view := secretView(t, renderers["secret"])
	if view.Phase != phaseTerminal {
		t.Fatalf("expected terminal, got %+v", view)
	}
	if view.RedirectSeconds != 3 {
		t.Fatalf("expected 3s redirect, got %d", view.RedirectSeconds)
	}
	if !strings.Contains(view.Message, "passphrase") {
		t.Fatalf("message should mention the passphrase ambiguity: %q", view.Message)
	}
}

func TestSecretEmptyPromptedPassphraseReprompts(t *testing.T) {
	mb := &mockBackend{}
	h, renderers := newTestHandler(mb)

	postForm(t, h.Router(), "/secret/"+testKey, url.Values{
		"prompted":   {"1"},
		"passphrase": {""},
	})
	view := secretView(t, renderers["secret"])
	if view.Phase != phasePassword {
		t.Fatalf("expected re-prompt, got %+v", view)
	}
	if mb.retrieveCalls() != 0 {
		t.Fatalf("empty passphrase must not reach the backend")
	}
}

func TestSecretTransportFailureTerminal(t *testing.T) {
	mb := &mockBackend{retrieveErr: backend.ErrTimeout}
	h, renderers := newTestHandler(mb)

	postForm(t, h.Router(), "/secret/"+testKey, url.Values{})
	view := secretView(t, renderers["secret"])
	if view.Phase != phaseTerminal {
		t.Fatalf("expected terminal, got %+v", view)
	}
	if !strings.Contains(view.Message, "connection") {
		t.Fatalf("unexpected message %q", view.Message)
	}
}

func TestSecretPathEdgeCases(t *testing.T) {
	h, _ := newTestHandler(&mockBackend{})
	router := h.Router()
	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{name: "bare prefix", method: http.MethodGet, target: "/secret/", want: http.StatusNotFound},
		{name: "delete not allowed", method: http.MethodDelete, target: "/secret/" + testKey, want: http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}
