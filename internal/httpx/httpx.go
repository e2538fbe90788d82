// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// peek web client. It maps browser requests onto the retrieval flow and the
// backend transport adapter while enforcing validation, security headers, and
// error translation. Handlers are split across files (index.go, share.go,
// secret.go, about.go, health.go).
package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/haukened/peek/internal/domain"
	"github.com/haukened/peek/internal/flow"
)

// BackendPort abstracts the subset of the transport adapter the HTTP layer
// uses. Satisfied by *backend.Client in production and mocked in tests.
type BackendPort interface {
	Create(ctx context.Context, content string, ttl time.Duration, passphrase string) (domain.SecretKey, error)
	Retrieve(ctx context.Context, key domain.SecretKey, passphrase string) (string, error)
}

// Stats is the optional metrics port. Satisfied by *metrics.Manager.
type Stats interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
	RecordOutcome(kind string)
}

// Handler wires HTTP endpoints to the retrieval flow and backend client.
// Safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Backend   BackendPort
	Stats     Stats                       // optional outcome/duration metrics
	Metrics   http.Handler                // optional /metrics endpoint
	Readiness func(context.Context) error // optional readiness probe
	Logger    *slog.Logger

	IndexTmpl  Renderer
	ResultTmpl Renderer
	SecretTmpl Renderer
	AboutTmpl  Renderer

	Assets     http.FileSystem // static assets filesystem (optional)
	MinTTL     time.Duration
	MaxTTL     time.Duration
	TTLOptions []domain.TTLOption
	MaxBytes   int64 // maximum secret content size accepted by the form

	// RedirectDelay is how long terminal pages linger before sending the user
	// home. Mirrors the flow's default.
	RedirectDelay time.Duration
}

// New returns a configured Handler.
func New(b BackendPort, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Backend: b, Logger: log, RedirectDelay: flow.DefaultRedirectDelay}
}

// Router constructs an http.Handler with all routes mounted, correlation IDs
// injected, and security headers applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleIndex)
	mux.HandleFunc("/about", h.handleAbout)
	mux.HandleFunc("/share", h.handleShare)
	mux.HandleFunc("/secret/", h.handleSecret) // expect /secret/{key}
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics)
	}
	if h.Assets != nil {
		mux.Handle("/static/", http.StripPrefix("/static/", h.staticHandler()))
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
// Pages that can contain secret content must never be cached, so no-store is
// the default; the static handler overrides it for assets.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if ct := w.Header().Get("Content-Type"); ct == "" {
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Pragma", "no-cache")
		}
		w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'self'; style-src 'self'; img-src 'self' data:; connect-src 'self'; font-src 'self'; frame-ancestors 'none'; base-uri 'none'; form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// staticHandler serves embedded/static assets under /static/.
func (h *Handler) staticHandler() http.Handler {
	fs := h.Assets
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Require a file with an extension; no directory listings.
		if len(r.URL.Path) == 0 || r.URL.Path[len(r.URL.Path)-1] == '/' || !hasExt(r.URL.Path) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.FileServer(fs).ServeHTTP(w, r)
	})
}

func hasExt(p string) bool {
	for i := len(p) - 1; i >= 0 && p[i] != '/'; i-- {
		if p[i] == '.' {
			return i != len(p)-1
		}
	}
	return false
}

// writeError writes a short plain-text error. Used for malformed routes and
// method mismatches; flow outcomes render full pages instead.
func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

// redirectSeconds converts the configured delay for template meta refresh.
func (h *Handler) redirectSeconds() int {
	d := h.RedirectDelay
	if d <= 0 {
		d = flow.DefaultRedirectDelay
	}
	return int(d / time.Second)
}
