package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/haukened/peek/internal/backend"
	"github.com/haukened/peek/internal/domain"
)

// ResultView supplies the single-use link page after a successful create.
type ResultView struct {
	Link     string
	TTLLabel string
}

// handleShare implements POST /share: validate the form, create the secret on
// the remote service, and render the single-use link.
func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	content := r.PostFormValue("secret")
	ttlLabel := r.PostFormValue("ttl")
	passphrase := r.PostFormValue("passphrase")

	if content == "" {
		renderPage(w, h.IndexTmpl, h.indexView("Enter the secret you want to share."))
		return
	}
	if h.MaxBytes > 0 && int64(len(content)) > h.MaxBytes {
		renderPage(w, h.IndexTmpl, h.indexView("That secret is too large; the limit is "+humanBytes(h.MaxBytes)+"."))
		return
	}
	ttl, ok := h.lookupTTL(ttlLabel)
	if !ok {
		renderPage(w, h.IndexTmpl, h.indexView("Pick one of the offered expiry times."))
		return
	}
	if err := domain.ValidateTTL(ttl, h.MinTTL, h.MaxTTL); err != nil {
		renderPage(w, h.IndexTmpl, h.indexView("That expiry time is outside the allowed range."))
		return
	}

	key, err := h.Backend.Create(r.Context(), content, ttl, passphrase)
	if err != nil {
		h.logShareFailure(r, err)
		if h.Stats != nil {
			h.Stats.Inc("secret_create_failures_total", 1)
		}
		renderPage(w, h.IndexTmpl, h.indexView(shareFailureMessage(err)))
		return
	}
	if h.Stats != nil {
		h.Stats.Inc("secrets_created_total", 1)
	}
	renderPage(w, h.ResultTmpl, ResultView{
		Link:     "/secret/" + key.String(),
		TTLLabel: ttlLabel,
	})
}

// lookupTTL resolves a submitted label against the configured options only;
// arbitrary client-supplied durations are not accepted.
func (h *Handler) lookupTTL(label string) (time.Duration, bool) {
	for _, opt := range h.TTLOptions {
		if opt.Label == label {
			return opt.Duration, true
		}
	}
	return 0, false
}

func (h *Handler) logShareFailure(r *http.Request, err error) {
	cid, _ := GetCorrelationID(r.Context())
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		h.Logger.Warn("create failed", "cid", cid, "status", apiErr.Status)
		return
	}
	h.Logger.Warn("create failed", "cid", cid, "err", err)
}

// shareFailureMessage translates create errors to form-banner text.
func shareFailureMessage(err error) string {
	switch {
	case errors.Is(err, backend.ErrTimeout), errors.Is(err, backend.ErrNoResponse):
		return "Could not reach the secret service. Check your connection and try again."
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
			return "Too many requests. Wait a moment and try again."
		}
		return "The secret could not be created. Try again shortly."
	}
}
