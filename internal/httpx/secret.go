package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/haukened/peek/internal/domain"
	"github.com/haukened/peek/internal/flow"
)

// Phases of the secret page template.
const (
	phasePrompt   = "prompt"   // confirmation before the consuming probe
	phasePassword = "password" // passphrase form after discovery
	phaseRevealed = "revealed"
	phaseTerminal = "terminal"
)

// SecretView drives the retrieval page template through its phases.
type SecretView struct {
	Key     string
	Phase   string
	Content string // set only in the revealed phase
	Message string
	// RedirectSeconds > 0 makes the page meta-refresh home after the delay.
	RedirectSeconds int
}

// handleSecret serves /secret/{key}. GET renders a confirmation page so
// prefetchers and link previews never consume the single read; POST issues
// the probe (no passphrase) or, after a prompt, the passphrase-bearing retry.
func (h *Handler) handleSecret(w http.ResponseWriter, r *http.Request) {
	const prefix = "/secret/"
	if !strings.HasPrefix(r.URL.Path, prefix) || len(r.URL.Path) == len(prefix) {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	rawKey := r.URL.Path[len(prefix):]
	key, err := domain.ParseKey(rawKey)
	if err != nil {
		// Malformed keys are rejected before any network call.
		renderPage(w, h.SecretTmpl, SecretView{
			Phase:           phaseTerminal,
			Message:         "That link is not a valid secret link.",
			RedirectSeconds: h.redirectSeconds(),
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		renderPage(w, h.SecretTmpl, SecretView{Key: key.String(), Phase: phasePrompt})
	case http.MethodPost:
		h.retrieve(w, r, key)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// retrieve runs one retrieval flow attempt and renders its transition. Each
// POST is one attempt: the probe, or a passphrase retry when the form carries
// the prompted marker.
func (h *Handler) retrieve(w http.ResponseWriter, r *http.Request, key domain.SecretKey) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed form")
		return
	}
	passphrase := r.PostFormValue("passphrase")
	prompted := r.PostFormValue("prompted") == "1"
	if prompted && passphrase == "" {
		renderPage(w, h.SecretTmpl, SecretView{
			Key:     key.String(),
			Phase:   phasePassword,
			Message: "Enter the passphrase for this secret.",
		})
		return
	}

	cfg := flow.Config{
		Retriever: h.Backend,
		Recorder:  h.Stats,
		Logger:    h.Logger,
	}
	if prompted {
		// A known passphrase skips the probe; the call counts as
		// passphrase-bearing for classification.
		cfg.Passphrase = passphrase
	}
	attempt, err := flow.NewAttempt(key, cfg)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal")
		return
	}

	started := time.Now()
	tr, err := attempt.Start(r.Context())
	if h.Stats != nil {
		h.Stats.Observe("retrieval_duration_ms", time.Since(started).Milliseconds())
	}
	if err != nil {
		// The flow is created per request, so only cancellation by a dropped
		// connection lands here; there is no view left to update.
		return
	}

	switch tr.State {
	case flow.StateRevealed:
		renderPage(w, h.SecretTmpl, SecretView{
			Key:     key.String(),
			Phase:   phaseRevealed,
			Content: tr.Outcome.Content,
		})
	case flow.StateAwaitingPassphrase:
		renderPage(w, h.SecretTmpl, SecretView{
			Key:   key.String(),
			Phase: phasePassword,
		})
	default:
		renderPage(w, h.SecretTmpl, SecretView{
			Key:             key.String(),
			Phase:           phaseTerminal,
			Message:         tr.Outcome.Message,
			RedirectSeconds: h.redirectSeconds(),
		})
	}
}
