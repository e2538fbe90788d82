package classify

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/haukened/peek/internal/backend"
)

// verbatimThreshold is the minimum trimmed message length (in runes) for an
// unmatched 404 message to be surfaced verbatim as an unknown failure. Below
// it there is no evidence of anything, and the safe default applies.
const verbatimThreshold = 20

// Message fragments the service is known to use, lower-cased. This table is
// the single place wording is translated to semantics.
var (
	rateLimitMarkers = []string{"rate limited", "rate-limited", "too many requests"}
	goneMarkers      = []string{"expired", "consumed", "viewed", "no longer available"}
	// passphraseMarkers match both the explicit "unknown secret" answer a
	// protected secret gives to a bare probe and the generic wrong-passphrase
	// wordings. Which outcome they resolve to depends on whether this attempt
	// carried a passphrase.
	passphraseMarkers = []string{"unknown secret", "wrong", "passphrase", "password"}
)

// Classify maps a failed retrieval to exactly one Outcome. It is pure and
// never returns an ambiguous result: status first, then best-effort matching
// on the lower-cased message, then the caller's own knowledge of whether a
// passphrase was supplied on this attempt. It never panics and never returns
// an error; unmatched patterns degrade to safe defaults (logged by the caller
// via LogUnmatched, so this function stays side-effect-free).
func Classify(err error, passphraseSupplied bool) Outcome {
	if errors.Is(err, backend.ErrTimeout) || errors.Is(err, backend.ErrNoResponse) {
		return Outcome{Kind: KindTransportFailure, Message: msgTransportFailure}
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return Outcome{Kind: KindUnknownFailure, Message: msgUnknownFailure}
	}
	msg := strings.TrimSpace(apiErr.Message)
	lower := strings.ToLower(msg)

	switch {
	case apiErr.Status == http.StatusBadRequest:
		if containsAny(lower, "passphrase", "password") {
			return passphraseOutcome(passphraseSupplied)
		}
		return Outcome{Kind: KindUnknownFailure, Message: msgUnknownFailure}

	case apiErr.Status == http.StatusNotFound, apiErr.Status == http.StatusOK:
		// 200-with-embedded-error bodies share the 404 wording, so they are
		// classified identically.
		return classifyNotFound(msg, lower, passphraseSupplied)

	case apiErr.Status == http.StatusTooManyRequests:
		return Outcome{Kind: KindRateLimited, Message: msgRateLimited}

	default:
		// 5xx and anything unanticipated: server-side, not actionable.
		return Outcome{Kind: KindUnknownFailure, Message: msgUnknownFailure}
	}
}

// classifyNotFound disambiguates the overloaded 404 channel.
func classifyNotFound(msg, lower string, passphraseSupplied bool) Outcome {
	if containsAny(lower, rateLimitMarkers...) {
		return Outcome{Kind: KindRateLimited, Message: msgRateLimited}
	}
	if containsAny(lower, goneMarkers...) {
		return Outcome{Kind: KindExpiredOrConsumed, Message: msgExpiredOrConsumed}
	}
	if containsAny(lower, passphraseMarkers...) {
		return passphraseOutcome(passphraseSupplied)
	}
	if utf8.RuneCountInString(msg) > verbatimThreshold {
		// Unmatched but informative: surface the service's wording.
		return Outcome{Kind: KindUnknownFailure, Message: msg}
	}
	// Empty or terse message: assume the secret is gone rather than imply a
	// passphrase is needed with no evidence.
	return Outcome{Kind: KindExpiredOrConsumed, Message: msgExpiredOrConsumed}
}

// passphraseOutcome resolves passphrase-flavored failures by attempt history:
// the same service answer means "prompt the user" on a bare probe and
// "wrong passphrase or already consumed" once a passphrase was tried.
func passphraseOutcome(passphraseSupplied bool) Outcome {
	if passphraseSupplied {
		return Outcome{Kind: KindInvalidPassphraseOrConsumed, Message: msgInvalidOrConsumed}
	}
	return Outcome{Kind: KindPassphraseRequired}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// LogUnmatched records service messages that fell through to an unknown
// failure so new wordings are noticed instead of silently absorbed. Callers
// invoke it after Classify, keeping Classify itself pure. Only the service's
// own failure text is logged; it never contains secret content.
func LogUnmatched(log *slog.Logger, out Outcome, err error) {
	if out.Kind != KindUnknownFailure {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		log.Warn("unclassified backend failure", "status", apiErr.Status, "message", apiErr.Message)
		return
	}
	log.Warn("unclassified failure", "err", err)
}
