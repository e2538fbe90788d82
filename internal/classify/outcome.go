// Package classify turns the remote service's ambiguous failure channel into
// exactly one semantic outcome per retrieval attempt. The service answers 404
// for at least four distinct conditions (missing key, expired, consumed,
// wrong or absent passphrase) and its free-text message wording is the only
// available signal, so all message-pattern knowledge is centralized here; a
// wording change on the service side requires editing this package only.
package classify

// Kind enumerates the semantic outcomes of a retrieval attempt. Every attempt
// yields exactly one Kind.
type Kind int

const (
	// KindRevealed means the secret content was returned. It is never
	// produced by Classify (which only sees failures); the retrieval flow
	// constructs it on a successful call.
	KindRevealed Kind = iota + 1
	// KindPassphraseRequired means the probe failed in a way consistent with
	// a passphrase-protected secret; the user should be prompted. This is an
	// expected state transition, not an error.
	KindPassphraseRequired
	// KindInvalidPassphraseOrConsumed means a passphrase-bearing attempt
	// failed; the service cannot distinguish a wrong passphrase from a secret
	// consumed since the prompt, and neither can we.
	KindInvalidPassphraseOrConsumed
	// KindExpiredOrConsumed means the secret is gone: its TTL elapsed or it
	// was already viewed.
	KindExpiredOrConsumed
	// KindRateLimited means the service refused the attempt; advise waiting.
	KindRateLimited
	// KindTransportFailure means the service never answered (timeout or no
	// response); the user may retry manually.
	KindTransportFailure
	// KindUnknownFailure covers everything else, surfacing the service's own
	// message when it looks informative.
	KindUnknownFailure
)

// String returns a short stable name for logging and metrics.
func (k Kind) String() string {
	switch k {
	case KindRevealed:
		return "revealed"
	case KindPassphraseRequired:
		return "passphrase_required"
	case KindInvalidPassphraseOrConsumed:
		return "invalid_passphrase_or_consumed"
	case KindExpiredOrConsumed:
		return "expired_or_consumed"
	case KindRateLimited:
		return "rate_limited"
	case KindTransportFailure:
		return "transport_failure"
	case KindUnknownFailure:
		return "unknown_failure"
	default:
		return "invalid"
	}
}

// Terminal reports whether the outcome ends the attempt: no further network
// call may follow and the user is returned to the entry form after a delay.
// Transport failures are terminal for the attempt too; the user retries by
// explicitly starting over, never by an automatic re-issue.
func (k Kind) Terminal() bool {
	switch k {
	case KindInvalidPassphraseOrConsumed, KindExpiredOrConsumed, KindRateLimited, KindUnknownFailure, KindTransportFailure:
		return true
	default:
		return false
	}
}

// Outcome is the tagged result of one retrieval attempt. Content is set only
// when Kind is KindRevealed; Message carries user-facing text for every
// failure kind.
type Outcome struct {
	Kind    Kind
	Content string
	Message string
}

// Revealed constructs the success outcome. This is the only path by which
// secret content enters application state.
func Revealed(content string) Outcome {
	return Outcome{Kind: KindRevealed, Content: content}
}

// User-facing messages for outcomes whose service message is unusable. These
// deliberately claim no more certainty than the service provides.
const (
	msgExpiredOrConsumed = "This secret has expired or has already been viewed."
	msgInvalidOrConsumed = "The passphrase was incorrect, or the secret has already been viewed."
	msgRateLimited       = "Too many attempts. Wait a moment and try again."
	msgTransportFailure  = "Could not reach the secret service. Check your connection and try again."
	msgUnknownFailure    = "Something went wrong retrieving this secret."
)
