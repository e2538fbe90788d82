// Package flow contains the retrieval state machine. It orchestrates the
// two-phase retrieval against the remote service: a probe without a
// passphrase whose failure mode doubles as passphrase discovery, then an
// optional user-driven resubmission with one. It owns the single-in-flight
// discipline and the discard of results that arrive after cancellation, and
// it never retries on its own: the service destroys a secret on first read,
// so a blind retry after success would report a spurious consumption.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haukened/peek/internal/classify"
	"github.com/haukened/peek/internal/domain"
)

// DefaultRedirectDelay is how long a terminal message stays on screen before
// the user is returned to the entry form. A UX contract, not a retry timer.
const DefaultRedirectDelay = 3 * time.Second

// State enumerates the attempt lifecycle.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateAwaitingPassphrase
	StateRetrying
	StateRevealed
	StateTerminal
	StateCanceled
)

// String returns a short stable name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateAwaitingPassphrase:
		return "awaiting_passphrase"
	case StateRetrying:
		return "retrying"
	case StateRevealed:
		return "revealed"
	case StateTerminal:
		return "terminal"
	case StateCanceled:
		return "canceled"
	default:
		return "invalid"
	}
}

// Transition is the result of applying one outcome to the attempt.
type Transition struct {
	State   State
	Outcome classify.Outcome
}

// Retriever is the transport port the attempt calls. Satisfied by
// *backend.Client in production and faked in tests.
type Retriever interface {
	Retrieve(ctx context.Context, key domain.SecretKey, passphrase string) (string, error)
}

// Recorder is an optional metrics port; outcomes applied to the attempt are
// reported by kind name. Discarded (stale) results are not recorded.
type Recorder interface {
	RecordOutcome(kind string)
}

// Attempt state errors.
var (
	// ErrBusy means a retrieval call is already in flight; the submission is
	// ignored, never issued concurrently.
	ErrBusy = errors.New("retrieval already in flight")
	// ErrBadState means the requested operation is not legal from the current
	// state (e.g. a second Start, or a passphrase with none requested).
	ErrBadState = errors.New("operation not valid in current state")
	// ErrCanceled means the attempt was canceled while the call was pending;
	// the result was discarded without reaching any view.
	ErrCanceled = errors.New("attempt canceled")
)

// Config wires an Attempt's collaborators.
type Config struct {
	Retriever Retriever
	// Passphrase, when non-empty, is a passphrase already known at the entry
	// point. The first Start then skips the probe and goes straight to a
	// passphrase-bearing call. It is consumed (and cleared) by that call.
	Passphrase string
	// Scheduler and OnRedirect implement the deferred return to the entry
	// form after a terminal outcome. Scheduler may be nil when the presenting
	// view carries the delay itself (the web pages use a meta refresh).
	Scheduler     Scheduler
	OnRedirect    func()
	RedirectDelay time.Duration // defaults to DefaultRedirectDelay
	Recorder      Recorder
	Logger        *slog.Logger
}

// Attempt is the transient record of one retrieval flow for one secret key.
// It is safe for concurrent use; exactly one retrieval call may be in flight,
// and later submissions while one is pending are ignored.
type Attempt struct {
	mu         sync.Mutex
	key        domain.SecretKey
	state      State
	gen        uint64 // bumped by Cancel; in-flight completions check it
	inFlight   bool
	passphrase string // preloaded; cleared on first use
	preloaded  bool

	retriever     Retriever
	sched         Scheduler
	onRedirect    func()
	redirectDelay time.Duration
	recorder      Recorder
	log           *slog.Logger
}

// NewAttempt builds an Attempt for key. The key must already be valid;
// ErrInvalidKey is returned otherwise so no network call can ever be issued
// for a malformed key.
func NewAttempt(key domain.SecretKey, cfg Config) (*Attempt, error) {
	if !key.Valid() {
		return nil, domain.ErrInvalidKey
	}
	if cfg.Retriever == nil {
		return nil, errors.New("flow: retriever is required")
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = DefaultRedirectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Attempt{
		key:           key,
		state:         StateIdle,
		passphrase:    cfg.Passphrase,
		preloaded:     cfg.Passphrase != "",
		retriever:     cfg.Retriever,
		sched:         cfg.Scheduler,
		onRedirect:    cfg.OnRedirect,
		redirectDelay: cfg.RedirectDelay,
		recorder:      cfg.Recorder,
		log:           cfg.Logger,
	}, nil
}

// Key returns the secret key this attempt addresses.
func (a *Attempt) Key() domain.SecretKey { return a.key }

// State returns the current lifecycle state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start issues the initial retrieval. Without a preloaded passphrase this is
// the probe: a single call that both attempts retrieval and, via its failure
// mode, discovers whether a passphrase is required. With one preloaded the
// probe is skipped and the call counts as passphrase-bearing. Start is only
// legal from the idle state.
func (a *Attempt) Start(ctx context.Context) (Transition, error) {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return Transition{}, ErrBusy
	}
	if a.state != StateIdle {
		st := a.state
		a.mu.Unlock()
		return Transition{State: st}, ErrBadState
	}
	passphrase := ""
	supplied := false
	if a.preloaded {
		passphrase, supplied = a.passphrase, true
		a.passphrase, a.preloaded = "", false
		a.state = StateRetrying
	} else {
		a.state = StateProbing
	}
	a.inFlight = true
	gen := a.gen
	a.mu.Unlock()

	content, err := a.retriever.Retrieve(ctx, a.key, passphrase)
	return a.complete(gen, supplied, content, err)
}

// SubmitPassphrase re-issues the retrieval with a user-supplied passphrase.
// Only legal while the attempt is awaiting one; a submission while a call is
// pending returns ErrBusy and issues nothing.
func (a *Attempt) SubmitPassphrase(ctx context.Context, passphrase string) (Transition, error) {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		return Transition{}, ErrBusy
	}
	if a.state != StateAwaitingPassphrase {
		st := a.state
		a.mu.Unlock()
		return Transition{State: st}, ErrBadState
	}
	a.state = StateRetrying
	a.inFlight = true
	gen := a.gen
	a.mu.Unlock()

	content, err := a.retriever.Retrieve(ctx, a.key, passphrase)
	return a.complete(gen, true, content, err)
}

// Cancel abandons the attempt, e.g. when the user navigates away. A pending
// call's result, when it eventually arrives, is discarded instead of mutating
// a view that no longer corresponds to it.
func (a *Attempt) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateRevealed || a.state == StateTerminal {
		return // already finished; nothing pending to discard
	}
	a.gen++
	a.state = StateCanceled
}

// complete classifies the call result and applies it, unless the attempt was
// canceled while the call was pending, in which case the result (secret
// content included) is dropped on the floor.
func (a *Attempt) complete(gen uint64, passphraseSupplied bool, content string, err error) (Transition, error) {
	var out classify.Outcome
	if err == nil {
		out = classify.Revealed(content)
	} else {
		out = classify.Classify(err, passphraseSupplied)
		classify.LogUnmatched(a.log, out, err)
	}

	a.mu.Lock()
	a.inFlight = false
	if gen != a.gen {
		a.mu.Unlock()
		a.log.Debug("discarding stale retrieval result", "outcome", out.Kind.String())
		return Transition{State: StateCanceled}, ErrCanceled
	}
	switch out.Kind {
	case classify.KindRevealed:
		a.state = StateRevealed
	case classify.KindPassphraseRequired:
		a.state = StateAwaitingPassphrase
	default:
		a.state = StateTerminal
	}
	st := a.state
	a.mu.Unlock()

	if a.recorder != nil {
		a.recorder.RecordOutcome(out.Kind.String())
	}
	// Keys address live secrets, so they stay out of the logs.
	a.log.Info("retrieval outcome", "outcome", out.Kind.String(), "state", st.String())
	if st == StateTerminal && a.sched != nil && a.onRedirect != nil {
		a.sched.AfterFunc(a.redirectDelay, a.onRedirect)
	}
	return Transition{State: st, Outcome: out}, nil
}
