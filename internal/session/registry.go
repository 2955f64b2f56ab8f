// Package session multiplexes concurrently active streaming generations.
// Inbound token/completion/error events from the native boundary are routed
// to per-session callbacks by correlation token.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solverd/internal/diag"
	"solverd/internal/native"
	"solverd/pkg/types"
)

// Callbacks deliver a session's stream to its owner. OnComplete receives the
// full accumulated text. Exactly one of OnComplete/OnError fires per session,
// and never after Cancel.
type Callbacks struct {
	OnToken    func(text string)
	OnComplete func(accumulated string)
	OnError    func(err error)
}

// Gate answers whether the model is in a state that admits new sessions.
type Gate interface {
	IsLoaded() bool
}

// Stopper is the slice of the native boundary used to halt a stream.
type Stopper interface {
	StopStreaming(correlation string) error
}

// session is the live state of one in-progress incremental generation.
// Owned exclusively by the Registry.
type session struct {
	token     string
	cfg       types.GenerationConfig
	cb        Callbacks
	createdAt time.Time

	// cbMu serializes callback delivery against close. Once closed is set
	// no further callback fires.
	cbMu   sync.Mutex
	closed bool
	buf    strings.Builder
	tokens int
}

// Registry maps correlation tokens to live sessions. At most one live session
// exists per token and a token is never reused after destruction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	gate     Gate
	stopper  Stopper
	diag     *diag.Log
	logger   zerolog.Logger
}

// Config encapsulates Registry construction. Gate and Stopper may be nil
// (no admission check, no boundary stop on cancel).
type Config struct {
	Gate    Gate
	Stopper Stopper
	Diag    *diag.Log
}

func New(cfg Config) *Registry {
	d := cfg.Diag
	if d == nil {
		d = diag.New(0)
	}
	return &Registry{
		sessions: make(map[string]*session),
		gate:     cfg.Gate,
		stopper:  cfg.Stopper,
		diag:     d,
		logger:   zerolog.Nop(),
	}
}

// SetLogger installs a structured logger for session activity.
func (r *Registry) SetLogger(l zerolog.Logger) { r.logger = l }

// notReadyError signals Open against a model that is not loaded.
type notReadyError struct{}

func (notReadyError) Error() string { return "cannot open session: model not loaded" }

// IsNotReady reports whether err came from opening a session too early.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// Open registers a new streaming session and returns its correlation token.
// Fails if the model is not loaded.
func (r *Registry) Open(cfg types.GenerationConfig, cb Callbacks) (string, error) {
	if r.gate != nil && !r.gate.IsLoaded() {
		return "", notReadyError{}
	}
	token := uuid.NewString()
	s := &session{token: token, cfg: cfg, cb: cb, createdAt: time.Now()}
	r.mu.Lock()
	r.sessions[token] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.logger.Debug().Str("token", token).Int("active", n).Msg("session opened")
	return token, nil
}

// DispatchToken appends a chunk to the session and fires its OnToken.
// Unknown tokens are dropped with a diagnostic; stale or duplicate delivery
// from the boundary must never surface to callers.
func (r *Registry) DispatchToken(token, chunk string) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	r.mu.Unlock()
	if !ok {
		r.dropUnknown("token", token)
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.closed {
		return
	}
	s.buf.WriteString(chunk)
	s.tokens++
	if s.cb.OnToken != nil {
		s.cb.OnToken(chunk)
	}
}

// DispatchCompletion destroys the session and then fires OnComplete with the
// accumulated text. Removal happens before the callback so no further tokens
// can reach a completed session.
func (r *Registry) DispatchCompletion(token string) {
	s := r.remove(token)
	if s == nil {
		r.dropUnknown("completion", token)
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	r.logger.Debug().Str("token", token).Int("tokens", s.tokens).
		Dur("dur", time.Since(s.createdAt)).Msg("session completed")
	if s.cb.OnComplete != nil {
		s.cb.OnComplete(s.buf.String())
	}
}

// DispatchError destroys the session and then fires OnError.
func (r *Registry) DispatchError(token string, err error) {
	s := r.remove(token)
	if s == nil {
		r.dropUnknown("error", token)
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	r.logger.Debug().Str("token", token).Err(err).Msg("session errored")
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}

// Cancel removes the local session immediately and best-effort asks the
// boundary to stop. Local state never waits on the remote stop handshake.
// Safe to call any number of times, including after natural completion; no
// callback fires on cancel, and a delivery in flight when Cancel is called
// finishes before Cancel returns.
func (r *Registry) Cancel(token string) {
	s := r.remove(token)
	if r.stopper != nil {
		_ = r.stopper.StopStreaming(token)
	}
	if s == nil {
		return
	}
	s.cbMu.Lock()
	s.closed = true
	s.cbMu.Unlock()
	r.logger.Debug().Str("token", token).Msg("session canceled")
}

// Route consumes boundary events until the channel closes or ctx is done,
// dispatching each to its session. Run it in its own goroutine.
func (r *Registry) Route(ctx context.Context, events <-chan native.TokenEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch {
			case ev.Err != nil:
				r.DispatchError(ev.Correlation, ev.Err)
			case ev.Done:
				if ev.Text != "" {
					r.DispatchToken(ev.Correlation, ev.Text)
				}
				r.DispatchCompletion(ev.Correlation)
			default:
				r.DispatchToken(ev.Correlation, ev.Text)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Active reports the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) remove(token string) *session {
	r.mu.Lock()
	s := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()
	return s
}

func (r *Registry) dropUnknown(kind, token string) {
	r.diag.Record("session_not_found", "dropped "+kind+" event for unknown session "+token)
	r.logger.Debug().Str("token", token).Str("event", kind).Msg("dropped event for unknown session")
}
