package session

import (
	"log"
	"os"
	"sync"

	"github.com/termrack/backend/internal/config"
	"github.com/termrack/backend/internal/shell"
)

// Registry is the process-wide, creation-ordered collection of terminal
// sessions. It is the event sink for every session it creates and re-
// dispatches session events through its fanout.
//
// One mutex serializes all registry mutation and all event dispatch, since
// session-originated events arrive on the sessions' own goroutines while
// create/remove arrive from the host. Listeners must not call back into
// registry mutators from inside a callback.
type Registry struct {
	cfg       config.SessionConfig
	home      string
	fanout    *Fanout
	keepAlive func() bool
	refresh   func(count int)

	mu       sync.Mutex
	sessions []*Session

	shutdown chan struct{}
}

// NewRegistry builds a registry. keepAlive reports whether an external
// condition (a held resource lock) requires the host to stay up even with no
// sessions; refresh is invoked with the session count after every mutation
// that changes it.
func NewRegistry(cfg config.SessionConfig, home string, fanout *Fanout, keepAlive func() bool, refresh func(count int)) *Registry {
	return &Registry{
		cfg:       cfg,
		home:      home,
		fanout:    fanout,
		keepAlive: keepAlive,
		refresh:   refresh,
		shutdown:  make(chan struct{}, 1),
	}
}

// Create launches a session from the resolved command and appends it. Every
// call yields a new session; nothing is deduplicated. The home directory is
// ensured to exist first (best-effort), and an empty cwd defaults to it.
func (r *Registry) Create(cmd shell.ResolvedCommand, cwd string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.home, 0700); err != nil {
		log.Printf("session: ensuring home dir %s: %v", r.home, err)
	}
	if cwd == "" {
		cwd = r.home
	}

	s, err := startSession(
		Command{Path: cmd.Path, Args: cmd.Args, Env: cmd.Env},
		cwd,
		cmd.DisplayName(),
		r.cfg.Cols, r.cfg.Rows, r.cfg.OutputBufferSize,
		r,
	)
	if err != nil {
		return nil, err
	}

	r.sessions = append(r.sessions, s)
	r.fanout.Dispatch(Event{Kind: SessionCreated, Session: s})
	r.notifyRefresh()
	return s, nil
}

// Sessions returns the tracked sessions in creation order.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Lookup finds a session by id, or nil.
func (r *Registry) Lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// FirstUnattached returns the earliest-created session no UI surface
// presents, or nil.
func (r *Registry) FirstUnattached() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if !s.Attached() {
			return s
		}
	}
	return nil
}

// Count returns the number of tracked sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Remove takes the session out of the registry by identity and returns its
// former index, or -1 if it was not tracked (the registry is untouched in
// that case). When the registry empties and no keep-alive condition holds,
// the host is signalled to shut down; otherwise SessionRemoved is dispatched
// and the status refreshed.
func (r *Registry) Remove(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, cur := range r.sessions {
		if cur == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}

	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)

	if len(r.sessions) == 0 && !r.keepAliveHeld() {
		r.signalShutdown()
	} else {
		r.fanout.Dispatch(Event{Kind: SessionRemoved, Session: s})
		r.notifyRefresh()
	}
	return idx
}

// Teardown finishes every tracked session (best-effort) and clears the
// collection. Idempotent.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.FinishIfRunning()
	}
	r.sessions = nil
}

// ShutdownSignal is signalled when the last session is removed with no
// keep-alive condition held.
func (r *Registry) ShutdownSignal() <-chan struct{} {
	return r.shutdown
}

// SessionEvent implements EventSink: session-originated events re-dispatch
// through the fanout under the registry's serialization.
func (r *Registry) SessionEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fanout.Dispatch(ev)
}

func (r *Registry) keepAliveHeld() bool {
	return r.keepAlive != nil && r.keepAlive()
}

func (r *Registry) signalShutdown() {
	select {
	case r.shutdown <- struct{}{}:
	default:
	}
}

func (r *Registry) notifyRefresh() {
	if r.refresh != nil {
		r.refresh(len(r.sessions))
	}
}
