// Package service tracks host-level state that outlives any one session: the
// wake and network keep-alive locks and the human-readable status line.
package service

import (
	"fmt"
	"log"
	"sync"

	"github.com/termrack/backend/internal/session"
)

// Service holds the keep-alive locks and the last reported session count.
// Toggling a lock or refreshing the count recomputes the status line and
// pushes it to the optional notify callback.
type Service struct {
	mu       sync.Mutex
	wakeLock bool
	netLock  bool
	count    int

	notify func(status string)
}

func New(notify func(status string)) *Service {
	return &Service{notify: notify}
}

// KeepAlive reports whether any lock is held. The registry consults this when
// deciding whether an empty registry should shut the host down.
func (s *Service) KeepAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeLock || s.netLock
}

// ToggleWakeLock flips the wake lock and returns the new state.
func (s *Service) ToggleWakeLock() bool {
	s.mu.Lock()
	s.wakeLock = !s.wakeLock
	held := s.wakeLock
	status := s.statusLocked()
	s.mu.Unlock()

	log.Printf("service: wake lock held=%v", held)
	s.push(status)
	return held
}

// ToggleNetLock flips the network lock and returns the new state.
func (s *Service) ToggleNetLock() bool {
	s.mu.Lock()
	s.netLock = !s.netLock
	held := s.netLock
	status := s.statusLocked()
	s.mu.Unlock()

	log.Printf("service: net lock held=%v", held)
	s.push(status)
	return held
}

// WakeLockHeld reports the wake lock state.
func (s *Service) WakeLockHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wakeLock
}

// NetLockHeld reports the network lock state.
func (s *Service) NetLockHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.netLock
}

// RefreshStatus records the current session count and pushes the recomputed
// status line.
func (s *Service) RefreshStatus(count int) {
	s.mu.Lock()
	s.count = count
	status := s.statusLocked()
	s.mu.Unlock()
	s.push(status)
}

// Status returns the current status line, e.g. "3 terminal sessions (wake
// lock held)".
func (s *Service) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Service) statusLocked() string {
	noun := "terminal sessions"
	if s.count == 1 {
		noun = "terminal session"
	}
	status := fmt.Sprintf("%d %s", s.count, noun)

	switch {
	case s.wakeLock && s.netLock:
		status += " (wake&net lock held)"
	case s.wakeLock:
		status += " (wake lock held)"
	case s.netLock:
		status += " (net lock held)"
	}
	return status
}

// OnSessionEvent implements session.Listener. Events that change what the
// status surface shows trigger a re-push; count changes arrive separately
// through RefreshStatus.
func (s *Service) OnSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.SessionFinished, session.TitleChanged:
		s.mu.Lock()
		status := s.statusLocked()
		s.mu.Unlock()
		s.push(status)
	}
}

func (s *Service) push(status string) {
	if s.notify != nil {
		s.notify(status)
	}
}
