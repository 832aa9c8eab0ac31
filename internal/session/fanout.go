package session

import (
	"log"
	"runtime/debug"
	"sync"
)

// Fanout re-broadcasts every session lifecycle event to an ordered set of
// listeners. Delivery is synchronous and follows subscription order. A
// listener subscribed during a dispatch does not receive the in-progress
// event; a listener unsubscribed during a dispatch receives nothing further
// from that dispatch.
type Fanout struct {
	mu        sync.Mutex
	listeners []Listener
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe appends the listener. Subscribing an already-present listener is
// a no-op, preserving its original position.
func (f *Fanout) Subscribe(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.listeners {
		if existing == l {
			return
		}
	}
	f.listeners = append(f.listeners, l)
}

// Unsubscribe removes the listener, preserving the relative order of the
// rest. Unsubscribing an unknown listener is a no-op.
func (f *Fanout) Unsubscribe(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

// Dispatch delivers the event to every currently-subscribed listener in
// subscription order. Membership is re-checked before each call so that
// unsubscription mid-dispatch takes effect immediately.
func (f *Fanout) Dispatch(ev Event) {
	f.mu.Lock()
	snapshot := make([]Listener, len(f.listeners))
	copy(snapshot, f.listeners)
	f.mu.Unlock()

	for _, l := range snapshot {
		if !f.subscribed(l) {
			continue
		}
		safeNotify(l, ev)
	}
}

func (f *Fanout) subscribed(l Listener) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.listeners {
		if existing == l {
			return true
		}
	}
	return false
}

// safeNotify invokes a listener and recovers from panics so one misbehaving
// listener cannot block delivery to the rest.
func safeNotify(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session: listener panicked on %s: %v\n%s", ev.Kind, r, debug.Stack())
		}
	}()
	l.OnSessionEvent(ev)
}

// Len returns the number of subscribed listeners.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}
