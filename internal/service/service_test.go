package service

import (
	"testing"

	"github.com/termrack/backend/internal/session"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name  string
		count int
		wake  bool
		net   bool
		want  string
	}{
		{"empty", 0, false, false, "0 terminal sessions"},
		{"single", 1, false, false, "1 terminal session"},
		{"plural", 3, false, false, "3 terminal sessions"},
		{"wake", 2, true, false, "2 terminal sessions (wake lock held)"},
		{"net", 2, false, true, "2 terminal sessions (net lock held)"},
		{"both", 1, true, true, "1 terminal session (wake&net lock held)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			s.RefreshStatus(tt.count)
			if tt.wake {
				s.ToggleWakeLock()
			}
			if tt.net {
				s.ToggleNetLock()
			}
			if got := s.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeepAlive(t *testing.T) {
	s := New(nil)
	if s.KeepAlive() {
		t.Fatal("KeepAlive() = true with no locks held")
	}

	s.ToggleWakeLock()
	if !s.KeepAlive() {
		t.Error("KeepAlive() = false with wake lock held")
	}

	s.ToggleWakeLock()
	s.ToggleNetLock()
	if !s.KeepAlive() {
		t.Error("KeepAlive() = false with net lock held")
	}

	s.ToggleNetLock()
	if s.KeepAlive() {
		t.Error("KeepAlive() = true after all locks released")
	}
}

func TestToggleReturnsNewState(t *testing.T) {
	s := New(nil)
	if !s.ToggleWakeLock() {
		t.Error("first ToggleWakeLock() = false, want true")
	}
	if s.ToggleWakeLock() {
		t.Error("second ToggleWakeLock() = true, want false")
	}
	if !s.ToggleNetLock() {
		t.Error("first ToggleNetLock() = false, want true")
	}
}

func TestListenerPushesOnRelevantEvents(t *testing.T) {
	var pushed []string
	s := New(func(status string) { pushed = append(pushed, status) })

	s.OnSessionEvent(session.Event{Kind: session.SessionFinished})
	s.OnSessionEvent(session.Event{Kind: session.TitleChanged})
	s.OnSessionEvent(session.Event{Kind: session.Bell}) // not status-relevant

	if len(pushed) != 2 {
		t.Errorf("notify invoked %d times, want 2", len(pushed))
	}
}

func TestNotifyPushedOnChange(t *testing.T) {
	var pushed []string
	s := New(func(status string) { pushed = append(pushed, status) })

	s.RefreshStatus(2)
	s.ToggleWakeLock()

	if len(pushed) != 2 {
		t.Fatalf("notify invoked %d times, want 2", len(pushed))
	}
	if pushed[0] != "2 terminal sessions" {
		t.Errorf("pushed[0] = %q", pushed[0])
	}
	if pushed[1] != "2 terminal sessions (wake lock held)" {
		t.Errorf("pushed[1] = %q", pushed[1])
	}
}
