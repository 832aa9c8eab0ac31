package session

import (
	"bytes"
	"os"
	"testing"
	"time"
)

// chanSink collects session events across goroutines.
type chanSink struct {
	ch chan Event
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan Event, 64)}
}

func (s *chanSink) SessionEvent(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *chanSink) waitFor(t *testing.T, kind Kind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func startCat(t *testing.T, sink EventSink) *Session {
	t.Helper()
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("/bin/cat not available")
	}
	s, err := startSession(
		Command{Path: "/bin/cat", Args: []string{"cat"}, Env: []string{"TERM=dumb"}},
		t.TempDir(), "cat", 80, 24, 4096, sink,
	)
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	t.Cleanup(s.FinishIfRunning)
	return s
}

func TestSessionEchoesOutput(t *testing.T) {
	sink := newChanSink()
	s := startCat(t, sink)

	if _, err := s.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sink.waitFor(t, TextChanged)
	deadline := time.Now().Add(5 * time.Second)
	for !bytes.Contains(s.Output(), []byte("hello")) {
		if time.Now().After(deadline) {
			t.Fatalf("output %q never contained hello", s.Output())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionFinish(t *testing.T) {
	sink := newChanSink()
	s := startCat(t, sink)

	if s.Finished() {
		t.Fatal("session reported finished immediately after start")
	}
	if s.PID() == 0 {
		t.Fatal("PID() = 0 for a running session")
	}

	s.FinishIfRunning()
	ev := sink.waitFor(t, SessionFinished)
	if ev.Session != s {
		t.Error("finished event carries the wrong session")
	}
	if !s.Finished() {
		t.Error("Finished() = false after the finished event")
	}

	// Finishing again is a no-op.
	s.FinishIfRunning()
}

func TestSessionExitCode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	sink := newChanSink()
	s, err := startSession(
		Command{Path: "/bin/sh", Args: []string{"sh", "-c", "exit 3"}, Env: []string{"TERM=dumb"}},
		t.TempDir(), "sh", 80, 24, 4096, sink,
	)
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}

	sink.waitFor(t, SessionFinished)
	if code := s.ExitCode(); code != 3 {
		t.Errorf("ExitCode() = %d, want 3", code)
	}
}

func TestSessionAttachDetach(t *testing.T) {
	sink := newChanSink()
	s := &Session{id: "x", sink: sink}

	s.Attach()
	s.Attach() // second attach emits nothing
	s.Detach()
	s.Detach()

	ev := sink.waitFor(t, Attached)
	if ev.Session != s {
		t.Error("attached event carries the wrong session")
	}
	sink.waitFor(t, Detached)

	select {
	case ev := <-sink.ch:
		t.Errorf("unexpected extra event %s", ev.Kind)
	default:
	}
}

func TestSessionSetName(t *testing.T) {
	sink := newChanSink()
	s := &Session{id: "x", sink: sink}

	s.SetName("build")
	s.SetName("build") // unchanged, no event

	if s.Name() != "build" {
		t.Errorf("Name() = %q, want build", s.Name())
	}
	sink.waitFor(t, TitleChanged)
	select {
	case ev := <-sink.ch:
		t.Errorf("unexpected extra event %s", ev.Kind)
	default:
	}
}

func TestSessionTitleFromOutput(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	sink := newChanSink()
	s, err := startSession(
		Command{Path: "/bin/sh", Args: []string{"sh", "-c", `printf '\033]0;mytitle\007'; sleep 1`}, Env: []string{"TERM=dumb"}},
		t.TempDir(), "sh", 80, 24, 4096, sink,
	)
	if err != nil {
		t.Fatalf("startSession: %v", err)
	}
	t.Cleanup(s.FinishIfRunning)

	sink.waitFor(t, TitleChanged)
	if s.Title() != "mytitle" {
		t.Errorf("Title() = %q, want mytitle", s.Title())
	}
}
