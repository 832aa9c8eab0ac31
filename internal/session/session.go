package session

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// Command is the fully resolved launch for a session: executable path,
// argument vector (argv[0] is the process-name token, not the path), and
// environment.
type Command struct {
	Path string
	Args []string
	Env  []string
}

// Session is a single shell process bound to a pseudo-terminal, tracked by
// identity. The registry owns its membership; the session owns its process
// and I/O goroutines.
type Session struct {
	id        string
	createdAt time.Time
	path      string
	cwd       string

	cmd    *exec.Cmd
	ptmx   *os.File
	output *RingBuffer
	sink   EventSink

	mu       sync.RWMutex
	name     string
	title    string
	attached bool
	finished bool
	exitCode int
}

// startSession spawns the command on a new PTY and starts the output pump
// and exit watcher. Events are delivered to sink from the session's own
// goroutines.
func startSession(cmd Command, cwd, name string, cols, rows, bufSize int, sink EventSink) (*Session, error) {
	execCmd := exec.Command(cmd.Path)
	execCmd.Args = append([]string(nil), cmd.Args...)
	execCmd.Dir = cwd
	execCmd.Env = append([]string(nil), cmd.Env...)

	ptmx, err := pty.StartWithSize(execCmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("starting pty: %w", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		path:      cmd.Path,
		cwd:       cwd,
		cmd:       execCmd,
		ptmx:      ptmx,
		output:    NewRingBuffer(bufSize),
		sink:      sink,
		name:      name,
		exitCode:  -1,
	}

	go s.readLoop()
	go s.waitLoop()

	return s, nil
}

func (s *Session) readLoop() {
	sc := &outputScanner{
		onBell: func() { s.emit(Bell, "") },
		onTitle: func(title string) {
			s.mu.Lock()
			s.title = title
			s.mu.Unlock()
			s.emit(TitleChanged, "")
		},
		onClipboard: func(text string) { s.emit(ClipboardText, text) },
		onColors:    func() { s.emit(ColorsChanged, "") },
	}

	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.output.Write(buf[:n])
			sc.scan(buf[:n])
			s.emit(TextChanged, "")
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()

	s.mu.Lock()
	s.finished = true
	if err == nil {
		s.exitCode = 0
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		s.exitCode = exitErr.ExitCode()
	}
	s.mu.Unlock()

	s.ptmx.Close()
	s.emit(SessionFinished, "")
}

func (s *Session) emit(kind Kind, text string) {
	if s.sink == nil {
		return
	}
	s.sink.SessionEvent(Event{Kind: kind, Session: s, Text: text})
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Path() string         { return s.path }
func (s *Session) Cwd() string          { return s.cwd }

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName updates the display name and surfaces the change as a title event.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	changed := s.name != name
	s.name = name
	s.mu.Unlock()
	if changed {
		s.emit(TitleChanged, "")
	}
}

// Title is the terminal-reported title (OSC 0/2), distinct from the display
// name.
func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *Session) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

// Attach marks the session as presented by a UI surface. No-op when already
// attached.
func (s *Session) Attach() {
	s.mu.Lock()
	if s.attached {
		s.mu.Unlock()
		return
	}
	s.attached = true
	s.mu.Unlock()
	s.emit(Attached, "")
}

// Detach marks the session as no longer presented. No-op when not attached.
func (s *Session) Detach() {
	s.mu.Lock()
	if !s.attached {
		s.mu.Unlock()
		return
	}
	s.attached = false
	s.mu.Unlock()
	s.emit(Detached, "")
}

func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// ExitCode returns the process exit code, or -1 while running.
func (s *Session) ExitCode() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitCode
}

// FinishIfRunning kills the session process if it has not already exited.
// Finishing a finished session is a no-op. The exit watcher performs the
// bookkeeping and emits SessionFinished.
func (s *Session) FinishIfRunning() {
	s.mu.RLock()
	finished := s.finished
	s.mu.RUnlock()

	if finished || s.cmd == nil || s.cmd.Process == nil {
		return
	}
	s.cmd.Process.Kill()
}

// Write sends input to the session's PTY.
func (s *Session) Write(p []byte) (int, error) {
	if s.ptmx == nil {
		return 0, fmt.Errorf("session %s has no pty", s.id)
	}
	return s.ptmx.Write(p)
}

// Resize changes the PTY dimensions.
func (s *Session) Resize(cols, rows int) error {
	if s.ptmx == nil {
		return fmt.Errorf("session %s has no pty", s.id)
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Output returns a copy of the buffered output.
func (s *Session) Output() []byte {
	if s.output == nil {
		return nil
	}
	return s.output.Bytes()
}

// PID returns the session process id, or 0 when unavailable.
func (s *Session) PID() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
