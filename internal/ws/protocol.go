package ws

import (
	"time"

	"github.com/termrack/backend/internal/session"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgEvent    MessageType = "event"
	MsgStatus   MessageType = "status"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionInfo is the wire view of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	Path      string    `json:"path"`
	Cwd       string    `json:"cwd"`
	PID       int       `json:"pid"`
	Attached  bool      `json:"attached"`
	Finished  bool      `json:"finished"`
	ExitCode  int       `json:"exitCode"`
	CreatedAt time.Time `json:"createdAt"`
}

type SnapshotPayload struct {
	Sessions []SessionInfo `json:"sessions"`
	Status   string        `json:"status"`
}

type EventPayload struct {
	Kind      string       `json:"kind"`
	SessionID string       `json:"sessionId"`
	Text      string       `json:"text,omitempty"`
	Session   *SessionInfo `json:"session,omitempty"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

func infoFor(s *session.Session) SessionInfo {
	return SessionInfo{
		ID:        s.ID(),
		Name:      s.Name(),
		Title:     s.Title(),
		Path:      s.Path(),
		Cwd:       s.Cwd(),
		PID:       s.PID(),
		Attached:  s.Attached(),
		Finished:  s.Finished(),
		ExitCode:  s.ExitCode(),
		CreatedAt: s.CreatedAt(),
	}
}
