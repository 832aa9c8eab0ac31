package session

// Kind classifies session lifecycle events.
type Kind int

const (
	SessionCreated  Kind = iota // session constructed and appended to the registry
	SessionRemoved              // session removed from the registry
	SessionFinished             // session process exited
	TitleChanged                // display name or terminal title changed
	TextChanged                 // new output arrived
	ClipboardText               // session pushed text to the clipboard
	Bell                        // terminal bell
	ColorsChanged               // palette changed
	Attached                    // a UI surface attached to the session
	Detached                    // a UI surface detached from the session
)

var kindNames = map[Kind]string{
	SessionCreated:  "session_created",
	SessionRemoved:  "session_removed",
	SessionFinished: "session_finished",
	TitleChanged:    "title_changed",
	TextChanged:     "text_changed",
	ClipboardText:   "clipboard_text",
	Bell:            "bell",
	ColorsChanged:   "colors_changed",
	Attached:        "attached",
	Detached:        "detached",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event carries a lifecycle event to listeners. Text is only set for
// ClipboardText.
type Event struct {
	Kind    Kind
	Session *Session
	Text    string
}

// Listener receives session lifecycle events. Listeners are identified by
// interface equality for unsubscription, so register comparable values
// (pointers in practice).
type Listener interface {
	OnSessionEvent(Event)
}

// EventSink is where a session delivers its own events. The registry
// implements it and re-dispatches through the fanout.
type EventSink interface {
	SessionEvent(Event)
}
