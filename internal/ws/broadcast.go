package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/termrack/backend/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the configured client
// limit is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
	// done is closed by RemoveClient, exactly once, under the broadcaster's
	// lock. send is never closed: broadcast goroutines may hold a stale
	// client pointer, and a send on a closed channel would panic.
	done chan struct{}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.b.RemoveClient(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// Broadcaster fans session events out to WebSocket clients. It subscribes to
// the registry's fanout as an ordinary listener; events arrive already
// serialized, and delivery to each client is a non-blocking channel send so a
// stalled client never holds up dispatch.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	registry *session.Registry
	status   func() string
	maxConns int
}

// NewBroadcaster builds a broadcaster over the registry. status supplies the
// host status line for snapshots; maxConns of 0 means unlimited clients.
func NewBroadcaster(registry *session.Registry, status func() string, maxConns int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		registry: registry,
		status:   status,
		maxConns: maxConns,
	}
}

// AddClient registers the connection and immediately queues a full snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	snapshot := WSMessage{
		Type:    MsgSnapshot,
		Payload: b.snapshotPayload(),
	}
	data, _ := json.Marshal(snapshot)

	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.done)
	}
	b.mu.Unlock()
}

// OnSessionEvent implements session.Listener.
func (b *Broadcaster) OnSessionEvent(ev session.Event) {
	payload := EventPayload{Kind: ev.Kind.String(), Text: ev.Text}
	if ev.Session != nil {
		payload.SessionID = ev.Session.ID()
		info := infoFor(ev.Session)
		payload.Session = &info
	}
	b.broadcast(WSMessage{Type: MsgEvent, Payload: payload})
}

// BroadcastStatus pushes the host status line to every client.
func (b *Broadcaster) BroadcastStatus(status string) {
	b.broadcast(WSMessage{Type: MsgStatus, Payload: StatusPayload{Status: status}})
}

func (b *Broadcaster) snapshotPayload() SnapshotPayload {
	sessions := b.registry.Sessions()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, infoFor(s))
	}
	p := SnapshotPayload{Sessions: infos}
	if b.status != nil {
		p.Status = b.status()
	}
	return p
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
