package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/engine"
)

// clientBuffer is the number of events queued per websocket client before
// further events are dropped for it.
const clientBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is the websocket form of an engine event.
type EventMessage struct {
	Kind      string `json:"kind"`
	Note      string `json:"note"`
	Pitch     string `json:"pitch"`
	MIDI      int    `json:"midi"`
	Mode      string `json:"mode"`
	Sustained bool   `json:"sustained"`
	Timestamp int64  `json:"timestamp"`
}

func newEventMessage(ev engine.Event) EventMessage {
	return EventMessage{
		Kind:      ev.Kind.String(),
		Note:      string(ev.Note.ID),
		Pitch:     ev.Note.Pitch,
		MIDI:      ev.Note.MIDI,
		Mode:      ev.Mode.String(),
		Sustained: ev.Sustained,
		Timestamp: ev.At.UnixMilli(),
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams engine events to websocket clients. It implements
// engine.Sink; Publish never blocks the frame loop, and a client that falls
// behind loses events.
type Hub struct {
	clients map[*client]struct{}
	mu      sync.RWMutex
	dropped int
	log     *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Publish queues ev for every connected client.
func (h *Hub) Publish(ev engine.Event) error {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return nil
	}

	msg, err := json.Marshal(newEventMessage(ev))
	if err != nil {
		h.mu.RUnlock()
		return err
	}

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.mu.Lock()
		h.dropped += dropped
		h.mu.Unlock()
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many client messages were dropped so far.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("event client connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go h.write(c, done)

	// Read until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	<-done
	conn.Close()
	h.log.Debug("event client disconnected", zap.String("remote", r.RemoteAddr))
}

func (h *Hub) write(c *client, done chan<- struct{}) {
	defer close(done)
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Drain so the reader side can finish.
			for range c.send {
			}
			return
		}
	}
}
