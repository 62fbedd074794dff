package hub

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is one entry of the verification event feed. Payloads carry
// session ids and counters only, never challenge ground truth.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Code      string `json:"code,omitempty"`
	At        int64  `json:"at"`
}

const (
	EventSessionCreated  = "session-created"
	EventChallengeIssued = "challenge-issued"
	EventStateTransition = "state-transition"
	EventVerifyFailed    = "verification-failed"
	EventVerifyCompleted = "verification-completed"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one monitoring subscriber, scoped to a client id.
type Connection struct {
	ClientID string
	Writer   Writer
}

// Hub fans verification events out to the subscribers of a client id.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.ClientID] == nil {
		h.connections[conn.ClientID] = make(map[*Connection]struct{})
	}
	h.connections[conn.ClientID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.ClientID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.ClientID)
	}
}

// Publish delivers an event to every subscriber of the client id.
// Failed writers are closed and evicted.
func (h *Hub) Publish(clientID string, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("event feed: marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	set := h.connections[clientID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
