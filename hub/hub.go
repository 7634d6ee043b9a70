package hub

import (
	"log/slog"
	"sync"

	"voiceroom-relay-server/domain"
	"voiceroom-relay-server/metrics"
)

type client struct {
	conn   domain.Connection
	sender uint32
	micOn  bool
	alive  bool
}

// Hub owns the identifier-to-record mapping and the fan-out over it. Every
// mutation of presence, mic state, and liveness flags goes through its lock,
// so connection handlers and the sweeper never observe a torn record.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

func (h *Hub) Register(clientID string, sender uint32, conn domain.Connection) domain.Connection {
	h.mu.Lock()
	prev := h.clients[clientID]
	h.clients[clientID] = &client{conn: conn, sender: sender, alive: true}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.Clients.Set(float64(count))
	if prev != nil {
		slog.Info("client rebound", "clientId", clientID, "clients", count)
		return prev.conn
	}
	slog.Info("client registered", "clientId", clientID, "clients", count)
	return nil
}

// Unbind removes the record only if it still belongs to conn. A connection
// replaced by a later init must not tear down its successor's record.
func (h *Hub) Unbind(clientID string, conn domain.Connection) bool {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if !ok || c.conn != conn {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, clientID)
	count := len(h.clients)
	h.mu.Unlock()

	metrics.Clients.Set(float64(count))
	slog.Info("client removed", "clientId", clientID, "clients", count)
	return true
}

// Roster snapshots every registered client except excludeID.
func (h *Hub) Roster(excludeID string) []domain.ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roster := make([]domain.ClientInfo, 0, len(h.clients))
	for id, c := range h.clients {
		if id == excludeID {
			continue
		}
		roster = append(roster, domain.ClientInfo{ClientID: id, IsMicOn: c.micOn})
	}
	return roster
}

// SetMic updates the mic flag, reporting whether the value changed and
// whether the client is registered at all.
func (h *Hub) SetMic(clientID string, on bool) (changed, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false, false
	}
	changed = c.micOn != on
	c.micOn = on
	return changed, true
}

// MarkAlive records a pong from the client, deferring eviction by one sweep.
func (h *Hub) MarkAlive(clientID string) {
	h.mu.Lock()
	if c, ok := h.clients[clientID]; ok {
		c.alive = true
	}
	h.mu.Unlock()
}

// BroadcastText fans a control envelope out to every open connection except
// excludeID. Fire-and-forget: closed or saturated peers are skipped.
func (h *Hub) BroadcastText(data []byte, excludeID string) {
	slog.Debug("broadcast", "payload", string(data))

	h.mu.RLock()
	for id, c := range h.clients {
		if id == excludeID || !c.conn.Open() {
			continue
		}
		if err := c.conn.Send(data); err != nil {
			slog.Debug("send skipped", "clientId", id, "error", err)
		}
	}
	h.mu.RUnlock()

	metrics.Broadcasts.WithLabelValues("text").Inc()
}

// BroadcastVoice tags an opaque payload with the sender's frame number and
// fans it out to everyone else.
func (h *Hub) BroadcastVoice(senderID string, payload []byte) {
	h.mu.RLock()
	sender, ok := h.clients[senderID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	frame := domain.EncodeVoiceFrame(sender.sender, payload)
	for id, c := range h.clients {
		if id == senderID || !c.conn.Open() {
			continue
		}
		if err := c.conn.SendVoice(frame); err != nil {
			slog.Debug("send skipped", "clientId", id, "error", err)
		}
	}
	h.mu.RUnlock()

	metrics.Broadcasts.WithLabelValues("voice").Inc()
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
