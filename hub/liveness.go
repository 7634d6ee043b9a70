package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"voiceroom-relay-server/domain"
	"voiceroom-relay-server/metrics"
)

// RunLiveness pings every registered client once per period and evicts those
// that never answered the previous ping. A client that goes silent survives
// at most two sweeps before its disconnect is announced.
func (h *Hub) RunLiveness(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) sweep() {
	type member struct {
		id    string
		conn  domain.Connection
		alive bool
	}

	h.mu.Lock()
	members := make([]member, 0, len(h.clients))
	for id, c := range h.clients {
		members = append(members, member{id: id, conn: c.conn, alive: c.alive})
		c.alive = false
	}
	h.mu.Unlock()

	for _, m := range members {
		if m.alive {
			if err := m.conn.Ping(); err != nil {
				slog.Debug("ping failed", "clientId", m.id, "error", err)
			}
			continue
		}
		h.evict(m.id, m.conn)
	}
}

// evict force-closes an unresponsive connection and runs the same teardown a
// clean close would. Unbind keeps the two paths from both announcing it.
func (h *Hub) evict(clientID string, conn domain.Connection) {
	slog.Warn("client unresponsive", "clientId", clientID)
	conn.Close()

	if !h.Unbind(clientID, conn) {
		return
	}
	metrics.Evictions.Inc()

	status, err := json.Marshal(domain.ClientStatus{
		Type:     domain.TypeClientStatus,
		ClientID: clientID,
		Status:   domain.StatusDisconnected,
	})
	if err != nil {
		slog.Warn("marshal error", "clientId", clientID, "error", err)
		return
	}
	h.BroadcastText(status, "")
}
