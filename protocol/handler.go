package protocol

import (
	"encoding/json"
	"log/slog"

	"voiceroom-relay-server/domain"
	"voiceroom-relay-server/metrics"
)

// Handler routes inbound messages for identified connections and drives the
// session lifecycle around the registry. Malformed traffic is logged and
// dropped; nothing here is ever surfaced back to the sender.
type Handler struct {
	registry domain.Registry
}

func NewHandler(r domain.Registry) *Handler {
	return &Handler{registry: r}
}

// HandleInit binds an identity to a fresh connection. It reports ok=false
// when the message is not a valid init, in which case the connection stays
// unidentified and the message is dropped.
//
// A duplicate id replaces the existing record and the old connection is
// closed, so a reconnecting client cannot leak its previous session.
func (h *Handler) HandleInit(conn domain.Connection, data []byte) (string, bool) {
	var msg domain.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid init", "error", err)
		metrics.Dropped.Inc()
		return "", false
	}
	if msg.Type != domain.TypeInit || msg.ClientID == "" {
		metrics.Dropped.Inc()
		return "", false
	}

	clientID := msg.ClientID
	if prev := h.registry.Register(clientID, domain.SenderNum(clientID), conn); prev != nil {
		prev.Close()
	}

	list, err := json.Marshal(domain.ClientList{
		Type:    domain.TypeClientList,
		Clients: h.registry.Roster(clientID),
	})
	if err == nil {
		conn.Send(list)
	}

	h.broadcastStatus(clientID, domain.StatusConnected, clientID)
	return clientID, true
}

// HandleText dispatches one control envelope from an identified client.
func (h *Handler) HandleText(clientID string, data []byte) {
	var msg domain.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "clientId", clientID, "error", err)
		metrics.Dropped.Inc()
		return
	}

	switch msg.Type {
	case domain.TypeMicStatus:
		var on bool
		if json.Unmarshal(msg.IsMicOn, &on) != nil {
			return
		}
		if _, ok := h.registry.SetMic(clientID, on); !ok {
			return
		}
		h.broadcastMic(clientID, on)

	case domain.TypeTextMessage:
		out, err := json.Marshal(domain.TextMessage{
			Type:     domain.TypeTextMessage,
			ClientID: clientID,
			Message:  msg.Message,
		})
		if err != nil {
			slog.Warn("marshal error", "clientId", clientID, "error", err)
			return
		}
		h.registry.BroadcastText(out, clientID)

	default:
		slog.Warn("unknown message type", "clientId", clientID, "type", msg.Type)
		metrics.Dropped.Inc()
	}
}

// HandleVoice relays an opaque binary frame. The first frame from a silent
// client flips its mic flag and announces the transition before the audio
// goes out; every frame is relayed either way.
func (h *Handler) HandleVoice(clientID string, payload []byte) {
	changed, ok := h.registry.SetMic(clientID, true)
	if !ok {
		return
	}
	if changed {
		h.broadcastMic(clientID, true)
	}
	h.registry.BroadcastVoice(clientID, payload)
}

// HandleClose runs teardown for a registered connection, whether the peer
// closed cleanly or the liveness sweep got there first. Unbind makes the
// disconnect announcement happen exactly once.
func (h *Handler) HandleClose(clientID string, conn domain.Connection) {
	if !h.registry.Unbind(clientID, conn) {
		return
	}
	h.broadcastStatus(clientID, domain.StatusDisconnected, "")
}

func (h *Handler) broadcastMic(clientID string, on bool) {
	out, err := json.Marshal(domain.MicStatus{
		Type:     domain.TypeMicStatus,
		ClientID: clientID,
		IsMicOn:  on,
	})
	if err != nil {
		slog.Warn("marshal error", "clientId", clientID, "error", err)
		return
	}
	h.registry.BroadcastText(out, clientID)
}

func (h *Handler) broadcastStatus(clientID, status, excludeID string) {
	out, err := json.Marshal(domain.ClientStatus{
		Type:     domain.TypeClientStatus,
		ClientID: clientID,
		Status:   status,
	})
	if err != nil {
		slog.Warn("marshal error", "clientId", clientID, "error", err)
		return
	}
	h.registry.BroadcastText(out, excludeID)
}
