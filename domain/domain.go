package domain

import (
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"strconv"
)

const (
	TypeInit         = "init"
	TypeMicStatus    = "mic_status"
	TypeTextMessage  = "text_message"
	TypeClientList   = "client_list"
	TypeClientStatus = "client_status"

	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Inbound is the tagged control envelope read from a client. Payload fields
// stay raw so each handler enforces its own shape.
type Inbound struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId"`
	IsMicOn  json.RawMessage `json:"isMicOn"`
	Message  json.RawMessage `json:"message"`
}

// ClientInfo is one roster entry in a client_list envelope.
type ClientInfo struct {
	ClientID string `json:"clientId"`
	IsMicOn  bool   `json:"isMicOn"`
}

type ClientList struct {
	Type    string       `json:"type"`
	Clients []ClientInfo `json:"clients"`
}

type ClientStatus struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
}

type MicStatus struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	IsMicOn  bool   `json:"isMicOn"`
}

// TextMessage relays a chat payload verbatim, tagged with its sender.
type TextMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId"`
	Message  json.RawMessage `json:"message,omitempty"`
}

// SenderNum derives the 4-byte sender tag carried on voice frames. Numeric
// client ids map to their own value, anything else gets hashed.
func SenderNum(clientID string) uint32 {
	if n, err := strconv.ParseUint(clientID, 10, 32); err == nil {
		return uint32(n)
	}
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return h.Sum32()
}

// EncodeVoiceFrame prepends the big-endian sender tag to an opaque payload,
// letting receivers attribute audio without a JSON header.
func EncodeVoiceFrame(sender uint32, payload []byte) []byte {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, sender)
	copy(frame[4:], payload)
	return frame
}

// Connection is the transport handle referenced by a registry record. Send
// and SendVoice are best-effort: a closed or saturated peer reports an error
// and the caller moves on.
type Connection interface {
	Send(data []byte) error
	SendVoice(frame []byte) error
	Ping() error
	Open() bool
	Close() error
}

// Registry is the single source of truth for who is present.
type Registry interface {
	// Register binds an identity, overwriting any existing record for the
	// same id. The replaced connection, if any, is returned to the caller.
	Register(clientID string, sender uint32, conn Connection) (replaced Connection)
	// Unbind removes the record only while it still belongs to conn, so
	// teardown runs exactly once even when a close races the liveness sweep.
	Unbind(clientID string, conn Connection) bool
	Roster(excludeID string) []ClientInfo
	SetMic(clientID string, on bool) (changed, ok bool)
	MarkAlive(clientID string)
	BroadcastText(data []byte, excludeID string)
	BroadcastVoice(senderID string, payload []byte)
	Clients() int
}
