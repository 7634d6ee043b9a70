package hub

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceroom-relay-server/domain"
)

type mockConn struct {
	mu      sync.Mutex
	texts   [][]byte
	voices  [][]byte
	pings   int
	closed  bool
	sendErr error
}

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, data)
	return nil
}

func (m *mockConn) SendVoice(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.voices = append(m.voices, frame)
	return nil
}

func (m *mockConn) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings++
	return nil
}

func (m *mockConn) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getTexts() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts
}

func (m *mockConn) getVoices() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voices
}

func (m *mockConn) getPings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestHub_RegisterOverwrite(t *testing.T) {
	h := New()
	first := &mockConn{}
	second := &mockConn{}

	require.Nil(t, h.Register("alice", 1, first))
	require.Equal(t, 1, h.Clients())

	replaced := h.Register("alice", 1, second)

	assert.Same(t, first, replaced)
	assert.Equal(t, 1, h.Clients())
}

func TestHub_Unbind(t *testing.T) {
	h := New()
	bound := &mockConn{}
	stale := &mockConn{}
	h.Register("alice", 1, bound)

	assert.False(t, h.Unbind("alice", stale), "stale connection must not remove the record")
	assert.Equal(t, 1, h.Clients())

	assert.True(t, h.Unbind("alice", bound))
	assert.Equal(t, 0, h.Clients())

	assert.False(t, h.Unbind("alice", bound), "second unbind is a no-op")
}

func TestHub_BroadcastText(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Hub) map[string]*mockConn
		exclude      string
		wantReceived map[string]int
	}{
		{
			name: "excludes sender",
			setup: func(h *Hub) map[string]*mockConn {
				conns := map[string]*mockConn{"a": {}, "b": {}, "c": {}}
				for id, c := range conns {
					h.Register(id, 0, c)
				}
				return conns
			},
			exclude:      "a",
			wantReceived: map[string]int{"a": 0, "b": 1, "c": 1},
		},
		{
			name: "no exclusion reaches everyone",
			setup: func(h *Hub) map[string]*mockConn {
				conns := map[string]*mockConn{"a": {}, "b": {}}
				for id, c := range conns {
					h.Register(id, 0, c)
				}
				return conns
			},
			exclude:      "",
			wantReceived: map[string]int{"a": 1, "b": 1},
		},
		{
			name: "skips closed connection",
			setup: func(h *Hub) map[string]*mockConn {
				conns := map[string]*mockConn{"a": {}, "b": {closed: true}}
				for id, c := range conns {
					h.Register(id, 0, c)
				}
				return conns
			},
			exclude:      "",
			wantReceived: map[string]int{"a": 1, "b": 0},
		},
		{
			name: "send error does not stop the fan-out",
			setup: func(h *Hub) map[string]*mockConn {
				conns := map[string]*mockConn{"a": {sendErr: errors.New("full")}, "b": {}}
				for id, c := range conns {
					h.Register(id, 0, c)
				}
				return conns
			},
			exclude:      "",
			wantReceived: map[string]int{"a": 0, "b": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			conns := tt.setup(h)

			h.BroadcastText([]byte(`{"type":"test"}`), tt.exclude)

			for id, c := range conns {
				assert.Len(t, c.getTexts(), tt.wantReceived[id], "receiver %s", id)
			}
		})
	}
}

func TestHub_BroadcastVoice(t *testing.T) {
	h := New()
	sender := &mockConn{}
	peer1 := &mockConn{}
	peer2 := &mockConn{}
	h.Register("7", 7, sender)
	h.Register("8", 8, peer1)
	h.Register("9", 9, peer2)

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	h.BroadcastVoice("7", payload)

	want := append([]byte{0x00, 0x00, 0x00, 0x07}, payload...)
	require.Len(t, peer1.getVoices(), 1)
	require.Len(t, peer2.getVoices(), 1)
	assert.Equal(t, want, peer1.getVoices()[0])
	assert.Equal(t, want, peer2.getVoices()[0])
	assert.Empty(t, sender.getVoices())
}

func TestHub_BroadcastVoice_UnknownSender(t *testing.T) {
	h := New()
	peer := &mockConn{}
	h.Register("8", 8, peer)

	h.BroadcastVoice("ghost", []byte{0x01})

	assert.Empty(t, peer.getVoices())
}

func TestHub_SetMic(t *testing.T) {
	h := New()
	h.Register("alice", 1, &mockConn{})

	changed, ok := h.SetMic("alice", true)
	assert.True(t, ok)
	assert.True(t, changed)

	changed, ok = h.SetMic("alice", true)
	assert.True(t, ok)
	assert.False(t, changed, "same value is not a change")

	changed, ok = h.SetMic("alice", false)
	assert.True(t, ok)
	assert.True(t, changed)

	_, ok = h.SetMic("ghost", true)
	assert.False(t, ok)
}

func TestHub_Roster(t *testing.T) {
	h := New()
	h.Register("alice", 1, &mockConn{})
	h.Register("bob", 2, &mockConn{})
	h.SetMic("alice", true)

	roster := h.Roster("bob")
	require.Len(t, roster, 1)
	assert.Equal(t, domain.ClientInfo{ClientID: "alice", IsMicOn: true}, roster[0])

	assert.Len(t, h.Roster(""), 2)
	assert.Empty(t, New().Roster(""))
}
