package websocket

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voiceroom-relay-server/domain"
	"voiceroom-relay-server/protocol"
)

const (
	writeWait      = 10 * time.Second
	sendBuffer     = 256
	maxMessageSize = 1 << 20
)

type outbound struct {
	data   []byte
	binary bool
}

// Conn adapts a gorilla connection to the registry's Connection interface.
// The read pump owns identity binding: until a valid init arrives the
// connection has no client id and everything it sends is dropped.
type Conn struct {
	logID    string
	ws       *websocket.Conn
	send     chan outbound
	pings    chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	registry domain.Registry
	handler  *protocol.Handler

	// clientID is written and read only by the read pump (gorilla runs the
	// pong handler inside ReadMessage on the same goroutine).
	clientID string
}

func NewConn(logID string, ws *websocket.Conn, r domain.Registry, h *protocol.Handler) *Conn {
	return &Conn{
		logID:    logID,
		ws:       ws,
		send:     make(chan outbound, sendBuffer),
		pings:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		registry: r,
		handler:  h,
	}
}

func (c *Conn) Send(data []byte) error {
	return c.enqueue(outbound{data: data})
}

func (c *Conn) SendVoice(frame []byte) error {
	return c.enqueue(outbound{data: frame, binary: true})
}

func (c *Conn) enqueue(out outbound) error {
	if c.closed.Load() {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- out:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

// Ping requests a transport-level ping from the write pump. Coalescing into
// a single pending ping is fine: the sweeper only cares about one per period.
func (c *Conn) Ping() error {
	if c.closed.Load() {
		return websocket.ErrCloseSent
	}
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) Open() bool {
	return !c.closed.Load()
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	return c.ws.Close()
}

func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.closed.Store(true)
		close(c.done)
		c.ws.Close()
		if c.clientID != "" {
			c.handler.HandleClose(c.clientID, c)
		}
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		if c.clientID != "" {
			c.registry.MarkAlive(c.clientID)
		}
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "conn", c.logID, "error", err)
			}
			return
		}

		if c.clientID == "" {
			if msgType == websocket.TextMessage {
				if id, ok := c.handler.HandleInit(c, data); ok {
					c.clientID = id
					slog.Info("identity bound", "conn", c.logID, "clientId", id)
				}
			}
			continue
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handler.HandleVoice(c.clientID, data)
		case websocket.TextMessage:
			c.handler.HandleText(c.clientID, data)
		}
	}
}

func (c *Conn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case out := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			msgType := websocket.TextMessage
			if out.binary {
				msgType = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(msgType, out.data); err != nil {
				c.closed.Store(true)
				return
			}
		case <-c.pings:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closed.Store(true)
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
