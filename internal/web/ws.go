package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/sweeney/turnandrun/internal/dial"
	"github.com/sweeney/turnandrun/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	defaultSendBuf = 32
)

// Message types sent on /ws.
const (
	MsgStatus   = "status"
	MsgDispatch = "dispatch"
)

// Envelope is the wire format of websocket messages.
type Envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func encodeEnvelope(typ string, ts time.Time, data []byte) []byte {
	msg, _ := json.Marshal(Envelope{Type: typ, Ts: ts.UTC(), Data: data})
	return msg
}

// Hub tracks websocket clients and fans messages out to them. A client
// whose queue is full is disconnected rather than allowed to block others.
type Hub struct {
	logger  *log.Logger
	sendBuf int

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub; sendBuf <= 0 selects the default queue size.
func NewHub(logger *log.Logger, sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	return &Hub{
		logger:  logger,
		sendBuf: sendBuf,
		clients: make(map[*client]struct{}),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client without blocking.
func (h *Hub) Broadcast(msg []byte) {
	var slow []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.remove(c, "slow_client")
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected", "remote_addr", c.remoteAddr, "clients", n)
}

func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Debug("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

type client struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	once       sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump writes queued messages and pings until the queue is closed or
// a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards incoming frames and unregisters the client once the
// connection fails.
func (c *client) readPump(h *Hub) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			reason := "read_error"
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				reason = "closed"
			}
			h.remove(c, reason)
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection, sends the current status and then
// streams dispatches.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	c := &client{
		conn:       conn,
		send:       make(chan []byte, s.hub.sendBuf),
		remoteAddr: r.RemoteAddr,
	}
	snap := s.tracker.Snapshot()
	c.send <- encodeEnvelope(MsgStatus, snap.Now, status.FormatStatusEvent(snap, "", ""))
	s.hub.add(c)

	// the request context ends when this handler returns
	go c.writePump()
	go c.readPump(s.hub)
}

// Notify broadcasts a dispatch to websocket clients.
func (s *Server) Notify(d dial.Dispatch) error {
	data, err := json.Marshal(status.BuildDispatch(d))
	if err != nil {
		return err
	}
	s.hub.Broadcast(encodeEnvelope(MsgDispatch, d.Time, data))
	return nil
}
