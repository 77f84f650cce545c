package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ltessier/courier/internal/adapters/metrics"
)

const (
	// sendQueueSize bounds the outbound queue. A client that cannot keep
	// up is disconnected instead of stalling the broadcaster.
	sendQueueSize = 256

	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second

	maxFrameSize = 64 * 1024
)

// Client is one websocket connection after a successful handshake. The
// read pump feeds inbound frames to the dispatcher one at a time; the
// write pump drains the bounded send queue.
type Client struct {
	userID    string
	sessionID string

	conn *websocket.Conn
	send chan []byte

	// rooms is owned by the hub and guarded by its lock.
	rooms map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn, userID, sessionID string) *Client {
	return &Client{
		userID:    userID,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		rooms:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

func (c *Client) UserID() string    { return c.userID }
func (c *Client) SessionID() string { return c.sessionID }

// SetUserID binds the client to a user after a deferred authentication.
// Must be called before the client is registered with the hub.
func (c *Client) SetUserID(userID string) { c.userID = userID }

// enqueue queues a frame for delivery. On overflow the client is closed;
// a slow consumer must never block the broadcast path.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		metrics.EventsDropped.Inc()
		metrics.ConnectionsDropped.WithLabelValues("slow_client").Inc()
		slog.Warn("ws: send queue full, dropping connection", "user_id", c.userID)
		c.close()
	}
}

// Send queues a frame addressed to this client only.
func (c *Client) Send(frame []byte) {
	c.enqueue(frame)
}

// Close tears down the connection from outside the pumps.
func (c *Client) Close() {
	c.close()
}

// close signals shutdown. The write pump drains queued frames and closes
// the underlying connection, so a farewell frame enqueued just before
// close still reaches the peer.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump consumes inbound frames until the connection dies, invoking
// handle for each one. It owns the read deadline and pong bookkeeping.
func (c *Client) ReadPump(handle func(frame []byte)) {
	defer c.close()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read error", "user_id", c.userID, "error", err)
			}
			return
		}
		handle(frame)
	}
}

// WritePump drains the send queue and keeps the connection alive with
// pings. It exits when the queue closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.drain()
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain flushes whatever is still queued at shutdown, best effort.
func (c *Client) drain() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if c.conn.WriteMessage(websocket.BinaryMessage, frame) != nil {
				return
			}
		default:
			return
		}
	}
}
