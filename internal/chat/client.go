package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	holding bool     // set while history loads; frames queue in held
	held    [][]byte
	send    chan []byte // Buffered channel of outbound frames.
}

func NewClient(hub *Hub, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	id := uuid.NewString()
	return &Client{
		hub:    hub,
		conn:   conn,
		id:     id,
		logger: hub.logger.With("conn_id", id),
		send:   make(chan []byte, buffer),
	}
}

// enqueue hands payload to the write pump without blocking.
func (c *Client) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: connection closed", ErrConnection)
	}
	if c.holding {
		// Leave room for the frame release puts in front.
		if len(c.held)+1 >= cap(c.send) {
			return fmt.Errorf("%w: send buffer full", ErrConnection)
		}
		c.held = append(c.held, payload)
		return nil
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", ErrConnection)
	}
}

// hold makes enqueue park frames until release is called.
func (c *Client) hold() {
	c.mu.Lock()
	c.holding = true
	c.mu.Unlock()
}

// release queues first (if any) ahead of every held frame and switches the
// client back to direct delivery.
func (c *Client) release(first []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frames := c.held
	c.held = nil
	c.holding = false
	if c.closed {
		return fmt.Errorf("%w: connection closed", ErrConnection)
	}
	if first != nil {
		frames = append([][]byte{first}, frames...)
	}
	for _, payload := range frames {
		select {
		case c.send <- payload:
		default:
			return fmt.Errorf("%w: send buffer full", ErrConnection)
		}
	}
	return nil
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump feeds every inbound frame to the hub, one at a time, until the
// connection fails. Frame errors are logged and the connection stays open.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if err := c.hub.HandleFrame(ctx, frame); err != nil {
			c.logFrameError(err)
		}
	}
}

// WritePump drains the send queue onto the socket and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per websocket frame; never batch.
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Write failed", "error", err)
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

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Frame exceeded read limit", "limit", maxMessageSize)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
		c.logger.Warn("Unexpected websocket close", "error", err)
	default:
		c.logger.Debug("Connection closed", "error", err)
	}
}

func (c *Client) logFrameError(err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		c.logger.Debug("Dropped privileged frame", "error", err)
	case errors.Is(err, ErrStorage):
		c.logger.Error("Frame abandoned", "error", err)
	default:
		c.logger.Warn("Dropped frame", "error", err)
	}
}
