package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ControlHandler handles a control message read from a client.
type ControlHandler func(c *Client, msg auctionapi.Message)

// Client is one viewer's realtime connection. It follows at most one product at a time.
type Client struct {
	UserID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handle  ControlHandler
	logger  *zap.Logger
	mu      sync.Mutex
	closed  bool
	product string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, handle ControlHandler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		handle: handle,
		logger: logger,
	}
}

// Serve runs the write pump in the background and the read pump until the connection ends.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

// Send implements Subscriber. A full buffer counts as a failed send.
func (c *Client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Dropped implements Subscriber. Closing the send channel makes the write pump close the
// connection, which the viewer treats as a lost subscription.
func (c *Client) Dropped() {
	c.shutdown()
}

// Follow subscribes the client to productID with optional initial frames.
func (c *Client) Follow(productID string, initial ...[]byte) {
	c.mu.Lock()
	c.product = productID
	c.mu.Unlock()
	c.hub.Subscribe(c, productID, initial...)
}

// Product returns the product the client currently follows.
func (c *Client) Product() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.product
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("ws_read_error", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}

		var msg auctionapi.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("ws_bad_message", zap.String("user_id", c.UserID), zap.Error(err))
			continue
		}
		if c.handle != nil {
			c.handle(c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("ws_write_failed", zap.String("user_id", c.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
