package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// client owns one connection. Frames are queued on send and written by
// writePump so only one goroutine writes to conn.
type client struct {
	conn   *websocket.Conn
	info   ConnInfo
	send   chan []byte
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, info ConnInfo, cancel context.CancelFunc) *client {
	return &client{
		conn:   conn,
		info:   info,
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
	}
}

// enqueue queues a frame without blocking. A client that cannot keep up is
// disconnected.
func (c *client) enqueue(frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("websocket encode failed conn_id=%s: %v", c.info.ConnID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("websocket send buffer full conn_id=%s room_id=%s", c.info.ConnID, c.info.RoomID)
		c.closed = true
		close(c.send)
		c.cancel()
	}
}

// finish stops the writer once queued frames are flushed.
func (c *client) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("websocket write error conn_id=%s: %v", c.info.ConnID, err)
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// readPump delivers inbound frames to handle until the connection fails.
// It returns the error that ended the loop.
func (c *client) readPump(handle func(inboundFrame)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("websocket invalid frame conn_id=%s: %v", c.info.ConnID, err)
			c.enqueue(errorFrame("invalid frame"))
			continue
		}
		handle(frame)
	}
}
