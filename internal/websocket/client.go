package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	maxReadBytes   = 1024
)

// Command is what clients send: {"action":"watch","poll_id":3}.
type Command struct {
	Action string `json:"action"`
	PollID int64  `json:"poll_id"`
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	userID int64
}

func NewClient(hub *Hub, conn *ws.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(maxReadBytes)
	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump applies watch commands until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handle(data)
	}
}

// handle applies one command. Malformed commands are ignored.
func (c *Client) handle(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.PollID <= 0 {
		c.hub.logger.Debug("ignored command", "user_id", c.userID, "error", err)
		return
	}
	switch cmd.Action {
	case "watch":
		c.hub.Watch(c, cmd.PollID)
	case "unwatch":
		c.hub.Unwatch(c, cmd.PollID)
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
