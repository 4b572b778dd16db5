package gateway

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"studyhall/contract"
	"studyhall/domain/event"
	"studyhall/errors"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is a middleman between one websocket connection and the room.
type Client struct {
	log          *slog.Logger
	hub          contract.IHub
	conn         *websocket.Conn
	sink         *Sink
	connectionID string
	limits       Limits
	maxFrameSize int64

	// ctx is the server's base context, not the request's. Dispatch must
	// outlive the HTTP handler that spawned this client.
	ctx context.Context
}

// readPump pumps frames from the websocket connection into the room. It
// runs until the connection drops, then deregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c.connectionID)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected connection close", "connectionID", c.connectionID, "error", err)
			}
			return
		}

		cmd, err := decodeCommand(raw, c.connectionID, c.limits)
		if err != nil {
			if goerrors.Is(err, errors.ErrInvalidInput) {
				c.log.Debug("Rejected frame", "connectionID", c.connectionID, "error", err)
				// Only the sender learns about its own bad frame
				_ = c.sink.Consume(c.ctx, event.OperationFailed{Reason: err.Error()})
				continue
			}
			c.log.Error("Unable to decode frame", "connectionID", c.connectionID, "error", err)
			continue
		}

		if err := c.hub.Dispatch(c.ctx, cmd, c.sink); err != nil {
			c.log.Warn("Room refused command", "connectionID", c.connectionID, "error", err)
			return
		}
	}
}

// writePump pumps events from the sink to the websocket connection and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.sink.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frame, err := encodeEvent(e)
			if err != nil {
				c.log.Error("Unable to encode event", "event", e.EventName(), "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
