package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"group-chat/contract"
	"group-chat/domain"
	"group-chat/domain/event"
	"group-chat/errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Ensure *Connection implements the contract.Connection interface at compile time.
var _ contract.Connection = (*Connection)(nil)

// Connection is one upgraded client session, served by a read pump and a write pump.
// Frames are queued on a bounded buffer; the write pump is the only writer of the socket.
type Connection struct {
	id        domain.ConnectionID
	userID    domain.UserID
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
	config    Config
}

func NewConnection(conn *websocket.Conn, userID domain.UserID, log *slog.Logger, config Config) *Connection {
	id := domain.ConnectionID(uuid.NewString())
	if conn != nil {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	return &Connection{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, config.BufferSize),
		done:   make(chan struct{}),
		log:    log.With("connection_id", id, "user_id", userID),
		config: config,
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.id }

func (c *Connection) UserID() domain.UserID { return c.userID }

// Send queues the frame for the write pump. It waits for room in the buffer at most until
// ctx is done, and never waits for the client itself.
func (c *Connection) Send(ctx context.Context, envelope event.Envelope) error {
	frame, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", envelope.Event, err)
	}

	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errors.ErrSlowConsumer, ctx.Err())
	}
}

// Close stops both pumps. Safe to call several times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// readPump hands every inbound frame to handle, one at a time, until the socket fails or
// the connection is closed.
func (c *Connection) readPump(handle func(frame []byte)) {
	defer c.Close()

	c.setupReadConnection()
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		handle(frame)
	}
}

func (c *Connection) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.log.Debug("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})
}

func (c *Connection) logReadError(err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "max_bytes", c.config.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("Client disconnected")
	case stderrors.Is(err, io.EOF), stderrors.Is(err, net.ErrClosed):
		c.log.Debug("Connection closed", "error", err)
	default:
		c.log.Warn("Read error", "error", err)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what is already queued, so a frame sent right before Close is not lost.
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
