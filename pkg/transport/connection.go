package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by Send once the connection has been shut down.
	ErrClosed = errors.New("transport: connection closed")
	// ErrHeartbeatTimeout closes a connection that missed a liveness ping.
	ErrHeartbeatTimeout = errors.New("transport: heartbeat timeout")
	// ErrSuperseded closes a connection whose identity authenticated on a newer socket.
	ErrSuperseded = errors.New("transport: superseded by a newer connection")
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	// ReadTimeout bounds a single read. Zero disables it; liveness is the
	// heartbeat's job.
	ReadTimeout time.Duration
	SendBuffer  int
}

const defaultSendBuffer = 256

// Connection represents a single, thread-safe WebSocket connection.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	// alive is cleared by every heartbeat sweep and set again by a pong.
	alive   atomic.Bool
	started atomic.Bool

	// closing is closed as soon as Close is called; ctx is only cancelled
	// once the close handshake has finished.
	closing   chan struct{}
	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	connLogger := logger.With(slog.String("connID", id.String()))

	buf := config.SendBuffer
	if buf <= 0 {
		buf = defaultSendBuffer
	}

	c := &Connection{
		id:        id,
		conn:      conn,
		logger:    connLogger,
		config:    config,
		onMessage: onMessage,
		send:      make(chan []byte, buf),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       connCtx,
		cancel:    cancel,
		onClose:   onClose,
		wg:        wg,
	}
	c.alive.Store(true)
	return c
}

func (c *Connection) Run() {
	c.wg.Add(1)
	c.started.Store(true)
	go c.readPump()
	go c.writePump()

	c.logger.Info("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx, cancelRead := c.ctx, context.CancelFunc(func() {})
		if c.config.ReadTimeout > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			readErr = err
			cancelRead()
			return
		}
		// Ensure we are only handling text or binary messages.
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			cancelRead()
			continue
		}
		message, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			c.logger.Error("Failed to read message body", slog.Any("error", err))
			readErr = err
			return
		}
		// Any inbound traffic proves the peer is there.
		c.alive.Store(true)
		if c.isClosing() {
			// keep draining until the peer answers our close frame.
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error

	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, message); err != nil {
				writeErr = err
				return
			}
		case <-c.closing:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a message for the client. It is safe for concurrent use and
// reports ErrClosed instead of writing to a connection that is gone.
func (c *Connection) Send(message []byte) error {
	if c.isClosing() {
		return ErrClosed
	}
	select {
	case c.send <- message:
		return nil
	case <-c.closing:
		c.logger.Debug("Attempted to send on a closed connection")
		return ErrClosed
	}
}

func (c *Connection) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Ping sends a websocket ping and waits for the pong. The read pump must be
// running for the pong to be observed.
func (c *Connection) Ping(ctx context.Context) error {
	if c.conn == nil {
		return ErrClosed
	}
	return c.conn.Ping(ctx)
}

// MarkAlive records a successful liveness check.
func (c *Connection) MarkAlive() {
	c.alive.Store(true)
}

// ExpectPong clears the liveness flag and reports whether the previous
// check was answered.
func (c *Connection) ExpectPong() bool {
	return c.alive.Swap(false)
}

// Close shuts the connection down. onClose has run by the time it returns;
// the close handshake finishes in the background while the read pump is still
// reading, and Done is closed after it.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status, reason := closeStatusFor(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		close(c.closing)
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		if c.conn == nil {
			c.finish()
			return
		}
		go func() {
			if errors.Is(err, ErrHeartbeatTimeout) {
				c.conn.CloseNow()
			} else if cErr := c.conn.Close(status, reason); cErr != nil {
				c.logger.Debug("Close handshake did not complete", slog.Any("error", cErr))
			}
			c.finish()
		}()
	})
}

// finish releases the pumps and marks the connection terminated.
func (c *Connection) finish() {
	c.cancel()
	c.logger.Info("Connection closed")
	if c.started.Load() {
		c.wg.Done()
	}
	close(c.done)
}

func closeStatusFor(err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, ErrSuperseded):
		return websocket.StatusPolicyViolation, "superseded"
	case errors.Is(err, ErrHeartbeatTimeout):
		return websocket.StatusGoingAway, "heartbeat timeout"
	case websocket.CloseStatus(err) != -1:
		// the peer started the close; echo its status.
		return websocket.CloseStatus(err), ""
	default:
		return websocket.StatusNormalClosure, ""
	}
}

// returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}
