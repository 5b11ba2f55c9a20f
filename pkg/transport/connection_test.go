package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(onClose OnCloseHandler) *Connection {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var wg sync.WaitGroup
	return NewConnection(context.Background(), &wg, nil, ConnectionConfig{SendBuffer: 2}, nil, onClose, logger)
}

func TestSendQueuesUntilClosed(t *testing.T) {
	c := newTestConnection(nil)

	require.NoError(t, c.Send([]byte("one")))
	require.NoError(t, c.Send([]byte("two")))

	c.Close(nil)
	assert.ErrorIs(t, c.Send([]byte("three")), ErrClosed)
}

func TestCloseRunsCallbackOnce(t *testing.T) {
	calls := 0
	var gotID uuid.UUID
	var gotErr error
	c := newTestConnection(func(id uuid.UUID, err error) {
		calls++
		gotID = id
		gotErr = err
	})

	c.Close(ErrHeartbeatTimeout)
	c.Close(errors.New("second close"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, c.ID(), gotID)
	assert.ErrorIs(t, gotErr, ErrHeartbeatTimeout)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel not closed after Close")
	}
}

func TestLivenessFlag(t *testing.T) {
	c := newTestConnection(nil)

	// A fresh connection counts as alive for the first sweep.
	assert.True(t, c.ExpectPong())
	// No pong since the last sweep.
	assert.False(t, c.ExpectPong())

	c.MarkAlive()
	assert.True(t, c.ExpectPong())
}

func TestPingWithoutSocket(t *testing.T) {
	c := newTestConnection(nil)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClosed)
}

// socketPair serves one websocket, wraps the server end in a running
// Connection and returns it with the dialled client end.
func socketPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var wg sync.WaitGroup
	conns := make(chan *Connection, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := NewConnection(context.WithoutCancel(r.Context()), &wg, ws, ConnectionConfig{}, nil, nil, logger)
		c.Run()
		conns <- c
		<-c.Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.CloseNow() })

	select {
	case c := <-conns:
		return c, client
	case <-time.After(5 * time.Second):
		t.Fatal("server side never started")
		return nil, nil
	}
}

// readUntilClosed reads from the client until the connection ends.
func readUntilClosed(t *testing.T, client *websocket.Conn) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		if _, _, err := client.Read(ctx); err != nil {
			return err
		}
	}
}

func TestCloseSendsStatusToPeer(t *testing.T) {
	tests := []struct {
		name   string
		reason error
		status websocket.StatusCode
	}{
		{"superseded", ErrSuperseded, websocket.StatusPolicyViolation},
		{"shutdown", errors.New("graceful shutdown"), websocket.StatusNormalClosure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, client := socketPair(t)
			require.NoError(t, c.Send([]byte(`{"type":"hello"}`)))

			readErr := make(chan error, 1)
			go func() { readErr <- readUntilClosed(t, client) }()

			c.Close(tc.reason)
			assert.ErrorIs(t, c.Send([]byte("late")), ErrClosed)

			select {
			case err := <-readErr:
				assert.Equal(t, tc.status, websocket.CloseStatus(err))
			case <-time.After(5 * time.Second):
				t.Fatal("client never saw the close")
			}
			select {
			case <-c.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("close handshake did not finish promptly")
			}
		})
	}
}

func TestCloseDoesNotBlockOnSilentPeer(t *testing.T) {
	c, _ := socketPair(t)

	returned := make(chan struct{})
	go func() {
		c.Close(ErrSuperseded)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Close waited for a peer that is not reading")
	}
}

func TestHeartbeatTimeoutDropsWithoutHandshake(t *testing.T) {
	c, client := socketPair(t)

	c.Close(ErrHeartbeatTimeout)

	err := readUntilClosed(t, client)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(-1), websocket.CloseStatus(err))
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not terminated")
	}
}
