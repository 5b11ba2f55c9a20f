package router_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/a-essam23/go-collab/internal/auth"
	"github.com/a-essam23/go-collab/internal/engine"
	"github.com/a-essam23/go-collab/internal/router"
	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/a-essam23/go-collab/pkg/state/statemanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const secret = "router-secret"

type sink struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames []gjson.Result
}

func (s *sink) ID() uuid.UUID { return s.id }
func (s *sink) Close(error)   {}

func (s *sink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, gjson.ParseBytes(msg))
	return nil
}

func (s *sink) last() gjson.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return gjson.Result{}
	}
	return s.frames[len(s.frames)-1]
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func setup(t *testing.T) (*router.EventRouter, *statemanager.InMemoryManager) {
	t.Helper()
	return setupWithLog(t, io.Discard)
}

func setupWithLog(t *testing.T, w io.Writer) (*router.EventRouter, *statemanager.InMemoryManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dir := directory.NewMemory([]directory.User{{ID: "u1", Name: "Uma"}}, nil)
	sm := statemanager.NewInMemoryManager(logger, state.DefaultPalette)
	eng := engine.New(logger, sm, dir, auth.NewVerifier(logger, secret, dir), engine.Options{})
	return router.NewEventRouter(logger, sm, eng), sm
}

func connect(t *testing.T, sm state.Manager) *sink {
	t.Helper()
	s := &sink{id: uuid.New()}
	_, err := sm.RegisterConnection(s, "127.0.0.1")
	require.NoError(t, err)
	return s
}

func TestRejectsFramesBeforeAuth(t *testing.T) {
	r, sm := setup(t)
	s := connect(t, sm)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"card:lock","cardId":"c1"}`))

	last := s.last()
	assert.Equal(t, "error", last.Get("type").String())
	assert.Equal(t, "protocol", last.Get("code").String())
	assert.Empty(t, sm.Locks())
}

func TestMalformedFrames(t *testing.T) {
	r, sm := setup(t)
	s := connect(t, sm)

	cases := map[string]struct {
		frame   string
		message string
	}{
		"not json":      {`{"type":`, "malformed message: invalid json"},
		"missing type":  {`{"token":"x"}`, "malformed message: missing 'type' field"},
		"unknown type":  {`{"type":"card:delete"}`, "unknown message type 'card:delete'"},
		"missing field": {`{"type":"auth"}`, "malformed message 'auth': 'token' is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r.HandleMessage(context.Background(), s.ID(), []byte(tc.frame))
			last := s.last()
			assert.Equal(t, "error", last.Get("type").String())
			assert.Equal(t, tc.message, last.Get("message").String())
			assert.Equal(t, "protocol", last.Get("code").String())
		})
	}
}

func TestAuthThenLock(t *testing.T) {
	r, sm := setup(t)
	s := connect(t, sm)
	tok, err := auth.Sign(secret, "u1", time.Hour)
	require.NoError(t, err)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"auth","token":"`+tok+`"}`))
	assert.Equal(t, "users:list", s.last().Get("type").String())

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"card:lock","cardId":"c1"}`))
	l, ok := sm.FindLock("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", l.OwnerID)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"cursor:move","x":1.5,"y":2}`))
	p, _ := sm.FindPresence("u1")
	assert.Equal(t, state.Cursor{X: 1.5, Y: 2}, p.Cursor)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"card:unlock","cardId":"c1"}`))
	assert.Empty(t, sm.Locks())

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"space:leave"}`))
	_, inSpace := sm.CurrentSpace("u1")
	assert.False(t, inSpace)
}

func TestHandlerErrorsBecomeEnvelopes(t *testing.T) {
	r, sm := setup(t)
	s := connect(t, sm)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"auth","token":"bogus"}`))

	last := s.last()
	assert.Equal(t, "error", last.Get("type").String())
	assert.Equal(t, "authentication", last.Get("code").String())
	conn, ok := sm.GetConnection(s.ID())
	require.True(t, ok)
	assert.False(t, conn.Authenticated())
}

func TestUnknownConnectionIsIgnored(t *testing.T) {
	r, sm := setup(t)
	s := connect(t, sm)

	r.HandleMessage(context.Background(), uuid.New(), []byte(`{"type":"space:leave"}`))
	assert.Zero(t, s.count())
}

func TestRejectedFrameLogsItsType(t *testing.T) {
	var logs bytes.Buffer
	r, sm := setupWithLog(t, &logs)
	s := connect(t, sm)

	r.HandleMessage(context.Background(), s.ID(), []byte(`{"type":"card:delete","cardId":"c1"}`))

	assert.Contains(t, logs.String(), `msg="Rejected client frame"`)
	assert.Contains(t, logs.String(), "type=card:delete")
}

func TestCancelledRequestIsDroppedQuietly(t *testing.T) {
	var logs bytes.Buffer
	r, sm := setupWithLog(t, &logs)
	s := connect(t, sm)
	tok, err := auth.Sign(secret, "u1", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.HandleMessage(ctx, s.ID(), []byte(`{"type":"auth","token":"`+tok+`"}`))

	assert.Zero(t, s.count(), "no reply for a connection that is going away")
	assert.NotContains(t, logs.String(), "level=ERROR")
	conn, ok := sm.GetConnection(s.ID())
	require.True(t, ok)
	assert.False(t, conn.Authenticated())
}
