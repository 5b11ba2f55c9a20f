// Package engine implements the collaboration handlers: the authentication
// handshake, space membership, card locks, cursor presence and the broadcast
// fan-out they share. All state lives behind a state.Manager; the engine
// performs the collaborator lookups and turns state transitions into
// messages.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/a-essam23/go-collab/internal/auth"
	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type Options struct {
	DefaultSpaceID   string
	DefaultSpaceName string
	// CursorRate is the sustained cursor:move rate per connection, per
	// second. Zero disables throttling.
	CursorRate  float64
	CursorBurst int
}

type Engine struct {
	logger   *slog.Logger
	state    state.Manager
	dir      directory.Directory
	verifier *auth.Verifier
	opts     Options
	now      func() time.Time

	limiterMu sync.Mutex
	limiters  map[uuid.UUID]*rate.Limiter
}

func New(logger *slog.Logger, stateManager state.Manager, dir directory.Directory, verifier *auth.Verifier, opts Options) *Engine {
	if opts.DefaultSpaceID == "" {
		opts.DefaultSpaceID = "public"
	}
	if opts.DefaultSpaceName == "" {
		opts.DefaultSpaceName = "Public"
	}
	if opts.CursorBurst <= 0 {
		opts.CursorBurst = 1
	}
	return &Engine{
		logger:   logger.With(slog.String("component", "engine")),
		state:    stateManager,
		dir:      dir,
		verifier: verifier,
		opts:     opts,
		now:      time.Now,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

// Disconnect runs the cleanup for a closed socket. It is safe to call more
// than once for the same connection.
func (e *Engine) Disconnect(connID uuid.UUID) {
	e.limiterMu.Lock()
	delete(e.limiters, connID)
	e.limiterMu.Unlock()

	dep, err := e.state.DeregisterConnection(connID)
	if err != nil {
		e.logger.Error("Failed to deregister connection", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	e.announceDeparture(dep)
}

// connection returns the registered connection or a protocol error when it
// has not authenticated yet.
func (e *Engine) connection(connID uuid.UUID) (*state.Connection, error) {
	conn, ok := e.state.GetConnection(connID)
	if !ok {
		return nil, newError(KindInternal, "connection not registered", state.ErrUnknownConnection)
	}
	if !conn.Authenticated() {
		return nil, newError(KindProtocol, "authenticate first", state.ErrNotAuthenticated)
	}
	return conn, nil
}

// stateError classifies errors coming back from the state manager.
func stateError(err error) error {
	var conflict *state.LockConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &conflict):
		name := conflict.Owner.Name
		if name == "" {
			name = conflict.Owner.UserID
		}
		return newError(KindConflict, "card is locked by "+name, err)
	case errors.Is(err, state.ErrNotAuthenticated):
		return newError(KindProtocol, "authenticate first", err)
	case errors.Is(err, state.ErrAlreadyAuthenticated):
		return newError(KindProtocol, "already authenticated", err)
	case errors.Is(err, state.ErrNotInSpace):
		return newError(KindProtocol, "join a space first", err)
	case errors.Is(err, state.ErrStaleConnection):
		return newError(KindProtocol, "connection superseded by a newer session", err)
	default:
		return newError(KindInternal, "internal error", err)
	}
}

func (e *Engine) allowCursor(connID uuid.UUID) bool {
	if e.opts.CursorRate <= 0 {
		return true
	}
	e.limiterMu.Lock()
	l, ok := e.limiters[connID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(e.opts.CursorRate), e.opts.CursorBurst)
		e.limiters[connID] = l
	}
	e.limiterMu.Unlock()
	return l.Allow()
}

// ctxErr reports a request whose connection context has ended. The error
// wraps context.Canceled, which the router drops without replying.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return newError(KindInternal, "request cancelled", err)
	}
	return nil
}
