// Package router decodes inbound frames and dispatches them to the
// collaboration handlers. Handler failures are reported back to the sender
// as error envelopes; the connection stays open.
package router

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a-essam23/go-collab/internal/engine"
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/google/uuid"
)

// Handlers is the set of operations a frame can trigger.
type Handlers interface {
	Authenticate(ctx context.Context, connID uuid.UUID, token string) error
	Join(ctx context.Context, connID uuid.UUID, spaceID string) error
	Leave(connID uuid.UUID) error
	MoveCursor(connID uuid.UUID, x, y float64) error
	Lock(connID uuid.UUID, cardID string) error
	Unlock(connID uuid.UUID, cardID string) error
	SendError(t state.Transport, err error)
}

var _ Handlers = (*engine.Engine)(nil)

type EventRouter struct {
	logger       *slog.Logger
	stateManager state.Manager
	handlers     Handlers
}

func NewEventRouter(logger *slog.Logger, stateManager state.Manager, handlers Handlers) *EventRouter {
	return &EventRouter{
		logger:       logger.With(slog.String("component", "event_router")),
		stateManager: stateManager,
		handlers:     handlers,
	}
}

// HandleMessage processes one frame. Frames from a single connection arrive
// sequentially from its read pump.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, raw []byte) {
	conn, ok := r.stateManager.GetConnection(connID)
	if !ok {
		r.logger.Warn("Message for unregistered connection", slog.String("connID", connID.String()))
		return
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Warn("Rejected client frame",
			slog.String("connID", connID.String()),
			slog.String("type", protocol.PeekType(raw)),
			slog.Any("error", err),
		)
		r.handlers.SendError(conn.Transport, decodeError(err))
		return
	}

	r.logger.Debug("Dispatching message", slog.String("type", msg.Type()), slog.String("connID", connID.String()))
	if err := r.dispatch(ctx, conn, msg); err != nil {
		r.report(conn, msg.Type(), err)
	}
}

func (r *EventRouter) dispatch(ctx context.Context, conn *state.Connection, msg protocol.Inbound) error {
	if _, isAuth := msg.(protocol.Auth); !isAuth && !conn.Authenticated() {
		return engine.ProtocolError("authenticate first", state.ErrNotAuthenticated)
	}

	switch m := msg.(type) {
	case protocol.Auth:
		return r.handlers.Authenticate(ctx, conn.ID, m.Token)
	case protocol.JoinSpace:
		return r.handlers.Join(ctx, conn.ID, m.SpaceID)
	case protocol.LeaveSpace:
		return r.handlers.Leave(conn.ID)
	case protocol.CursorMove:
		return r.handlers.MoveCursor(conn.ID, m.X, m.Y)
	case protocol.LockCard:
		return r.handlers.Lock(conn.ID, m.CardID)
	case protocol.UnlockCard:
		return r.handlers.Unlock(conn.ID, m.CardID)
	default:
		return engine.ProtocolError("unsupported message type", protocol.ErrUnknownType)
	}
}

func (r *EventRouter) report(conn *state.Connection, typ string, err error) {
	if errors.Is(err, state.ErrUnknownConnection) || errors.Is(err, context.Canceled) {
		// The socket went away mid-dispatch; nobody to tell.
		r.logger.Debug("Dropped result for closed connection", slog.String("type", typ), slog.String("connID", conn.ID.String()))
		return
	}
	attrs := []any{
		slog.String("type", typ),
		slog.String("connID", conn.ID.String()),
		slog.String("kind", engine.KindOf(err).String()),
		slog.Any("error", err),
	}
	if engine.KindOf(err) == engine.KindInternal {
		r.logger.Error("Handler failed", attrs...)
	} else {
		r.logger.Info("Request rejected", attrs...)
	}
	r.handlers.SendError(conn.Transport, err)
}

func decodeError(err error) error {
	msg := "malformed message"
	if errors.Is(err, protocol.ErrUnknownType) {
		msg = "unknown message type"
	}
	var de *protocol.DecodeError
	if errors.As(err, &de) && de.Type != "" {
		msg += " '" + de.Type + "'"
	}
	if de != nil && !errors.Is(err, protocol.ErrUnknownType) {
		msg += ": " + de.Reason
	}
	return engine.ProtocolError(msg, err)
}
