package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a-essam23/go-collab/internal/auth"
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/a-essam23/go-collab/pkg/transport"
	"github.com/google/uuid"
)

// Authenticate verifies token, binds the connection to the identity it names
// and places it in the default space. A newer socket for an identity that is
// already connected displaces the older one.
func (e *Engine) Authenticate(ctx context.Context, connID uuid.UUID, token string) error {
	conn, ok := e.state.GetConnection(connID)
	if !ok {
		return newError(KindInternal, "connection not registered", state.ErrUnknownConnection)
	}
	if conn.Authenticated() {
		return newError(KindProtocol, "already authenticated", state.ErrAlreadyAuthenticated)
	}

	user, err := e.verifier.Verify(ctx, token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return newError(KindAuthentication, "invalid or expired token", err)
	case errors.Is(err, auth.ErrUnknownIdentity):
		return newError(KindAuthentication, "user not found", err)
	case err != nil:
		return newError(KindInternal, "identity lookup failed", err)
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	binding, err := e.state.Bind(connID, state.Profile{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Picture: user.Picture,
	})
	if err != nil {
		return stateError(err)
	}

	if d := binding.Displaced; d != nil {
		e.announceDeparture(d.Departure)
		d.Transport.Close(transport.ErrSuperseded)
	}

	p := binding.Presence
	e.logger.Info("Connection authenticated", slog.String("connID", connID.String()), slog.String("userID", p.UserID))
	e.send(conn.Transport, protocol.AuthSuccess{UserID: p.UserID, UserName: p.Name, UserColor: p.Color})

	return e.Join(ctx, connID, e.opts.DefaultSpaceID)
}
