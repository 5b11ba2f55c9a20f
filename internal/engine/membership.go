package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/google/uuid"
)

// Join moves the connection's identity into spaceID. Any current membership
// is left first, even when the new space turns out to be unavailable.
func (e *Engine) Join(ctx context.Context, connID uuid.UUID, spaceID string) error {
	conn, err := e.connection(connID)
	if err != nil {
		return err
	}
	if spaceID == "" {
		return newError(KindProtocol, "spaceId is required", nil)
	}

	if err := e.Leave(connID); err != nil {
		return err
	}

	joined, err := e.Admit(ctx, spaceID, conn.UserID)
	if err != nil {
		return err
	}

	arrival, err := e.state.Join(connID, spaceID)
	if err != nil {
		return stateError(err)
	}
	// Only reachable when a concurrent join on the same identity slipped in.
	e.announceDeparture(arrival.Previous)

	p := arrival.Presence
	e.send(conn.Transport, joined)
	e.fanout(arrival.Recipients, protocol.UserJoin{
		UserID:    p.UserID,
		UserName:  p.Name,
		UserColor: p.Color,
		Timestamp: e.now().UnixMilli(),
	})
	e.send(conn.Transport, rosterMessage(arrival.Roster))

	e.logger.Info("User joined space", slog.String("userID", p.UserID), slog.String("spaceID", spaceID), slog.Int("occupants", len(arrival.Roster)))
	return nil
}

// Admit checks that userID may enter spaceID and returns the confirmation to
// send. The default space needs no lookup.
func (e *Engine) Admit(ctx context.Context, spaceID, userID string) (protocol.SpaceJoined, error) {
	if spaceID == e.opts.DefaultSpaceID {
		return protocol.SpaceJoined{SpaceID: spaceID, Name: e.opts.DefaultSpaceName, IsPublic: true}, nil
	}
	space, err := e.dir.FindSpace(ctx, spaceID)
	if errors.Is(err, directory.ErrNotFound) {
		return protocol.SpaceJoined{}, newError(KindNotFound, "space not found", err)
	}
	if err != nil {
		return protocol.SpaceJoined{}, newError(KindInternal, "space lookup failed", err)
	}
	if !space.Allows(userID) {
		return protocol.SpaceJoined{}, newError(KindAuthorization, "access denied", nil)
	}
	return protocol.SpaceJoined{SpaceID: space.ID, Name: space.Name, IsPublic: space.IsPublic}, nil
}

// Leave removes the connection's identity from its current space, releasing
// the locks it held there. Leaving while in no space is a no-op.
func (e *Engine) Leave(connID uuid.UUID) error {
	if _, err := e.connection(connID); err != nil {
		return err
	}
	dep, err := e.state.Leave(connID)
	if err != nil {
		return stateError(err)
	}
	if dep != nil {
		e.logger.Info("User left space", slog.String("userID", dep.UserID), slog.String("spaceID", dep.SpaceID), slog.Int("released", len(dep.ReleasedCards)))
	}
	e.announceDeparture(dep)
	return nil
}
