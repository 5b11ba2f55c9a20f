package engine

import (
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/google/uuid"
)

// MoveCursor records the cursor position and relays it to the rest of the
// space. Moves over the per-connection rate are dropped.
func (e *Engine) MoveCursor(connID uuid.UUID, x, y float64) error {
	if _, err := e.connection(connID); err != nil {
		return err
	}
	if !e.allowCursor(connID) {
		return nil
	}
	mv, err := e.state.MoveCursor(connID, x, y)
	if err != nil {
		return stateError(err)
	}
	if mv.SpaceID == "" {
		return nil
	}
	p := mv.Presence
	e.Broadcast(mv.SpaceID, protocol.CursorUpdate{
		UserID:    p.UserID,
		UserName:  p.Name,
		UserColor: p.Color,
		X:         x,
		Y:         y,
	}, p.UserID)
	return nil
}
