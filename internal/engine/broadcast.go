package engine

import (
	"errors"
	"log/slog"

	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/a-essam23/go-collab/pkg/transport"
)

// Broadcast sends msg to every socket currently in spaceID except the one
// bound to excludeUserID. The occupant set is read at call time.
func (e *Engine) Broadcast(spaceID string, msg protocol.Outbound, excludeUserID string) {
	e.fanout(e.state.Recipients(spaceID, excludeUserID), msg)
}

// SendRoster sends the occupants of spaceID to a single socket.
func (e *Engine) SendRoster(t state.Transport, spaceID string) {
	e.send(t, e.Roster(spaceID))
}

// Roster snapshots the occupants of spaceID.
func (e *Engine) Roster(spaceID string) protocol.UsersList {
	return rosterMessage(e.state.Roster(spaceID))
}

func rosterMessage(roster []state.Presence) protocol.UsersList {
	users := make([]protocol.UserInfo, 0, len(roster))
	for _, p := range roster {
		users = append(users, protocol.UserInfo{
			ID:      p.UserID,
			Name:    p.Name,
			Color:   p.Color,
			Picture: p.Picture,
			Cursor:  protocol.Cursor{X: p.Cursor.X, Y: p.Cursor.Y},
		})
	}
	return protocol.UsersList{Users: users}
}

func (e *Engine) fanout(recipients []state.Transport, msg protocol.Outbound) {
	if len(recipients) == 0 {
		return
	}
	raw, err := protocol.Encode(msg)
	if err != nil {
		e.logger.Error("Failed to encode broadcast", slog.String("type", msg.Type()), slog.Any("error", err))
		return
	}
	skipped := 0
	for _, t := range recipients {
		if err := t.Send(raw); err != nil {
			skipped++
		}
	}
	e.logger.Debug("Broadcast", slog.String("type", msg.Type()), slog.Int("recipients", len(recipients)), slog.Int("skipped", skipped))
}

// send delivers msg to one socket. A socket that has already closed is
// skipped silently.
func (e *Engine) send(t state.Transport, msg protocol.Outbound) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		e.logger.Error("Failed to encode message", slog.String("type", msg.Type()), slog.Any("error", err))
		return
	}
	if err := t.Send(raw); err != nil && !errors.Is(err, transport.ErrClosed) {
		e.logger.Warn("Failed to send message", slog.String("type", msg.Type()), slog.Any("error", err))
	}
}

// SendError surfaces err to the client as an error envelope.
func (e *Engine) SendError(t state.Transport, err error) {
	kind := KindOf(err)
	message := "internal error"
	var ee *Error
	if errors.As(err, &ee) && kind != KindInternal {
		message = ee.Message
	}
	e.send(t, protocol.Error{Message: message, Code: kind.Code()})
}

func (e *Engine) announceDeparture(dep *state.Departure) {
	if dep == nil {
		return
	}
	e.fanout(dep.Recipients, protocol.UserLeave{UserID: dep.UserID})
	for _, cardID := range dep.ReleasedCards {
		e.fanout(dep.Recipients, protocol.CardUnlocked{CardID: cardID})
	}
}
