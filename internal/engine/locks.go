package engine

import (
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/google/uuid"
)

// Lock claims cardID for the connection's identity. Re-locking a card the
// identity already holds succeeds without a broadcast.
func (e *Engine) Lock(connID uuid.UUID, cardID string) error {
	if _, err := e.connection(connID); err != nil {
		return err
	}
	if cardID == "" {
		return newError(KindProtocol, "cardId is required", nil)
	}
	res, err := e.state.LockCard(connID, cardID)
	if err != nil {
		return stateError(err)
	}
	if !res.Acquired {
		return nil
	}
	e.fanout(res.Recipients, protocol.CardLocked{
		CardID:    cardID,
		UserID:    res.Owner.UserID,
		UserName:  res.Owner.Name,
		UserColor: res.Owner.Color,
	})
	return nil
}

// Unlock releases cardID if the connection's identity holds it. Unlocking a
// card held by someone else, or by no one, does nothing.
func (e *Engine) Unlock(connID uuid.UUID, cardID string) error {
	if _, err := e.connection(connID); err != nil {
		return err
	}
	if cardID == "" {
		return newError(KindProtocol, "cardId is required", nil)
	}
	rel, err := e.state.UnlockCard(connID, cardID)
	if err != nil {
		return stateError(err)
	}
	if rel == nil {
		return nil
	}
	e.fanout(rel.Recipients, protocol.CardUnlocked{CardID: cardID})
	return nil
}
