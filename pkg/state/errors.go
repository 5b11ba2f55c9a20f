package state

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownConnection    = errors.New("connection is not registered")
	ErrConnectionExists     = errors.New("connection is already registered")
	ErrNotAuthenticated     = errors.New("connection is not authenticated")
	ErrAlreadyAuthenticated = errors.New("connection is already authenticated")
	ErrStaleConnection      = errors.New("connection is no longer bound to its identity")
	ErrNotInSpace           = errors.New("identity does not occupy a space")
)

// LockConflictError is returned when a card is held by another identity.
type LockConflictError struct {
	CardID string
	Owner  Presence
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("card '%s' is locked by %s", e.CardID, e.Owner.UserID)
}
