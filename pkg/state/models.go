package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the sending side of a live socket.
type Transport interface {
	ID() uuid.UUID
	Send(msg []byte) error
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport // The actual connection for sending messages
	UserID    string    // Empty until the connection authenticates
	CreatedAt time.Time
}

// Authenticated reports whether an identity is bound to the connection.
func (c *Connection) Authenticated() bool {
	return c.UserID != ""
}

// Profile is what the identity service tells us about a user at bind time.
type Profile struct {
	ID      string
	Name    string
	Email   string
	Picture string
}

type Cursor struct {
	X float64
	Y float64
}

// Presence is the live record of an authenticated identity.
type Presence struct {
	UserID       string
	Name         string
	Email        string
	Color        string
	Picture      string
	Cursor       Cursor
	LastActivity time.Time
}

// Lock is an advisory single-owner claim on a card, scoped to the space the
// owner occupied when it was taken.
type Lock struct {
	CardID     string
	OwnerID    string
	SpaceID    string
	AcquiredAt time.Time
}

// Departure describes an identity leaving a space: the locks released with
// it and the occupants that remained, captured at the moment of leaving.
type Departure struct {
	UserID        string
	SpaceID       string
	ReleasedCards []string
	Recipients    []Transport
}

// Binding is the result of authenticating a connection.
type Binding struct {
	Presence Presence
	// Displaced is set when the identity was already bound to another socket.
	Displaced *Displaced
}

type Displaced struct {
	Transport Transport
	// Departure is nil when the displaced socket occupied no space.
	Departure *Departure
}

// Arrival is the result of joining a space.
type Arrival struct {
	SpaceID  string
	Presence Presence
	// Previous is the implicit leave that preceded the join, if any.
	Previous *Departure
	// Roster holds every occupant, the joiner included.
	Roster []Presence
	// Recipients are the other occupants' sockets.
	Recipients []Transport
}

// Movement is the result of a cursor update.
type Movement struct {
	Presence Presence
	// SpaceID is empty when the identity occupies no space.
	SpaceID string
}

// LockResult is the result of a successful lock request.
type LockResult struct {
	Lock  Lock
	Owner Presence
	// Acquired is false when the requester already held the lock.
	Acquired   bool
	Recipients []Transport
}

// Release is the result of an unlock that removed a lock.
type Release struct {
	CardID     string
	SpaceID    string
	Recipients []Transport
}
