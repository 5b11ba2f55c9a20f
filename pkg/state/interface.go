package state

import (
	"github.com/google/uuid"
)

// Manager owns presence, space membership and the lock table. Every method
// is one atomic transition; the result structs carry the recipient sets the
// caller needs for broadcasting, captured inside that transition.
//
// Methods that take a connection ID fail with ErrStaleConnection when the
// connection is no longer the socket bound to its identity.
type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Transport, ipAddr string) (*Connection, error)
	// DeregisterConnection runs disconnect cleanup. It is idempotent; the
	// returned departure is nil when there was nothing to leave.
	DeregisterConnection(connID uuid.UUID) (*Departure, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	AllTransports() []Transport
	ConnectionCount() int
	ConnectionCountByIP(ipAddr string) int

	// --- Presence ---
	// Bind authenticates a connection as profile.ID, assigns a color and
	// creates the presence entry.
	Bind(connID uuid.UUID, profile Profile) (*Binding, error)
	FindPresence(userID string) (Presence, bool)
	MoveCursor(connID uuid.UUID, x, y float64) (*Movement, error)

	// --- Space Membership ---
	// Join moves the connection's identity into spaceID, leaving any
	// current space first. Access checks are the caller's job.
	Join(connID uuid.UUID, spaceID string) (*Arrival, error)
	// Leave returns nil when the identity occupies no space.
	Leave(connID uuid.UUID) (*Departure, error)
	CurrentSpace(userID string) (string, bool)
	Roster(spaceID string) []Presence
	Recipients(spaceID, excludeUserID string) []Transport

	// --- Locks ---
	LockCard(connID uuid.UUID, cardID string) (*LockResult, error)
	// UnlockCard returns nil when nothing was released.
	UnlockCard(connID uuid.UUID, cardID string) (*Release, error)
	FindLock(cardID string) (Lock, bool)
	Locks() []Lock
}
