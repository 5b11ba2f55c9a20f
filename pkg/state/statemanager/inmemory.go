package statemanager

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager holds all presence, membership and lock state of the
// process. One mutex guards every map so that composite transitions (a leave
// that also releases locks, a bind that displaces an older socket) are atomic.
type InMemoryManager struct {
	conns    map[uuid.UUID]*state.Connection
	sockets  map[string]uuid.UUID // identity -> bound connection
	presence map[string]*state.Presence
	members  map[string]string              // identity -> space
	spaces   map[string]map[string]struct{} // space -> identities
	locks    map[string]*state.Lock         // card -> lock

	palette state.Palette
	randN   func(n int) int
	now     func() time.Time

	mu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger, palette state.Palette) *InMemoryManager {
	if len(palette) == 0 {
		palette = state.DefaultPalette
	}
	return &InMemoryManager{
		conns:    make(map[uuid.UUID]*state.Connection),
		sockets:  make(map[string]uuid.UUID),
		presence: make(map[string]*state.Presence),
		members:  make(map[string]string),
		spaces:   make(map[string]map[string]struct{}),
		locks:    make(map[string]*state.Lock),
		palette:  palette,
		randN:    rand.IntN,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Lifecycle ---

func (m *InMemoryManager) RegisterConnection(t state.Transport, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, state.ErrConnectionExists
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		CreatedAt: m.now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	c := *newConn
	return &c, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (*state.Departure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// connection is already deregistered
		return nil, nil
	}
	delete(m.conns, connID)

	userID := conn.UserID
	if userID == "" || m.sockets[userID] != connID {
		// never authenticated, or superseded by a newer socket whose state
		// must survive.
		m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
		return nil, nil
	}

	dep := m.leaveLocked(userID)
	m.releaseStrayLocked(userID)
	delete(m.presence, userID)
	delete(m.sockets, userID)

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()), slog.String("userID", userID))
	return dep, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	if !ok {
		return nil, false
	}
	c := *conn
	return &c, true
}

func (m *InMemoryManager) AllTransports() []state.Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]state.Transport, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c.Transport)
	}
	return out
}

func (m *InMemoryManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

func (m *InMemoryManager) ConnectionCountByIP(ipAddr string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.conns {
		if c.IPAddress == ipAddr {
			n++
		}
	}
	return n
}

// --- Presence ---

func (m *InMemoryManager) Bind(connID uuid.UUID, profile state.Profile) (*state.Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, state.ErrUnknownConnection
	}
	if conn.Authenticated() {
		return nil, state.ErrAlreadyAuthenticated
	}

	userID := profile.ID
	binding := &state.Binding{}
	if oldID, bound := m.sockets[userID]; bound && oldID != connID {
		// The newer socket wins. Everything the old one held is released now,
		// so its own close later finds nothing to clean up.
		dep := m.leaveLocked(userID)
		m.releaseStrayLocked(userID)
		delete(m.presence, userID)
		if old, ok := m.conns[oldID]; ok {
			binding.Displaced = &state.Displaced{Transport: old.Transport, Departure: dep}
		}
		m.logger.Info("Identity rebound to a new connection",
			slog.String("userID", userID),
			slog.String("oldConnID", oldID.String()),
			slog.String("connID", connID.String()),
		)
	}

	inUse := make(map[string]bool, len(m.presence))
	for _, p := range m.presence {
		inUse[p.Color] = true
	}
	p := &state.Presence{
		UserID:       userID,
		Name:         profile.Name,
		Email:        profile.Email,
		Picture:      profile.Picture,
		Color:        m.palette.Pick(inUse, m.randN),
		LastActivity: m.now(),
	}
	m.presence[userID] = p
	m.sockets[userID] = connID
	conn.UserID = userID

	m.logger.Debug("Associated connection with user", slog.String("connID", connID.String()), slog.String("userID", userID), slog.String("color", p.Color))
	binding.Presence = *p
	return binding, nil
}

func (m *InMemoryManager) FindPresence(userID string) (state.Presence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presence[userID]
	if !ok {
		return state.Presence{}, false
	}
	return *p, true
}

func (m *InMemoryManager) MoveCursor(connID uuid.UUID, x, y float64) (*state.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.boundLocked(connID)
	if err != nil {
		return nil, err
	}
	p := m.presence[conn.UserID]
	p.Cursor = state.Cursor{X: x, Y: y}
	p.LastActivity = m.now()

	return &state.Movement{Presence: *p, SpaceID: m.members[conn.UserID]}, nil
}

// --- Space Membership ---

func (m *InMemoryManager) Join(connID uuid.UUID, spaceID string) (*state.Arrival, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.boundLocked(connID)
	if err != nil {
		return nil, err
	}
	userID := conn.UserID

	// never hold two memberships at once.
	prev := m.leaveLocked(userID)

	m.members[userID] = spaceID
	occupants, ok := m.spaces[spaceID]
	if !ok {
		occupants = make(map[string]struct{})
		m.spaces[spaceID] = occupants
	}
	occupants[userID] = struct{}{}

	p := m.presence[userID]
	p.LastActivity = m.now()

	m.logger.Debug("User joined space", slog.String("userID", userID), slog.String("spaceID", spaceID))
	return &state.Arrival{
		SpaceID:    spaceID,
		Presence:   *p,
		Previous:   prev,
		Roster:     m.rosterLocked(spaceID),
		Recipients: m.recipientsLocked(spaceID, userID),
	}, nil
}

func (m *InMemoryManager) Leave(connID uuid.UUID) (*state.Departure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.boundLocked(connID)
	if err != nil {
		return nil, err
	}
	return m.leaveLocked(conn.UserID), nil
}

func (m *InMemoryManager) CurrentSpace(userID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spaceID, ok := m.members[userID]
	return spaceID, ok
}

func (m *InMemoryManager) Roster(spaceID string) []state.Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rosterLocked(spaceID)
}

func (m *InMemoryManager) Recipients(spaceID, excludeUserID string) []state.Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recipientsLocked(spaceID, excludeUserID)
}

// --- Locks ---

func (m *InMemoryManager) LockCard(connID uuid.UUID, cardID string) (*state.LockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.boundLocked(connID)
	if err != nil {
		return nil, err
	}
	userID := conn.UserID
	spaceID, ok := m.members[userID]
	if !ok {
		return nil, state.ErrNotInSpace
	}
	owner := *m.presence[userID]

	if l, locked := m.locks[cardID]; locked {
		if l.OwnerID != userID {
			holder, ok := m.presence[l.OwnerID]
			if !ok {
				return nil, &state.LockConflictError{CardID: cardID, Owner: state.Presence{UserID: l.OwnerID}}
			}
			return nil, &state.LockConflictError{CardID: cardID, Owner: *holder}
		}
		return &state.LockResult{Lock: *l, Owner: owner, Acquired: false}, nil
	}

	l := &state.Lock{CardID: cardID, OwnerID: userID, SpaceID: spaceID, AcquiredAt: m.now()}
	m.locks[cardID] = l
	m.logger.Debug("Card locked", slog.String("cardID", cardID), slog.String("userID", userID), slog.String("spaceID", spaceID))
	return &state.LockResult{
		Lock:       *l,
		Owner:      owner,
		Acquired:   true,
		Recipients: m.recipientsLocked(spaceID, userID),
	}, nil
}

func (m *InMemoryManager) UnlockCard(connID uuid.UUID, cardID string) (*state.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.boundLocked(connID)
	if err != nil {
		return nil, err
	}
	l, ok := m.locks[cardID]
	if !ok || l.OwnerID != conn.UserID {
		return nil, nil
	}
	delete(m.locks, cardID)
	m.logger.Debug("Card unlocked", slog.String("cardID", cardID), slog.String("userID", conn.UserID))
	return &state.Release{
		CardID:     cardID,
		SpaceID:    l.SpaceID,
		Recipients: m.recipientsLocked(l.SpaceID, conn.UserID),
	}, nil
}

func (m *InMemoryManager) FindLock(cardID string) (state.Lock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locks[cardID]
	if !ok {
		return state.Lock{}, false
	}
	return *l, true
}

func (m *InMemoryManager) Locks() []state.Lock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]state.Lock, 0, len(m.locks))
	for _, l := range m.locks {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

// --- helpers; callers hold mu ---

func (m *InMemoryManager) boundLocked(connID uuid.UUID) (*state.Connection, error) {
	conn, ok := m.conns[connID]
	if !ok {
		return nil, state.ErrUnknownConnection
	}
	if !conn.Authenticated() {
		return nil, state.ErrNotAuthenticated
	}
	if m.sockets[conn.UserID] != connID {
		return nil, state.ErrStaleConnection
	}
	return conn, nil
}

func (m *InMemoryManager) leaveLocked(userID string) *state.Departure {
	spaceID, ok := m.members[userID]
	if !ok {
		return nil
	}
	delete(m.members, userID)
	if occupants, ok := m.spaces[spaceID]; ok {
		delete(occupants, userID)
		// For memory hygiene, remove the space index if it's now empty.
		if len(occupants) == 0 {
			delete(m.spaces, spaceID)
		}
	}

	var released []string
	for cardID, l := range m.locks {
		if l.OwnerID == userID && l.SpaceID == spaceID {
			delete(m.locks, cardID)
			released = append(released, cardID)
		}
	}
	slices.Sort(released)

	m.logger.Debug("User left space", slog.String("userID", userID), slog.String("spaceID", spaceID), slog.Int("releasedLocks", len(released)))
	return &state.Departure{
		UserID:        userID,
		SpaceID:       spaceID,
		ReleasedCards: released,
		Recipients:    m.recipientsLocked(spaceID, ""),
	}
}

// releaseStrayLocked drops locks the identity holds outside its current
// space. leaveLocked already releases everything in the space, so any hit
// here means an invariant slipped.
func (m *InMemoryManager) releaseStrayLocked(userID string) {
	for cardID, l := range m.locks {
		if l.OwnerID == userID {
			delete(m.locks, cardID)
			m.logger.Warn("Released stray lock", slog.String("cardID", cardID), slog.String("userID", userID), slog.String("spaceID", l.SpaceID))
		}
	}
}

func (m *InMemoryManager) recipientsLocked(spaceID, excludeUserID string) []state.Transport {
	occupants := m.spaces[spaceID]
	out := make([]state.Transport, 0, len(occupants))
	for userID := range occupants {
		if userID == excludeUserID {
			continue
		}
		connID, ok := m.sockets[userID]
		if !ok {
			continue
		}
		if conn, ok := m.conns[connID]; ok {
			out = append(out, conn.Transport)
		}
	}
	return out
}

func (m *InMemoryManager) rosterLocked(spaceID string) []state.Presence {
	occupants := m.spaces[spaceID]
	out := make([]state.Presence, 0, len(occupants))
	for userID := range occupants {
		if p, ok := m.presence[userID]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
