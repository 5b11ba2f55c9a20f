package directory

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a Directory backed by maps, seeded from configuration. It serves
// development setups and tests.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]User
	spaces map[string]Space
}

// compile-time check to ensure Memory implements Directory.
var _ Directory = (*Memory)(nil)

func NewMemory(users []User, spaces []Space) *Memory {
	m := &Memory{
		users:  make(map[string]User, len(users)),
		spaces: make(map[string]Space, len(spaces)),
	}
	for _, u := range users {
		m.PutUser(u)
	}
	for _, s := range spaces {
		m.PutSpace(s)
	}
	return m
}

func (m *Memory) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutSpace(s Space) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Members = append([]string(nil), s.Members...)
	m.spaces[s.ID] = s
}

func (m *Memory) FindUser(ctx context.Context, userID string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user '%s': %w", userID, ErrNotFound)
	}
	return &u, nil
}

func (m *Memory) FindSpace(ctx context.Context, spaceID string) (*Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.spaces[spaceID]
	if !ok {
		return nil, fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	s.Members = append([]string(nil), s.Members...)
	return &s, nil
}
