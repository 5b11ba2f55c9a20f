// Package directory is the read-only view of the identity and space
// collaborators. The collaboration core never writes through it.
package directory

import (
	"context"
	"errors"
	"slices"
)

var ErrNotFound = errors.New("directory: not found")

// User is the profile of an identity as known to the identity service.
type User struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Email   string `mapstructure:"email"`
	Picture string `mapstructure:"picture"`
}

// Space is a workspace record with its access rules.
type Space struct {
	ID       string   `mapstructure:"id"`
	Name     string   `mapstructure:"name"`
	OwnerID  string   `mapstructure:"ownerId"`
	Members  []string `mapstructure:"members"`
	IsPublic bool     `mapstructure:"isPublic"`
}

// Allows reports whether userID may occupy the space: owners, listed
// members and anyone for public spaces.
func (s *Space) Allows(userID string) bool {
	if s.IsPublic || s.OwnerID == userID {
		return true
	}
	return slices.Contains(s.Members, userID)
}

type Directory interface {
	FindUser(ctx context.Context, userID string) (*User, error)
	FindSpace(ctx context.Context, spaceID string) (*Space, error)
}
