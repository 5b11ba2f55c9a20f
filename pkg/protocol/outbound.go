package protocol

import (
	"encoding/json"
	"fmt"
)

// Server -> client message types.
const (
	TypeAuthSuccess  = "auth:success"
	TypeError        = "error"
	TypeSpaceJoined  = "space:joined"
	TypeUsersList    = "users:list"
	TypeUserJoin     = "user:join"
	TypeUserLeave    = "user:leave"
	TypeCursorUpdate = "cursor:update"
	TypeCardLocked   = "card:locked"
	TypeCardUnlocked = "card:unlocked"
)

// Outbound is any message the server sends. Encode adds the type tag.
type Outbound interface {
	Type() string
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type AuthSuccess struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type SpaceJoined struct {
	SpaceID  string `json:"spaceId"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
}

type UserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Picture string `json:"picture,omitempty"`
	Cursor  Cursor `json:"cursor"`
}

type UsersList struct {
	Users []UserInfo `json:"users"`
}

type UserJoin struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

type UserLeave struct {
	UserID string `json:"userId"`
}

type CursorUpdate struct {
	UserID    string  `json:"userId"`
	UserName  string  `json:"userName"`
	UserColor string  `json:"userColor"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type CardLocked struct {
	CardID    string `json:"cardId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

type CardUnlocked struct {
	CardID string `json:"cardId"`
}

func (AuthSuccess) Type() string  { return TypeAuthSuccess }
func (Error) Type() string        { return TypeError }
func (SpaceJoined) Type() string  { return TypeSpaceJoined }
func (UsersList) Type() string    { return TypeUsersList }
func (UserJoin) Type() string     { return TypeUserJoin }
func (UserLeave) Type() string    { return TypeUserLeave }
func (CursorUpdate) Type() string { return TypeCursorUpdate }
func (CardLocked) Type() string   { return TypeCardLocked }
func (CardUnlocked) Type() string { return TypeCardUnlocked }

// Encode marshals m as a flat envelope: {"type": m.Type(), ...fields}.
func Encode(m Outbound) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", m.Type(), err)
	}
	tag, err := json.Marshal(m.Type())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
