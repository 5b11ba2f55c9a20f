// Package protocol defines the JSON envelopes exchanged over the collaboration
// socket. Every frame is an object with a "type" tag; inbound frames are
// decoded exactly once, here, into one of a closed set of typed messages.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Client -> server message types.
const (
	TypeAuth       = "auth"
	TypeSpaceJoin  = "space:join"
	TypeSpaceLeave = "space:leave"
	TypeCursorMove = "cursor:move"
	TypeCardLock   = "card:lock"
	TypeCardUnlock = "card:unlock"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
)

// Inbound is implemented only by the message types in this file.
type Inbound interface {
	Type() string
	inbound()
}

type Auth struct {
	Token string `json:"token"`
}

type JoinSpace struct {
	SpaceID string `json:"spaceId"`
}

type LeaveSpace struct{}

type CursorMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type LockCard struct {
	CardID string `json:"cardId"`
}

type UnlockCard struct {
	CardID string `json:"cardId"`
}

func (Auth) Type() string       { return TypeAuth }
func (JoinSpace) Type() string  { return TypeSpaceJoin }
func (LeaveSpace) Type() string { return TypeSpaceLeave }
func (CursorMove) Type() string { return TypeCursorMove }
func (LockCard) Type() string   { return TypeCardLock }
func (UnlockCard) Type() string { return TypeCardUnlock }

func (Auth) inbound()       {}
func (JoinSpace) inbound()  {}
func (LeaveSpace) inbound() {}
func (CursorMove) inbound() {}
func (LockCard) inbound()   {}
func (UnlockCard) inbound() {}

// DecodeError describes why a frame was rejected. It unwraps to ErrMalformed
// or ErrUnknownType.
type DecodeError struct {
	Type   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Type, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(typ, reason string) error {
	return &DecodeError{Type: typ, Reason: reason, Err: ErrMalformed}
}

// PeekType returns the envelope tag without decoding the payload. It is used
// for logging frames that fail to decode.
func PeekType(raw []byte) string {
	return gjson.GetBytes(raw, "type").String()
}

// Decode parses a raw frame into its typed message.
func Decode(raw []byte) (Inbound, error) {
	if !gjson.ValidBytes(raw) {
		return nil, malformed("", "invalid json")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, malformed("", "frame is not an object")
	}
	tag := root.Get("type")
	if tag.Type != gjson.String || tag.String() == "" {
		return nil, malformed("", "missing 'type' field")
	}

	switch typ := tag.String(); typ {
	case TypeAuth:
		var m Auth
		if err := decodeInto(raw, typ, &m); err != nil {
			return nil, err
		}
		if m.Token == "" {
			return nil, malformed(typ, "'token' is required")
		}
		return m, nil
	case TypeSpaceJoin:
		var m JoinSpace
		if err := decodeInto(raw, typ, &m); err != nil {
			return nil, err
		}
		if m.SpaceID == "" {
			return nil, malformed(typ, "'spaceId' is required")
		}
		return m, nil
	case TypeSpaceLeave:
		return LeaveSpace{}, nil
	case TypeCursorMove:
		x, y := root.Get("x"), root.Get("y")
		if x.Type != gjson.Number || y.Type != gjson.Number {
			return nil, malformed(typ, "'x' and 'y' must be numbers")
		}
		return CursorMove{X: x.Float(), Y: y.Float()}, nil
	case TypeCardLock:
		var m LockCard
		if err := decodeInto(raw, typ, &m); err != nil {
			return nil, err
		}
		if m.CardID == "" {
			return nil, malformed(typ, "'cardId' is required")
		}
		return m, nil
	case TypeCardUnlock:
		var m UnlockCard
		if err := decodeInto(raw, typ, &m); err != nil {
			return nil, err
		}
		if m.CardID == "" {
			return nil, malformed(typ, "'cardId' is required")
		}
		return m, nil
	default:
		return nil, &DecodeError{Type: typ, Reason: "not supported", Err: ErrUnknownType}
	}
}

func decodeInto(raw []byte, typ string, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return malformed(typ, err.Error())
	}
	return nil
}
