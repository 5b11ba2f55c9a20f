package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownTypes(t *testing.T) {
	cases := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"auth","token":"abc"}`, Auth{Token: "abc"}},
		{`{"type":"space:join","spaceId":"s1"}`, JoinSpace{SpaceID: "s1"}},
		{`{"type":"space:leave"}`, LeaveSpace{}},
		{`{"type":"cursor:move","x":10.5,"y":-3}`, CursorMove{X: 10.5, Y: -3}},
		{`{"type":"card:lock","cardId":"c1"}`, LockCard{CardID: "c1"}},
		{`{"type":"card:unlock","cardId":"c1"}`, UnlockCard{CardID: "c1"}},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
		assert.Equal(t, tc.want.Type(), got.Type())
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	frames := []string{
		`not json`,
		`[1,2,3]`,
		`{"token":"abc"}`,
		`{"type":42}`,
		`{"type":"auth"}`,
		`{"type":"auth","token":7}`,
		`{"type":"space:join","spaceId":""}`,
		`{"type":"cursor:move","x":"1","y":2}`,
		`{"type":"cursor:move","x":1}`,
		`{"type":"card:lock"}`,
		`{"type":"card:unlock","cardId":""}`,
	}
	for _, raw := range frames {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"card:delete","cardId":"c1"}`))
	require.ErrorIs(t, err, ErrUnknownType)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "card:delete", de.Type)
}

func TestPeekType(t *testing.T) {
	assert.Equal(t, "card:lock", PeekType([]byte(`{"type":"card:lock","cardId":5}`)))
	assert.Equal(t, "", PeekType([]byte(`garbage`)))
}

func TestEncodeFlattensEnvelope(t *testing.T) {
	raw, err := Encode(CardLocked{CardID: "c1", UserID: "u1", UserName: "Ada", UserColor: "#FF6B6B"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, map[string]any{
		"type":      "card:locked",
		"cardId":    "c1",
		"userId":    "u1",
		"userName":  "Ada",
		"userColor": "#FF6B6B",
	}, got)
}

func TestEncodeEmptyBody(t *testing.T) {
	raw, err := Encode(UsersList{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"users:list","users":null}`, string(raw))

	raw, err = Encode(Error{Message: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"boom"}`, string(raw))
}
