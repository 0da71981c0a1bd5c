package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalEventKeepsOpaquePayload(t *testing.T) {
	raw := `{"sessionId":"s1","data":{"kind":"offer","sdp":"v=0\r\n","extra":[1,2,{"x":null}]}}`

	var ev SignalEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	assert.JSONEq(t, `{"kind":"offer","sdp":"v=0\r\n","extra":[1,2,{"x":null}]}`, string(ev.Data))

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestOpaqueEmptyMarshalsAsNull(t *testing.T) {
	out, err := json.Marshal(SignalEvent{SessionID: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"s1","data":null}`, string(out))
}

func TestNewAndError(t *testing.T) {
	msg, err := New(TypeJoinRequest, JoinRequestEvent{SessionID: "s1", StudentName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, TypeJoinRequest, msg.Type)
	assert.JSONEq(t, `{"sessionId":"s1","studentName":"Ann"}`, string(msg.Data))

	msg, err = New(TypePong, nil)
	require.NoError(t, err)
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(out))

	errMsg := Error("boom")
	assert.Equal(t, TypeError, errMsg.Type)
	assert.JSONEq(t, `{"message":"boom"}`, string(errMsg.Data))
}
