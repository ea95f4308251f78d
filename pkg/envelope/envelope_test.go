package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyAndErrorNaming(t *testing.T) {
	req, err := NewRequest("join_chat", map[string]string{"chatId": "7"})
	require.NoError(t, err)

	reply, err := NewReply(req, map[string]string{"room": "chat_7"})
	require.NoError(t, err)
	assert.Equal(t, "join_chat.result", reply.Action)
	assert.Equal(t, req.ID, reply.ReplyTo)
	assert.NotEqual(t, req.ID, reply.ID)

	fail := NewError(req, 403, "not a member")
	assert.Equal(t, "join_chat.error", fail.Action)
	assert.Equal(t, 403, fail.Error.Code)

	bare := NewError(Envelope{}, 400, "invalid JSON")
	assert.Equal(t, "error", bare.Action)
}

func TestParseData(t *testing.T) {
	e, err := Unmarshal([]byte(`{"id":"1","action":"ping","data":{"chatId":"x"}}`))
	require.NoError(t, err)

	v, err := ParseData[map[string]string](e)
	require.NoError(t, err)
	assert.Equal(t, "x", v["chatId"])

	empty, err := ParseData[map[string]string](Envelope{})
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestResponseAlwaysCarriesMessage(t *testing.T) {
	raw, err := json.Marshal(OK("", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":""}`, string(raw))

	raw, err = json.Marshal(OK("comments retrieved", []int{1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"comments retrieved","data":[1]}`, string(raw))
}
