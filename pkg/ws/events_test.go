package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("stream frame with chunk and sources", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"stream","chunk":"Hi the","sources":["a.pdf","b.pdf"]}`))
		require.NoError(t, err)
		assert.Equal(t, EventStream, ev.Type)
		assert.Equal(t, "Hi the", ev.Chunk)
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, ev.Sources)
	})

	t.Run("response frame", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"response","response":"Hi there!"}`))
		require.NoError(t, err)
		assert.Equal(t, EventResponse, ev.Type)
		assert.Equal(t, "Hi there!", ev.Response)
		assert.Nil(t, ev.Sources)
	})

	t.Run("error frame carries the message", func(t *testing.T) {
		ev, err := DecodeEvent([]byte(`{"type":"error","message":"deployment offline"}`))
		require.NoError(t, err)
		assert.Equal(t, "deployment offline", ev.Message)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":"telemetry"}`))
		assert.Error(t, err)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"type":`))
		assert.Error(t, err)
	})
}

func TestChatPayloadWireShape(t *testing.T) {
	id := int64(12)
	payload := NewChatPayload("Hello", [][2]string{{"q", "a"}}, &id)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","message":"Hello","history":[["q","a"]],"conversation_id":12}`, string(data))
}

func TestChatPayloadOmitsUnsetConversation(t *testing.T) {
	payload := NewChatPayload("Hello", nil, nil)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","message":"Hello","history":[]}`, string(data))
}
