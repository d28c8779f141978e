package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClientMessageWireFormat(t *testing.T) {
	var msg chatClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"message":"hello","image_id":"https://cdn.example.com/img.png"}`), &msg))

	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "https://cdn.example.com/img.png", msg.ImageID)
	assert.Equal(t, "message", msg.kind())
}

func TestChatClientMessageKind(t *testing.T) {
	tests := []struct {
		name string
		msg  chatClientMessage
		want string
	}{
		{"text without explicit type", chatClientMessage{Message: "hi"}, "message"},
		{"image-only frame", chatClientMessage{ImageID: "https://cdn.example.com/a.png"}, "message"},
		{"audio-only frame", chatClientMessage{AudioID: "https://cdn.example.com/a.m4a"}, "message"},
		{"explicit message type", chatClientMessage{Type: "message", Message: "hi"}, "message"},
		{"ping", chatClientMessage{Type: "ping"}, "ping"},
		{"empty frame stays unknown", chatClientMessage{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.kind())
		})
	}
}
