package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage_KnownEvents(t *testing.T) {
	// Arrange: 每种入站事件各取一条有效样本
	cases := []struct {
		name string
		raw  string
		want ClientCommand
	}{
		{
			name: "auth",
			raw:  `{"type":"auth","data":{"room":"R1","password":"pw","name":"alice"}}`,
			want: &AuthCommand{Room: "R1", Password: "pw", Name: "alice"},
		},
		{
			name: "chat",
			raw:  `{"type":"send-chat-message","data":{"room":"R1","message":"hi"}}`,
			want: &ChatCommand{Room: "R1", Message: "hi"},
		},
		{
			name: "draw start",
			raw:  `{"type":"draw-start","data":{"room":"R1","x":1.5,"y":2,"color":"#ff0000"}}`,
			want: &DrawStartCommand{Room: "R1", X: 1.5, Y: 2, Color: "#ff0000"},
		},
		{
			name: "draw move",
			raw:  `{"type":"draw-move","data":{"room":"R1","x":3,"y":4}}`,
			want: &DrawMoveCommand{Room: "R1", X: 3, Y: 4},
		},
		{
			name: "draw end",
			raw:  `{"type":"draw-end","data":{"room":"R1"}}`,
			want: &DrawEndCommand{Room: "R1"},
		},
		{
			name: "sticky note",
			raw:  `{"type":"add-sticky-note","data":{"room":"R1","note":{"text":"todo","x":5,"y":6,"color":"#ffff00"}}}`,
			want: &StickyCommand{Room: "R1", Note: StickyNote{Text: "todo", X: 5, Y: 6, Color: "#ffff00"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			cmd, err := DecodeClientMessage([]byte(tc.raw))

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tc.want, cmd)
		})
	}
}

func TestDecodeClientMessage_Rejects(t *testing.T) {
	// Arrange: 未知类型和畸形负载都必须报错，由读循环静默丢弃
	cases := []struct {
		name string
		raw  string
	}{
		{name: "unknown type", raw: `{"type":"take-over-room","data":{}}`},
		{name: "malformed envelope", raw: `{"type":`},
		{name: "malformed payload", raw: `{"type":"draw-start","data":{"x":"not-a-number"}}`},
		{name: "empty input", raw: ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := DecodeClientMessage([]byte(tc.raw))
			require.Error(t, err)
			assert.Nil(t, cmd)
		})
	}
}

func TestEncodeNotification_Envelope(t *testing.T) {
	// Act
	raw, err := encodeNotification(evtChatMessage, ChatMessagePayload{
		Name: "alice", Message: "hi", Timestamp: 1700000000000,
	})
	require.NoError(t, err)

	// Assert: 外层信封带类型标签，负载字段使用前端约定的命名
	var env struct {
		Type string             `json:"type"`
		Data ChatMessagePayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, evtChatMessage, env.Type)
	assert.Equal(t, "alice", env.Data.Name)
	assert.Equal(t, int64(1700000000000), env.Data.Timestamp)
}
