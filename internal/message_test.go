package internal_test

import (
	"testing"

	"github.com/koopa0/matching-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeMessage 測試訊息解碼
func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expectedErr error
		validate    func(t *testing.T, msg internal.Message)
	}{
		{
			name: "valid join message",
			data: `{"player_id":"p1","nickname":"Ann","max_player_count":2,"type":"join"}`,
			validate: func(t *testing.T, msg internal.Message) {
				assert.Equal(t, "p1", msg.PlayerID)
				assert.Equal(t, "Ann", msg.Nickname)
				assert.Equal(t, 2, msg.MaxPlayerCount)
				assert.Equal(t, internal.TypeJoin, msg.Type)
			},
		},
		{
			name: "valid leave message",
			data: `{"player_id":"p1","nickname":"Ann","max_player_count":2,"type":"leave"}`,
			validate: func(t *testing.T, msg internal.Message) {
				assert.Equal(t, internal.TypeLeave, msg.Type)
			},
		},
		{
			name: "heartbeat message",
			data: `{"player_id":"p1","nickname":"","max_player_count":0,"type":"periodic_report"}`,
			validate: func(t *testing.T, msg internal.Message) {
				assert.Equal(t, internal.TypePeriodicReport, msg.Type)
			},
		},
		{
			name: "client reported timeout",
			data: `{"player_id":"p1","nickname":"Ann","max_player_count":2,"type":"time_out"}`,
			validate: func(t *testing.T, msg internal.Message) {
				assert.Equal(t, internal.TypeTimeOut, msg.Type)
			},
		},
		{
			name:        "unknown message type",
			data:        `{"player_id":"p1","nickname":"Ann","max_player_count":2,"type":"dance"}`,
			expectedErr: internal.ErrProtocolViolation,
		},
		{
			name:        "missing type",
			data:        `{"player_id":"p1"}`,
			expectedErr: internal.ErrProtocolViolation,
		},
		{
			name:        "malformed payload",
			data:        `this is not json`,
			expectedErr: internal.ErrProtocolViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := internal.DecodeMessage([]byte(tt.data))

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			tt.validate(t, msg)
		})
	}
}

// TestMessage_EncodeDecode 測試編碼後可被解碼還原
func TestMessage_EncodeDecode(t *testing.T) {
	original := internal.NewMessage("p1", "Ann", 4, internal.TypeJoin)

	data, err := original.Encode()
	require.NoError(t, err)

	// 欄位命名的文本編碼：欄位名必須出現在負載中
	assert.Contains(t, string(data), `"player_id"`)
	assert.Contains(t, string(data), `"nickname"`)
	assert.Contains(t, string(data), `"max_player_count"`)
	assert.Contains(t, string(data), `"type"`)

	decoded, err := internal.DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

// TestBlankMessage 測試空白哨兵值
func TestBlankMessage(t *testing.T) {
	blank := internal.BlankMessage()

	assert.True(t, blank.IsBlank())

	// 任何合法構造的訊息都不能與哨兵值碰撞
	legit := internal.NewMessage("p1", "Ann", 2, internal.TypePeriodicReport)
	assert.False(t, legit.IsBlank())

	// 連暱稱恰好為空的心跳也不行
	heartbeat := internal.NewMessage("Blank", "", 2, internal.TypePeriodicReport)
	assert.False(t, heartbeat.IsBlank())
}
