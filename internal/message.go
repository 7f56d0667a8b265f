package internal

import (
	"encoding/json"
	"fmt"
)

// MessageType 訊息種類
//
// 採用自描述的字串枚舉而非數字，新增種類時舊客戶端仍可解析其餘欄位，
// 保持向後兼容。
type MessageType string

const (
	// TypeJoin 請求進入指定人數的房間
	TypeJoin MessageType = "join"
	// TypeLeave 自願退出當前房間（不關閉連接）
	TypeLeave MessageType = "leave"
	// TypePeriodicReport 心跳訊息，僅用於重置閒置超時計時
	TypePeriodicReport MessageType = "periodic_report"
	// TypeDisconnect 客戶端主動要求優雅斷線
	TypeDisconnect MessageType = "disconnect"
	// TypeTimeOut 客戶端回報「它自己」等待對端超時
	// 注意與服務器側觀測到的閒置超時是兩回事
	TypeTimeOut MessageType = "time_out"
)

// isValid 是否為已知的訊息種類
func (t MessageType) isValid() bool {
	switch t {
	case TypeJoin, TypeLeave, TypePeriodicReport, TypeDisconnect, TypeTimeOut:
		return true
	}
	return false
}

// Message 客戶端與服務器之間交換的訊息信封
//
// 欄位命名的文本編碼（JSON），非位置式，收到後即視為不可變。
type Message struct {
	PlayerID       string      `json:"player_id"`
	Nickname       string      `json:"nickname"`
	MaxPlayerCount int         `json:"max_player_count"`
	Type           MessageType `json:"type"`
}

// 空白訊息的哨兵值
// 與任何合法構造的訊息都不會碰撞（合法訊息的 max_player_count 不會是 -1）
const (
	blankPlayerID       = "Blank"
	blankMaxPlayerCount = -1
)

// NewMessage 構造一則訊息
func NewMessage(playerID, nickname string, maxPlayerCount int, msgType MessageType) Message {
	return Message{
		PlayerID:       playerID,
		Nickname:       nickname,
		MaxPlayerCount: maxPlayerCount,
		Type:           msgType,
	}
}

// BlankMessage 返回「本輪未收到訊息」的哨兵值
func BlankMessage() Message {
	return Message{
		PlayerID:       blankPlayerID,
		Nickname:       "",
		MaxPlayerCount: blankMaxPlayerCount,
		Type:           TypePeriodicReport,
	}
}

// IsBlank 是否為哨兵空白訊息
func (m Message) IsBlank() bool {
	return m.PlayerID == blankPlayerID && m.MaxPlayerCount == blankMaxPlayerCount
}

// Encode 序列化為線上格式
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("序列化訊息失敗: %w", err)
	}
	return data, nil
}

// DecodeMessage 解析一則線上訊息
//
// 無法解碼的負載與未知的訊息種類都視為協議違規，由調用方決定中止連接。
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: 無法解碼的負載: %v", ErrProtocolViolation, err)
	}
	if !m.Type.isValid() {
		return Message{}, fmt.Errorf("%w: 未知的訊息種類 %q", ErrProtocolViolation, m.Type)
	}
	return m, nil
}
