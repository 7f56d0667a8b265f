package internal

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PlayerMode 玩家模式
//
// 同一個實體在生命週期中可能從真人切換為 CPU（真人斷線後留作佔位），
// 因此用帶標籤的欄位表達，而非類型層次，讓房間的玩家列表保持同質。
type PlayerMode string

const (
	// ModeHuman 真人玩家，持有傳輸握柄
	ModeHuman PlayerMode = "human"
	// ModeCPU 電腦代打，永遠不持有傳輸握柄，也永遠不是通知對象
	ModeCPU PlayerMode = "cpu"
)

// Player 房間中的一個座位：身份、真人/CPU 模式、回客戶端的通知通道
//
// 生命週期由持有它的 Room 獨佔擁有；Session 只保留 id 等回參照，不管理存活。
// mode 與 conn 可能被「斷線清理」與「他人扇出」兩條路徑同時觸碰，
// 用一把小鎖保護這兩個欄位。
type Player struct {
	ID       string
	Nickname string

	mu   sync.Mutex
	mode PlayerMode
	conn Transport
}

// NewHumanPlayer 創建真人玩家
//
// id 為空白或 conn 缺失時拒絕；暱稱允許為空字串。
func NewHumanPlayer(id, nickname string, conn Transport) (*Player, error) {
	if !isCorrectID(id) {
		return nil, fmt.Errorf("%w: 玩家 ID 為空白", ErrInvalidArgument)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: 缺少傳輸握柄", ErrInvalidArgument)
	}

	return &Player{
		ID:       id,
		Nickname: nickname,
		mode:     ModeHuman,
		conn:     conn,
	}, nil
}

// NewCPUPlayer 合成一個 CPU 玩家
//
// 座位編號從 1 開始；ID 取隨機 UUID 保證在活躍會話中唯一。
func NewCPUPlayer(seatNumber int) *Player {
	return &Player{
		ID:       fmt.Sprintf("cpu_%s", uuid.NewString()),
		Nickname: fmt.Sprintf("CPU%d", seatNumber),
		mode:     ModeCPU,
	}
}

// IsCPU 是否為 CPU 模式
func (p *Player) IsCPU() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode == ModeCPU
}

// SwitchToCPU 就地把真人玩家轉為 CPU 模式
//
// 用於傳輸意外斷開但座位須留作佔位的場景；冪等，重複調用無害。
// 轉換後不再持有傳輸握柄（CPU 玩家不變量）。
func (p *Player) SwitchToCPU() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = ModeCPU
	p.conn = nil
}

// transport 取得當前的傳輸握柄快照（CPU 為 nil）
func (p *Player) transport() Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// NotifyOthers 向每個真人目標送出一則描述「本玩家」與事件種類的訊息
//
// CPU 目標靜默跳過（沒有可通知的傳輸），空目標集合是無操作而非錯誤。
// 單一目標的送出失敗不影響其餘目標，失敗會彙總後返回給調用方記錄；
// 失敗的那條連接由它自己的 Session 走斷線清理，這裡不越俎代庖。
func (p *Player) NotifyOthers(targets []*Player, capacity int, eventKind MessageType) error {
	data, err := NewMessage(p.ID, p.Nickname, capacity, eventKind).Encode()
	if err != nil {
		return err
	}

	var errs []error
	for _, target := range targets {
		conn := target.transport()
		if conn == nil {
			continue
		}
		if err := conn.SendMessage(data); err != nil {
			errs = append(errs, fmt.Errorf("通知玩家 %s 失敗: %w", target.ID, err))
		}
	}
	return errors.Join(errs...)
}

// isCorrectID 有效的（真正的）ID 字串：非空且不只含空白
func isCorrectID(id string) bool {
	return strings.TrimSpace(id) != ""
}
