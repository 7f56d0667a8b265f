package internal

import (
	"fmt"
)

// 系統設計問題：
//   如何在併發的配對請求下維持房間的容量與開閉狀態一致？
//
// 核心挑戰：
//   1. 狀態耦合：isOpen 必須隨加入/離開即時維護，不能惰性重算
//   2. 順序語義：玩家列表的插入順序就是加入順序，首位即房主
//   3. 退化處理：真人斷線後座位可由 CPU 代打，全 CPU 的房間可被回收
//
// 設計方案：
//   ✅ 有限狀態機 - Open（可入）→ Closed（滿員）→ 離開後可回到 Open
//   ✅ 有序切片 - 保留加入順序（map 做不到）
//   ✅ 無內部鎖 - 房間狀態是入房決策的依據，一律在 Lobby 的互斥區內變更

// Room 配對中的房間：容量受限、有序的玩家集合
//
// 狀態機：
//
//	Open（人數 < 容量）→ Closed（滿員）→ 有人離開則回到 Open
//
// 例外：全 CPU 的 Closed 房間永遠不會重開，因為沒有真人能觸發離開；
// 這個終態由 Lobby 檢查並決定刪除。
//
// 併發注意：Room 本身不帶鎖。它的成員是加入/離開決策所依賴的狀態，
// 所有變更必須在擁有它的 Lobby 持有互斥的前提下進行。
type Room struct {
	players  []*Player
	capacity int
	isOpen   bool
	serial   uint64 // Lobby 發放的創建序號，用於校驗過期的房間索引
}

// NewRoom 創建指定容量的空房間
func NewRoom(capacity int) *Room {
	return &Room{
		players:  make([]*Player, 0, capacity),
		capacity: capacity,
		isOpen:   true,
	}
}

// Join 讓指定 ID 的真人玩家入室，返回其實例
func (r *Room) Join(id, nickname string, conn Transport) (*Player, error) {
	if !r.CanJoin() {
		return nil, fmt.Errorf("%w: 容量 %d", ErrRoomFull, r.capacity)
	}

	player, err := NewHumanPlayer(id, nickname, conn)
	if err != nil {
		return nil, err
	}

	r.admit(player)
	return player, nil
}

// joinCPU 在房間創建時用合成的 CPU 玩家補位
//
// 滿員規則與真人相同；只在創建補位時使用，已成形的房間不再塞 CPU。
func (r *Room) joinCPU(seatNumber int) (*Player, error) {
	if !r.CanJoin() {
		return nil, fmt.Errorf("%w: 容量 %d", ErrRoomFull, r.capacity)
	}

	player := NewCPUPlayer(seatNumber)
	r.admit(player)
	return player, nil
}

// admit 接納玩家並維護開閉狀態
func (r *Room) admit(player *Player) {
	r.players = append(r.players, player)
	// 滿員即關房：狀態作為效果維護，而非每次重新推導
	if len(r.players) == r.capacity {
		r.isOpen = false
	}
}

// Leave 讓指定 ID 的玩家退室，返回被移除的玩家
//
// 退室使人數低於容量時房間重新開放。
func (r *Room) Leave(id string) (*Player, error) {
	index := r.indexOf(id)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	player := r.players[index]
	r.players = append(r.players[:index], r.players[index+1:]...)
	if len(r.players) < r.capacity {
		r.isOpen = true
	}
	return player, nil
}

// OtherPlayers 取得除指定玩家外的所有在室玩家，依房間順序
//
// 用於計算扇出通知的目標集合；返回的是快照切片，調用方可在鎖外安全遍歷。
func (r *Room) OtherPlayers(player *Player) []*Player {
	others := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p != player {
			others = append(others, p)
		}
	}
	return others
}

// HostPlayer 房主：最早入室且仍在室的玩家
//
// 空房間沒有房主，調用方不得對空房間呼叫。
func (r *Room) HostPlayer() (*Player, error) {
	if len(r.players) == 0 {
		return nil, fmt.Errorf("%w: 房間是空的", ErrNotFound)
	}
	return r.players[0], nil
}

// Player 取得指定 ID 的在室玩家
func (r *Room) Player(id string) (*Player, error) {
	index := r.indexOf(id)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.players[index], nil
}

// AllPlayersAreCPU 是否已無真人在室
//
// 空房間視為成立（沒有真人需要在意），因此也符合 Lobby 的刪除條件。
func (r *Room) AllPlayersAreCPU() bool {
	for _, p := range r.players {
		if !p.IsCPU() {
			return false
		}
	}
	return true
}

// CanJoin 還能不能再進人
func (r *Room) CanJoin() bool {
	return r.isOpen && len(r.players) < r.capacity
}

// Capacity 創建時固定的最大收容人數
func (r *Room) Capacity() int {
	return r.capacity
}

// PlayerCount 當前在室人數（含 CPU）
func (r *Room) PlayerCount() int {
	return len(r.players)
}

// Players 在室玩家的快照，依加入順序
func (r *Room) Players() []*Player {
	snapshot := make([]*Player, len(r.players))
	copy(snapshot, r.players)
	return snapshot
}

// indexOf 指定 ID 在玩家列表中的位置，不存在則為 -1
func (r *Room) indexOf(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
