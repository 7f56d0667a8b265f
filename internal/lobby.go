package internal

import (
	"fmt"
	"log/slog"
	"sync"
)

// 系統設計問題：
//   如何讓「找開著的房 → 沒有就開新房」這個決策在高併發下不出錯？
//
// 核心挑戰：
//   1. 原子性：兩個同容量的併發加入請求，不能各自判定「沒有開著的房」
//      而重複開房；也不能讓一次加入作用在已被併發創建作廢的快照上
//   2. 鎖粒度：互斥的單位是整個房間集合，但持鎖期間絕不做 I/O，
//      扇出通知一律在釋放鎖之後由 Session 執行
//   3. 索引失效：全 CPU 房被刪除後索引位移，舊索引必須快速失敗
//      而不是别名到另一個房間
//
// 設計方案：
//   ✅ 單一 Mutex - 搜房或開房整段在一個互斥區內完成
//   ✅ 序號校驗的房間參照 - (index, serial) 配對，過期即報 ErrInvalidIndex
//   ✅ 鎖內取快照 - 加入/離開的結果帶出目標玩家快照，Session 在鎖外扇出

// maxRoomCapacity 單一房間的容量上限
//
// 容量來自線上訊息，未經約束的值會被房間拿去預分配座位切片，
// 超出合理對戰規模的請求一律在大廳入口拒絕。
const maxRoomCapacity = 100

// RoomRef 發給 Session 的房間參照
//
// 索引語義上「不跨刪除穩定」：刪除會使後續索引位移。
// 因此配上創建序號，槽位上的房間序號對不上就視為失效，
// 舊參照快速失敗而不是指到別的房間。
type RoomRef struct {
	Index  int
	Serial uint64
}

// JoinResult 一次成功加入的結果
//
// Others 是鎖內取得的既有住客快照（不含新玩家），供 Session 在鎖外扇出。
type JoinResult struct {
	Ref      RoomRef
	Player   *Player
	Others   []*Player
	Capacity int
}

// LeaveResult 一次成功離開（或遺棄）的結果
type LeaveResult struct {
	Player      *Player
	Remaining   []*Player
	Capacity    int
	RoomRemoved bool
}

// Lobby 進程內唯一的房間註冊處，房間指派的權威
//
// 顯式構造、顯式注入到每條連接的 Session，不做隱式單例，
// 測試可以各自實例化隔離的 Lobby。
type Lobby struct {
	mu         sync.Mutex
	rooms      []*Room // 順序 = 創建順序，同時作為 Session 持有參照的索引
	nextSerial uint64

	cpuBackfill int
	logger      *slog.Logger
}

// NewLobby 創建大廳
//
// cpuBackfill 指定新房間創建時用 CPU 補位的座位數（上限為容量減一，
// 房主座位永遠留給發起加入的真人）；0 表示不補位。
func NewLobby(logger *slog.Logger, cpuBackfill int) *Lobby {
	if cpuBackfill < 0 {
		cpuBackfill = 0
	}
	return &Lobby{
		cpuBackfill: cpuBackfill,
		logger:      logger,
	}
}

// JoinPlayer 把玩家安排進某個房間：整段搜房或開房是單一原子單元
//
// 依創建順序找第一個容量相符且開著的房間；找不到就開新房，
// 新玩家作為唯一（真人）住客加入，房間追加到集合尾端。
// 剛開的新房沒有其他住客，Others 為空，扇出自然是無操作。
// 容量直接來自線上訊息，必須落在 1 到 maxRoomCapacity 之間。
func (l *Lobby) JoinPlayer(id, nickname string, conn Transport, capacity int) (JoinResult, error) {
	if capacity < 1 || capacity > maxRoomCapacity {
		return JoinResult{}, fmt.Errorf("%w: 容量必須在 1 到 %d 之間，收到 %d",
			ErrInvalidArgument, maxRoomCapacity, capacity)
	}

	result, err := l.assignRoom(id, nickname, conn, capacity)
	if err != nil {
		return JoinResult{}, err
	}

	l.logger.Info("玩家已入室",
		"player_id", result.Player.ID,
		"room_index", result.Ref.Index,
		"room_serial", result.Ref.Serial,
		"capacity", result.Capacity,
		"occupants", len(result.Others)+1)
	return result, nil
}

// assignRoom 搜房或開房：整段在互斥區內完成，鎖以 defer 釋放
func (l *Lobby) assignRoom(id, nickname string, conn Transport, capacity int) (JoinResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for index, room := range l.rooms {
		if room.Capacity() != capacity || !room.CanJoin() {
			continue
		}

		others := room.Players()
		player, err := room.Join(id, nickname, conn)
		if err != nil {
			// CanJoin 與 Join 在同一個互斥區內，滿房不該在這裡出現；
			// 一旦出現就是內部一致性訊號，記錄後上拋
			l.logger.Error("選房與入房之間出現不一致", "room_index", index, "error", err)
			return JoinResult{}, err
		}
		return JoinResult{
			Ref:      RoomRef{Index: index, Serial: room.serial},
			Player:   player,
			Others:   others,
			Capacity: capacity,
		}, nil
	}

	// 沒有開著的同容量房間，開新房
	room := NewRoom(capacity)
	player, err := room.Join(id, nickname, conn)
	if err != nil {
		return JoinResult{}, err
	}

	// CPU 補位：座位編號從 1 開始
	backfill := l.cpuBackfill
	if backfill > capacity-1 {
		backfill = capacity - 1
	}
	for seat := 1; seat <= backfill; seat++ {
		if _, err := room.joinCPU(seat); err != nil {
			break
		}
	}

	l.nextSerial++
	room.serial = l.nextSerial
	l.rooms = append(l.rooms, room)

	return JoinResult{
		Ref:      RoomRef{Index: len(l.rooms) - 1, Serial: room.serial},
		Player:   player,
		Others:   nil,
		Capacity: capacity,
	}, nil
}

// LeavePlayer 讓玩家離開參照指向的房間
//
// 參照失效（房間被刪、索引位移）時返回 ErrInvalidIndex，
// Session 必須視自己記住的參照已作廢。
// 房間變成全 CPU 後當場從集合移除：移除會使後續索引位移，
// 持有較高舊索引的調用方之後會在序號校驗上快速失敗。
func (l *Lobby) LeavePlayer(id string, ref RoomRef) (LeaveResult, error) {
	result, err := l.releaseSeat(id, ref)
	if err != nil {
		return LeaveResult{}, err
	}

	l.logger.Info("玩家已退室",
		"player_id", result.Player.ID,
		"room_index", ref.Index,
		"room_removed", result.RoomRemoved)
	return result, nil
}

// releaseSeat 退室並視需要回收房間：整段在互斥區內完成，鎖以 defer 釋放
func (l *Lobby) releaseSeat(id string, ref RoomRef) (LeaveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.roomAtLocked(ref)
	if err != nil {
		return LeaveResult{}, err
	}

	player, err := room.Leave(id)
	if err != nil {
		return LeaveResult{}, err
	}

	remaining := room.Players()
	removed := false
	if room.AllPlayersAreCPU() {
		l.removeRoomLocked(ref.Index)
		removed = true
	}
	return LeaveResult{
		Player:      player,
		Remaining:   remaining,
		Capacity:    room.Capacity(),
		RoomRemoved: removed,
	}, nil
}

// AbandonPlayer 處理真人不告而別：座位就地轉為 CPU 佔位，不清空
//
// 只在大廳配置了 CPU 補位（房間以「隨時可開」為前提成形）時由 Session
// 的斷線清理調用；其餘情況斷線就走一般的 LeavePlayer。
// 轉換後若房間已全 CPU，同樣當場回收。
func (l *Lobby) AbandonPlayer(id string, ref RoomRef) (LeaveResult, error) {
	result, err := l.abandonSeat(id, ref)
	if err != nil {
		return LeaveResult{}, err
	}

	l.logger.Info("玩家已遺棄座位，轉為 CPU 佔位",
		"player_id", result.Player.ID,
		"room_index", ref.Index,
		"room_removed", result.RoomRemoved)
	return result, nil
}

// abandonSeat 座位就地轉 CPU 並視需要回收房間：整段在互斥區內完成，鎖以 defer 釋放
func (l *Lobby) abandonSeat(id string, ref RoomRef) (LeaveResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.roomAtLocked(ref)
	if err != nil {
		return LeaveResult{}, err
	}

	player, err := room.Player(id)
	if err != nil {
		return LeaveResult{}, err
	}

	player.SwitchToCPU()
	remaining := room.OtherPlayers(player)
	removed := false
	if room.AllPlayersAreCPU() {
		l.removeRoomLocked(ref.Index)
		removed = true
	}
	return LeaveResult{
		Player:      player,
		Remaining:   remaining,
		Capacity:    room.Capacity(),
		RoomRemoved: removed,
	}, nil
}

// roomAtLocked 校驗參照並取出房間（需要持有鎖）
func (l *Lobby) roomAtLocked(ref RoomRef) (*Room, error) {
	if ref.Index < 0 || ref.Index >= len(l.rooms) {
		return nil, fmt.Errorf("%w: index=%d", ErrInvalidIndex, ref.Index)
	}
	room := l.rooms[ref.Index]
	if room.serial != ref.Serial {
		return nil, fmt.Errorf("%w: index=%d 的房間已更替", ErrInvalidIndex, ref.Index)
	}
	return room, nil
}

// removeRoomLocked 從集合移除指定索引的房間（需要持有鎖）
func (l *Lobby) removeRoomLocked(index int) {
	serial := l.rooms[index].serial
	l.rooms = append(l.rooms[:index], l.rooms[index+1:]...)
	l.logger.Info("房間已回收", "room_index", index, "room_serial", serial)
}

// CPUBackfill 大廳配置的 CPU 補位座位數
func (l *Lobby) CPUBackfill() int {
	return l.cpuBackfill
}

// RoomCount 當前的房間數
func (l *Lobby) RoomCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

// Stats 統計資訊
func (l *Lobby) Stats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	totalPlayers := 0
	cpuPlayers := 0
	openRooms := 0
	byCapacity := make(map[int]int)

	for _, room := range l.rooms {
		totalPlayers += room.PlayerCount()
		for _, p := range room.Players() {
			if p.IsCPU() {
				cpuPlayers++
			}
		}
		if room.CanJoin() {
			openRooms++
		}
		byCapacity[room.Capacity()]++
	}

	return map[string]any{
		"total_rooms":   len(l.rooms),
		"open_rooms":    openRooms,
		"total_players": totalPlayers,
		"cpu_players":   cpuPlayers,
		"by_capacity":   byCapacity,
	}
}

// ListRooms 房間列表快照（供監控端點使用）
func (l *Lobby) ListRooms() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]map[string]any, 0, len(l.rooms))
	for index, room := range l.rooms {
		entry := map[string]any{
			"room_index":      index,
			"room_serial":     room.serial,
			"capacity":        room.Capacity(),
			"current_players": room.PlayerCount(),
			"can_join":        room.CanJoin(),
		}
		if host, err := room.HostPlayer(); err == nil {
			entry["host_nickname"] = host.Nickname
		}
		result = append(result, entry)
	}
	return result
}
