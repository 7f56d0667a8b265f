package internal

import (
	"errors"
	"log/slog"
	"time"
)

// 系統設計問題：
//   每條客戶端連接的收訊、派發與超時如何在一個 goroutine 內協調？
//
// 核心挑戰：
//   1. 嚴格串行：同一條連接的第 N 則訊息處理完（含扇出）之前，
//      絕不開始處理第 N+1 則——亂序的 Join/Leave 會弄壞房間成員
//   2. 閒置超時：等待收訊的同時要持續量測距上次成功收訊的時間，
//      超過預算就強制中止（對端視為無響應，不做優雅關閉）
//   3. 斷線清理：不告而別的真人不能留下永久佔用卻無人認領的座位
//
// 設計方案：
//   ✅ 讀取 goroutine + select - 收訊結果進通道，主迴圈在
//      「下一則訊息」與「剩餘閒置預算」之間擇一
//   ✅ stopwatch 量測 - 每次成功收訊歸零，超時判定用剩餘預算
//   ✅ 統一清理路徑 - 各種終止方式最後都收斂到 leaveCurrentRoom

// DefaultIdleTimeout 預設的閒置超時預算
const DefaultIdleTimeout = 10 * time.Second

// Session 一條客戶端連接對應的會話
//
// 狀態機：Connecting → Active →（Closing）→ Closed。
// Active 期間跑收訊迴圈，把線上訊息轉成 Lobby/Room 操作。
// Lobby 是顯式注入的依賴，測試可以配假傳輸與隔離的大廳實例。
type Session struct {
	lobby       *Lobby
	transport   Transport
	idleTimeout time.Duration
	logger      *slog.Logger

	// 當前所在房間的參照；nil 表示不在任何房間
	// 只由會話自己的 goroutine 讀寫，不需要鎖
	current  *RoomRef
	playerID string
}

// recvResult 一次收訊的結果
type recvResult struct {
	data []byte
	err  error
}

// NewSession 創建會話
func NewSession(lobby *Lobby, transport Transport, idleTimeout time.Duration, logger *slog.Logger) *Session {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Session{
		lobby:       lobby,
		transport:   transport,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Run 跑會話的收訊迴圈，直到連接終止
//
// 唯一等待網絡的懸掛點是收訊；訊息處理（含扇出通知）在迴圈內同步完成，
// 保證每連接嚴格串行。
func (s *Session) Run() {
	recvCh := make(chan recvResult)
	done := make(chan struct{})
	defer close(done)

	// 讀取 goroutine：把收訊結果餵進通道
	// 會話退出後由 done 放行；屆時傳輸已被關閉，下一次收訊必然出錯返回
	go func() {
		for {
			data, err := s.transport.ReceiveOneMessage()
			select {
			case recvCh <- recvResult{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	watch := newStopwatch()
	for {
		remaining := s.idleTimeout - watch.Elapsed()
		if remaining <= 0 {
			s.abortOnTimeout()
			return
		}

		select {
		case result := <-recvCh:
			if result.err != nil {
				s.terminateOnReceiveError(result.err)
				return
			}
			// 有訊息就歸零閒置時間，再依種類派發
			watch.Restart()
			if closed := s.dispatch(result.data); closed {
				return
			}

		case <-time.After(remaining):
			s.abortOnTimeout()
			return
		}
	}
}

// dispatch 解碼並依訊息種類派發，返回會話是否應結束
func (s *Session) dispatch(data []byte) bool {
	msg, err := DecodeMessage(data)
	if err != nil {
		// 協議違規只中止違規的這條連接
		s.logger.Warn("收到無法解碼的訊息，中止連接", "error", err)
		s.transport.Abort()
		s.leaveCurrentRoom(true)
		return true
	}

	switch msg.Type {
	case TypeJoin:
		return s.handleJoin(msg)

	case TypeLeave:
		return s.handleLeave(msg)

	case TypePeriodicReport:
		// 心跳：收訊本身已重置閒置時間，別的什麼都不用做

	case TypeDisconnect, TypeTimeOut:
		// 客戶端要求斷線，或回報它自己等對端超時：
		// 服務器側關閉傳輸，還在房間裡就先走退室加通知
		s.leaveCurrentRoom(false)
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("優雅關閉連接失敗", "error", err)
		}
		s.logger.Info("連接已按客戶端要求關閉", "player_id", msg.PlayerID, "type", msg.Type)
		return true
	}
	return false
}

// handleJoin 處理入室請求
//
// 成功後記住返回的房間參照，並完成雙向扇出：
//   - 新玩家向既有住客告知自己加入
//   - 每個既有住客向新玩家告知自己的存在（讓新玩家拿到名冊）
//
// 每次加入事件後，每個住客對其他每個住客都恰好知悉一次。
func (s *Session) handleJoin(msg Message) bool {
	if s.current != nil {
		s.logger.Warn("玩家已在房間內，忽略重複的入室請求",
			"player_id", msg.PlayerID, "room_index", s.current.Index)
		return false
	}

	result, err := s.lobby.JoinPlayer(msg.PlayerID, msg.Nickname, s.transport, msg.MaxPlayerCount)
	if err != nil {
		// 單則訊息的處理錯誤只記錄，會話繼續收下一則
		s.logger.Warn("入室失敗", "player_id", msg.PlayerID, "error", err)
		return false
	}

	ref := result.Ref
	s.current = &ref
	s.playerID = result.Player.ID

	// 扇出在 Lobby 釋放互斥之後、下一次收訊之前依序完成
	if err := result.Player.NotifyOthers(result.Others, result.Capacity, TypeJoin); err != nil {
		s.logger.Warn("入室通知部分失敗", "player_id", result.Player.ID, "error", err)
	}
	for _, other := range result.Others {
		if err := other.NotifyOthers([]*Player{result.Player}, result.Capacity, TypeJoin); err != nil {
			s.logger.Warn("名冊通知失敗", "from", other.ID, "to", result.Player.ID, "error", err)
		}
	}
	return false
}

// handleLeave 處理退室請求
func (s *Session) handleLeave(msg Message) bool {
	if s.current == nil {
		s.logger.Warn("玩家不在任何房間，忽略退室請求", "player_id", msg.PlayerID)
		return false
	}

	result, err := s.lobby.LeavePlayer(msg.PlayerID, *s.current)
	switch {
	case errors.Is(err, ErrInvalidIndex):
		// 記住的參照已作廢：視為已離開，且會話自身狀態已不可信，結束會話
		s.logger.Warn("房間參照已失效，關閉會話", "player_id", msg.PlayerID, "error", err)
		s.current = nil
		s.transport.Abort()
		return true

	case err != nil:
		s.logger.Warn("退室失敗", "player_id", msg.PlayerID, "error", err)
		return false
	}

	s.current = nil
	if err := result.Player.NotifyOthers(result.Remaining, result.Capacity, TypeLeave); err != nil {
		s.logger.Warn("退室通知部分失敗", "player_id", result.Player.ID, "error", err)
	}
	return false
}

// terminateOnReceiveError 收訊出錯（傳輸錯誤、對端關閉、二進制幀）時的終止
func (s *Session) terminateOnReceiveError(err error) {
	if errors.Is(err, ErrProtocolViolation) {
		s.logger.Warn("協議違規，中止連接", "player_id", s.playerID, "error", err)
	} else {
		s.logger.Info("連接終止", "player_id", s.playerID, "error", err)
	}
	s.transport.Abort()
	// 不告而別視同收到 Leave 做清理，座位不能無人認領地佔著
	s.leaveCurrentRoom(true)
}

// abortOnTimeout 閒置超時：對端視為無響應，強制中止而非優雅關閉
func (s *Session) abortOnTimeout() {
	s.logger.Warn("閒置超時，中止連接",
		"player_id", s.playerID, "idle_timeout", s.idleTimeout)
	s.transport.Abort()
	s.leaveCurrentRoom(true)
}

// leaveCurrentRoom 清理當前占用的座位並通知其餘住客
//
// ungraceful 為真表示玩家是消失而非請辭：若大廳配置了 CPU 補位
// （房間以隨時可開為前提成形），座位就地轉為 CPU 佔位；
// 否則一律清空座位。兩種結局對其餘真人都是一則普通的 Leave 事件。
func (s *Session) leaveCurrentRoom(ungraceful bool) {
	if s.current == nil {
		return
	}
	ref := *s.current
	s.current = nil

	var result LeaveResult
	var err error
	if ungraceful && s.lobby.CPUBackfill() > 0 {
		result, err = s.lobby.AbandonPlayer(s.playerID, ref)
	} else {
		result, err = s.lobby.LeavePlayer(s.playerID, ref)
	}
	if err != nil {
		s.logger.Warn("斷線清理退室失敗", "player_id", s.playerID, "error", err)
		return
	}

	if err := result.Player.NotifyOthers(result.Remaining, result.Capacity, TypeLeave); err != nil {
		s.logger.Warn("退室通知部分失敗", "player_id", result.Player.ID, "error", err)
	}
}
