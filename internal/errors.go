package internal

import "errors"

// 錯誤分類設計：
//
// 連接本地的錯誤（InvalidArgument、ProtocolViolation）只影響該連接，
// 共享狀態的防禦性檢查（RoomFull、InvalidIndex）在 Lobby 的公開操作邊界執行，
// 任何單一錯誤都不會讓整個進程終止。
//
// 使用哨兵錯誤（sentinel error）而非純字串：
//   - 調用方可以用 errors.Is 分支處理（如 Session 收到 ErrInvalidIndex 時
//     必須視自己記住的房間索引已失效）
//   - 包裝時用 fmt.Errorf("%w: ...") 補充上下文，分類不丟失
var (
	// ErrInvalidArgument ID、暱稱或傳輸握柄為空白/缺失
	ErrInvalidArgument = errors.New("無效的參數")

	// ErrRoomFull 房間已達容量上限
	// 在正確的互斥紀律下，選房與入房之間不應觀察到此錯誤；
	// 一旦出現即為內部一致性訊號，必須記錄而非吞掉
	ErrRoomFull = errors.New("房間已滿")

	// ErrNotFound 指定的玩家不在該房間內
	ErrNotFound = errors.New("玩家不在房間內")

	// ErrInvalidIndex 房間索引已不指向存活的房間（房間被刪除後索引位移）
	ErrInvalidIndex = errors.New("無效的房間索引")

	// ErrTransportFailure 傳輸層送收失敗，視為隱式斷線
	ErrTransportFailure = errors.New("傳輸失敗")

	// ErrProtocolViolation 非文本幀或無法解碼的負載，僅中止違規的連接
	ErrProtocolViolation = errors.New("協議違規")
)
