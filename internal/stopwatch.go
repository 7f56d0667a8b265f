package internal

import "time"

// stopwatch 量測閒置時間的小工具
//
// 每條連接各自持有一個實例（各連接的收訊節奏不同，不能共用），
// 只用於閒置超時的量測。
type stopwatch struct {
	start time.Time
}

// newStopwatch 創建並立即開始計時
func newStopwatch() *stopwatch {
	return &stopwatch{start: time.Now()}
}

// Restart 歸零重新計時；收到任何訊息後都要呼叫，否則量不出正確的閒置時間
func (w *stopwatch) Restart() {
	w.start = time.Now()
}

// Elapsed 距上次 Restart（或創建）經過的時間
func (w *stopwatch) Elapsed() time.Duration {
	return time.Since(w.start)
}
