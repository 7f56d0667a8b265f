package internal

// Transport 一條持久、全雙工、以訊息為單位的連接
//
// 核心只透過這個窄介面消費傳輸層，監聽端口的綁定與升級都是外部協作者的事。
// 實作見 wsTransport（gorilla/websocket 適配器），測試用內存假實作替換。
type Transport interface {
	// ReceiveOneMessage 阻塞等待下一則文本訊息
	// 連接關閉、收到二進制幀或傳輸錯誤時返回錯誤
	ReceiveOneMessage() ([]byte, error)

	// SendMessage 送出一則文本訊息
	SendMessage(data []byte) error

	// Close 服務器側優雅關閉（送出關閉幀）
	Close() error

	// Abort 強制中止連接，用於超時與協議違規（對端視為無響應，不做握手）
	Abort()
}
