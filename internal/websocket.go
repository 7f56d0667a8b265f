package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 訊息上限：超長的入站幀由 gorilla 直接斷線，只影響該連接
	maxMessageSize = 1024

	// 送出訊息的寫入期限，慢客戶端不該無限期拖住扇出
	writeTimeout = 10 * time.Second
)

// wsTransport 把 gorilla 的連接適配成會話消費的 Transport 介面
//
// 扇出時多個會話可能同時對同一個目標送訊，寫入用鎖串行
// （gorilla 的連接只允許一個併發寫入者）。
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	conn.SetReadLimit(maxMessageSize)
	return &wsTransport{conn: conn}
}

// ReceiveOneMessage 阻塞等待下一則文本訊息
//
// 只接受文本幀：協議不接受二進制負載，收到即回覆關閉幀並視為協議違規。
func (t *wsTransport) ReceiveOneMessage() ([]byte, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
		}

		switch messageType {
		case websocket.TextMessage:
			return data, nil
		case websocket.BinaryMessage:
			t.writeClose(websocket.CloseUnsupportedData, "binary frames are not accepted")
			return nil, fmt.Errorf("%w: 收到二進制幀", ErrProtocolViolation)
		default:
			// 控制幀由 gorilla 內部處理，其餘種類直接忽略再收下一則
		}
	}
}

// SendMessage 送出一則文本訊息
func (t *wsTransport) SendMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return nil
}

// Close 服務器側優雅關閉：先送關閉幀再斷開
func (t *wsTransport) Close() error {
	t.writeClose(websocket.CloseNormalClosure, "")
	return t.conn.Close()
}

// Abort 強制中止，不做關閉握手（對端被視為無響應）
func (t *wsTransport) Abort() {
	_ = t.conn.Close()
}

// writeClose 嘗試送出關閉幀，連接可能已斷，錯誤忽略
func (t *wsTransport) writeClose(code int, text string) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(time.Second)
	if err := t.conn.SetWriteDeadline(deadline); err == nil {
		_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	}
}

// Acceptor 接受新的傳輸連接，每條交給一個新的會話
//
// 刻意做薄：升級、包裝、起 goroutine，別的都不做。
// 任何單條連接的結局都不影響後續接受。
type Acceptor struct {
	lobby       *Lobby
	idleTimeout time.Duration
	logger      *slog.Logger
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	transports map[*wsTransport]struct{}
	wg         sync.WaitGroup
}

// NewAcceptor 創建接入器
func NewAcceptor(lobby *Lobby, idleTimeout time.Duration, logger *slog.Logger) *Acceptor {
	return &Acceptor{
		lobby:       lobby,
		idleTimeout: idleTimeout,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		transports: make(map[*wsTransport]struct{}),
	}
}

// ServeWS 處理一個 WebSocket 升級請求並啟動會話
func (a *Acceptor) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// 良性的接受失敗：記錄後繼續等下一個連接
		a.logger.Error("升級 WebSocket 失敗", "error", err, "remote", r.RemoteAddr)
		return
	}

	transport := newWSTransport(conn)
	session := NewSession(a.lobby, transport, a.idleTimeout, a.logger)

	a.mu.Lock()
	a.transports[transport] = struct{}{}
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			a.mu.Lock()
			delete(a.transports, transport)
			a.mu.Unlock()
		}()
		session.Run()
	}()

	a.logger.Info("WebSocket 連接建立", "remote", r.RemoteAddr)
}

// ActiveSessions 當前存活的會話數
func (a *Acceptor) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.transports)
}

// Stop 中止所有存活的連接並等待會話收尾
func (a *Acceptor) Stop() {
	a.mu.Lock()
	for transport := range a.transports {
		transport.Abort()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("接入器已停止")
}
