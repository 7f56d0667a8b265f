package internal_test

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/matching-server/internal"
)

// fakeTransport 測試用的內存傳輸：收訊從通道取，送訊記錄在切片
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	aborted bool

	incoming  chan []byte
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 16),
	}
}

func (t *fakeTransport) ReceiveOneMessage() ([]byte, error) {
	data, ok := <-t.incoming
	if !ok {
		return nil, fmt.Errorf("%w: 連接已關閉", internal.ErrTransportFailure)
	}
	return data, nil
}

func (t *fakeTransport) SendMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("%w: 連接已關閉", internal.ErrTransportFailure)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	t.sent = append(t.sent, buf)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.incoming) })
	return nil
}

func (t *fakeTransport) Abort() {
	t.mu.Lock()
	t.closed = true
	t.aborted = true
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.incoming) })
}

// push 把一則訊息排進收訊佇列
func (t *fakeTransport) push(msg internal.Message) {
	data, err := msg.Encode()
	if err != nil {
		panic(err)
	}
	t.incoming <- data
}

// pushRaw 把原始字節排進收訊佇列（測協議違規用）
func (t *fakeTransport) pushRaw(data []byte) {
	t.incoming <- data
}

// sentMessages 解碼所有已送出的訊息
func (t *fakeTransport) sentMessages() []internal.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := make([]internal.Message, 0, len(t.sent))
	for _, data := range t.sent {
		msg, err := internal.DecodeMessage(data)
		if err != nil {
			panic(err)
		}
		messages = append(messages, msg)
	}
	return messages
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) wasAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

func (t *fakeTransport) wasClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// testLogger 測試用的 logger，只輸出 Error 級別
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// clientConn 包裝真實的 WebSocket 客戶端連接，供端到端測試使用
type clientConn struct {
	conn *websocket.Conn
}

// dialWS 建立到測試服務器的 WebSocket 連接
func dialWS(t *testing.T, url string) *clientConn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return &clientConn{conn: conn}
}

func (c *clientConn) send(t *testing.T, msg internal.Message) {
	t.Helper()

	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, data))
}

func (c *clientConn) sendBinary(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, c.conn.WriteMessage(websocket.BinaryMessage, data))
}

// receive 讀取下一條訊息，最多等待兩秒
func (c *clientConn) receive(t *testing.T) internal.Message {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(t, err)

	msg, err := internal.DecodeMessage(data)
	require.NoError(t, err)
	return msg
}

// expectReadError 確認連接已被服務器端終止
func (c *clientConn) expectReadError(t *testing.T) {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.conn.ReadMessage()
	require.Error(t, err)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		assert.Fail(t, "連接仍然存活，讀取只是超時")
	}
}

func (c *clientConn) close() {
	_ = c.conn.Close()
}
