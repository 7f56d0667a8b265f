package internal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/koopa0/matching-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHandler 組出一套監控端點與它背後的大廳
func newTestHandler(t *testing.T) (http.Handler, *internal.Lobby) {
	t.Helper()

	lobby := internal.NewLobby(testLogger(), 0)
	acceptor := internal.NewAcceptor(lobby, internal.DefaultIdleTimeout, testLogger())
	handler := internal.NewHandler(lobby, acceptor, testLogger())
	return handler.Routes(), lobby
}

// doGet 對監控端點發一個 GET 並解出 JSON
func doGet(t *testing.T, routes http.Handler, path string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

// TestHandler_Health 測試健康檢查
func TestHandler_Health(t *testing.T) {
	routes, _ := newTestHandler(t)

	status, body := doGet(t, routes, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

// TestHandler_Stats 測試統計端點反映大廳狀態
func TestHandler_Stats(t *testing.T) {
	routes, lobby := newTestHandler(t)

	_, err := lobby.JoinPlayer("p1", "Ann", newFakeTransport(), 2)
	require.NoError(t, err)

	status, body := doGet(t, routes, "/stats")
	assert.Equal(t, http.StatusOK, status)

	// JSON 解碼後的數字是 float64
	assert.Equal(t, float64(1), body["total_rooms"])
	assert.Equal(t, float64(1), body["total_players"])
	assert.Equal(t, float64(0), body["active_sessions"])
}

// TestHandler_ListRooms 測試房間列表端點
func TestHandler_ListRooms(t *testing.T) {
	routes, lobby := newTestHandler(t)

	_, err := lobby.JoinPlayer("p1", "Ann", newFakeTransport(), 2)
	require.NoError(t, err)
	_, err = lobby.JoinPlayer("p2", "Bo", newFakeTransport(), 2)
	require.NoError(t, err)

	// 未註冊的路徑走 ServeMux 預設 404
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	status, body := doGet(t, routes, "/api/v1/rooms")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	rooms, ok := body["rooms"].([]any)
	require.True(t, ok)
	require.Len(t, rooms, 1)

	room, ok := rooms[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), room["capacity"])
	assert.Equal(t, float64(2), room["current_players"])
	assert.Equal(t, false, room["can_join"])
	assert.Equal(t, "Ann", room["host_nickname"])
}

// TestAcceptor_EndToEnd 測試從 WebSocket 升級到完整協議來回
func TestAcceptor_EndToEnd(t *testing.T) {
	lobby := internal.NewLobby(testLogger(), 0)
	acceptor := internal.NewAcceptor(lobby, 2*time.Second, testLogger())
	defer acceptor.Stop()

	server := httptest.NewServer(http.HandlerFunc(acceptor.ServeWS))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]

	dial := func(t *testing.T) *clientConn {
		t.Helper()
		return dialWS(t, wsURL)
	}

	// 兩個客戶端先後入室，互相收到對方的 Join 通知
	c1 := dial(t)
	defer c1.close()
	c1.send(t, internal.NewMessage("p1", "Ann", 2, internal.TypeJoin))
	require.Eventually(t, func() bool { return lobby.RoomCount() == 1 }, time.Second, 10*time.Millisecond)

	c2 := dial(t)
	defer c2.close()
	c2.send(t, internal.NewMessage("p2", "Bo", 2, internal.TypeJoin))

	notice1 := c1.receive(t)
	assert.Equal(t, "p2", notice1.PlayerID)
	assert.Equal(t, internal.TypeJoin, notice1.Type)

	notice2 := c2.receive(t)
	assert.Equal(t, "p1", notice2.PlayerID)
	assert.Equal(t, internal.TypeJoin, notice2.Type)

	// p2 斷線：p1 收到 Leave 通知
	c2.send(t, internal.NewMessage("p2", "Bo", 0, internal.TypeDisconnect))
	leaveNotice := c1.receive(t)
	assert.Equal(t, "p2", leaveNotice.PlayerID)
	assert.Equal(t, internal.TypeLeave, leaveNotice.Type)
}

// TestAcceptor_BinaryFrameAbortsConnection 測試二進制幀視為協議違規
func TestAcceptor_BinaryFrameAbortsConnection(t *testing.T) {
	lobby := internal.NewLobby(testLogger(), 0)
	acceptor := internal.NewAcceptor(lobby, 2*time.Second, testLogger())
	defer acceptor.Stop()

	server := httptest.NewServer(http.HandlerFunc(acceptor.ServeWS))
	defer server.Close()

	c := dialWS(t, "ws"+server.URL[len("http"):])
	defer c.close()

	c.sendBinary(t, []byte{0x01, 0x02})

	// 服務器中止這條連接：下一次讀取必然失敗
	c.expectReadError(t)
}
