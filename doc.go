// Package matchingserver 提供了一個即時配對/大廳服務器。
//
// 客戶端透過持久的訊息通道連接，請求加入 N 人對戰，被安置到
// 容量受限的房間（或新開的房間），收到室友加入/離開的通知；
// 真人斷線時座位可優雅退化為電腦代打的佔位。
//
// 房間指派
//
// 大廳是進程內唯一的房間註冊處：
//   - 依創建順序搜尋第一個容量相符且開著的房間
//   - 找不到就開新房，可配置 CPU 補位
//   - 搜房或開房整段是單一原子單元，併發請求不會重複開房
//   - 全 CPU 的房間當場回收
//
// # WebSocket 通訊
//
// 線上訊息是欄位命名的 JSON 信封：
//   - join / leave：入室與退室
//   - periodic_report：心跳，重置閒置超時
//   - disconnect / time_out：客戶端側的斷線要求與超時回報
//
// 只接受文本幀；二進制幀與無法解碼的負載視為協議違規，
// 僅中止違規的那條連接。
//
// 併發安全設計
//
// 每條連接一個輕量併發任務，共享的只有大廳的房間集合：
//   - 單一互斥保護搜房或開房的決策
//   - 持鎖期間絕不做 I/O，扇出通知在鎖外由會話依序完成
//   - 每連接的訊息處理嚴格串行，亂序的入退室不會弄壞成員關係
//
// 超時與清理
//
// 每條連接有自己的閒置預算（預設 10 秒），距上次成功收訊起算；
// 超時即強制中止該連接。不告而別的真人不會留下無人認領的座位：
// 座位被清空，或在配置了 CPU 補位時就地轉為電腦代打。
//
// 使用範例
//
// 啟動服務器：
//
//	lobby := internal.NewLobby(logger, 0)
//	acceptor := internal.NewAcceptor(lobby, internal.DefaultIdleTimeout, logger)
//	handler := internal.NewHandler(lobby, acceptor, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", handler.Routes())
//	mux.HandleFunc("/ws", acceptor.ServeWS)
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 8080）
//   - -idle-timeout：連接閒置超時（預設 10s）
//   - -cpu-backfill：新房間的 CPU 補位座位數（預設 0）
//   - -log-level / -log-format：日誌級別與格式
//
// 監控與除錯
//
// 內建只讀的監控端點：
//   - GET /health：健康檢查
//   - GET /stats：房間與會話統計
//   - GET /api/v1/rooms：房間列表快照
package matchingserver
