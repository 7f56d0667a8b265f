package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/matching-server/internal"
)

func main() {
	// 解析命令行參數
	var (
		port        = flag.Int("port", 8080, "服務器端口")
		logLevel    = flag.String("log-level", "info", "日誌級別 (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "text", "日誌格式 (text, json)")
		idleTimeout = flag.Duration("idle-timeout", internal.DefaultIdleTimeout, "連接閒置超時")
		cpuBackfill = flag.Int("cpu-backfill", 0, "新房間創建時的 CPU 補位座位數")
	)
	flag.Parse()

	// 設置日誌
	logger := setupLogger(*logLevel, *logFormat)

	// 創建大廳：進程內唯一的房間註冊處
	lobby := internal.NewLobby(logger, *cpuBackfill)

	// 創建接入器：每條連接一個會話
	acceptor := internal.NewAcceptor(lobby, *idleTimeout, logger)

	// 創建監控用的 HTTP 處理器
	handler := internal.NewHandler(lobby, acceptor, logger)

	// 設置路由
	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("/ws", acceptor.ServeWS)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// 注意：WebSocket 連接升級後不受 WriteTimeout 管轄，
		// 會話自己的閒置超時負責收走死連接
		IdleTimeout: 60 * time.Second,
	}

	// 啟動服務器
	go func() {
		logger.Info("配對服務器啟動",
			"port", *port,
			"idle_timeout", *idleTimeout,
			"cpu_backfill", *cpuBackfill,
			"log_level", *logLevel)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 中止存活的會話
	acceptor.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
