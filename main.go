package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap/zapcore"

	"spacedeck/server"
)

// Spacedeck 入口：启动 HTTP + WebSocket 服务，并初始化会话注册表。
// 展示端与控制器页面由 web 目录提供，手机扫码加入后即可
// 通过 /ws 发送规格化输入命令
func main() {
	var addr string
	var logFile string
	var logLevel string
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.StringVar(&logFile, "log", "app.log", "log file path")
	flag.StringVar(&logLevel, "level", "debug", "minimum log level: debug|info|warn|error")
	flag.Parse()

	// 使用第三方 zap 日志库写入文件（带滚动），交互运行同时打到 stderr
	var level zapcore.Level
	if err := level.Set(logLevel); err != nil {
		level = zapcore.DebugLevel
	}
	if err := server.InitLogger(logFile, level, true); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	reg := server.NewRegistry(&server.Metrics{}, server.NewLimits(), server.Log)
	defer reg.Close()
	gw := server.NewGateway(reg, server.Log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)
	// 前后端分离：将 / 映射到 web 目录的静态资源（展示端与控制器页面）
	mux.Handle("/", http.FileServer(http.Dir("web")))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", gw.HandleAdminConfig)
	mux.HandleFunc("/metrics", gw.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("Spacedeck listening on %s; open http://localhost%v/", addr, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）。会话只存在于内存，进程退出即失效
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
}
