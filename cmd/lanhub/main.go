// LanHub Server
//
// Features:
// - HTTP file exchange over a single shared directory
// - Multi-user chat with presence over websockets
// - Subnet discovery of other reachable instances
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/config"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/metrics"
	"github.com/lanhub/lanhub/internal/service"
)

func main() {
	cfg := config.Load()

	// Flags override the environment for the knobs operators reach for.
	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	dir := flag.String("dir", cfg.SharedDir, "shared directory (empty = temporary)")
	flag.Parse()
	cfg.ListenAddr = *addr
	cfg.SharedDir = *dir

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("LanHub starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	svc, err := service.New(cfg)
	if err != nil {
		logging.Fatal("init failed", zap.Error(err))
	}
	if err := svc.Start(); err != nil {
		logging.Fatal("start failed", zap.Error(err))
	}

	// Separate metrics listener, so scrapes stay off the main port.
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logging.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		logging.Error("shutdown error", zap.Error(err))
	}
}
