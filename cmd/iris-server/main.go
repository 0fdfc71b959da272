// cmd/iris-server/main.go
// Binary entrypoint for the standalone Iris ingest server. It wires the
// ingest façade (C1-C5), the gRPC ingest service, the HTTP read API and
// /metrics, and shuts all of it down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ablate-ai/iris/internal/gateway"
	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/metrics"
	"github.com/ablate-ai/iris/internal/readapi"
)

func main() {
	cfg := loadServerConfig()

	lg, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap: %v", err)
	}
	logging.Set(lg)
	defer lg.Sync()

	facade, err := ingest.New(cfg.ingest)
	if err != nil {
		lg.Fatal("ingest init", zap.Error(err))
	}

	gw, err := gateway.New(cfg.gateway, facade)
	if err != nil {
		lg.Fatal("gateway init", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		lg.Info("signal received, shutting down")
		cancel()
	}()

	var httpSrv *http.Server
	if cfg.http.ListenAddr != "" {
		httpSrv = startHTTP(lg, facade, cfg.http)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- gw.ListenAndServe(ctx) }()

	select {
	case err := <-serveErr:
		if err != nil {
			lg.Error("gateway serve", zap.Error(err))
		}
	case <-ctx.Done():
		<-serveErr
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()

	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutCtx)
	}
	if err := facade.Shutdown(shutCtx); err != nil {
		lg.Warn("facade shutdown", zap.Error(err))
	}

	lg.Info("goodbye")
}

// startHTTP serves the read API and, when enabled, /metrics, in its own
// goroutine. It mirrors the original gateway's listener split between gRPC
// (binary) and HTTP (JSON/WebSocket/Prometheus) ports.
func startHTTP(lg *zap.Logger, facade *ingest.Facade, cfg gateway.HTTPConfig) *http.Server {
	mux := http.NewServeMux()
	readapi.New(facade).Mount(mux)
	if cfg.EnableMetrics {
		metrics.Register()
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // the /stream endpoint holds connections open indefinitely
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Warn("http listener error", zap.Error(err))
		}
	}()
	lg.Info("HTTP listener started", zap.String("addr", cfg.ListenAddr))
	return srv
}
