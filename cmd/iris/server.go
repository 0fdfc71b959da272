// cmd/iris/server.go
// Implements the `iris server` sub-command: the same ingest server wired
// by cmd/iris-server, exposed as a CLI subcommand so a single binary can
// run either role (spec.md §6's "subcommands agent and server").
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ablate-ai/iris/internal/gateway"
	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/metrics"
	"github.com/ablate-ai/iris/internal/readapi"
	"github.com/ablate-ai/iris/internal/retention"
	"github.com/ablate-ai/iris/internal/writer"
)

func newServerCmd() *cobra.Command {
	var (
		dbPath        string
		listen        string
		httpListen    string
		authToken     string
		tlsCert       string
		tlsKey        string
		cacheSize     int
		batchSize     int
		batchTimeout  time.Duration
		channelCap    int
		maxRecords    int
		retentionDays int
		cleanupEvery  time.Duration
		noCleanup     bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the ingest gRPC service and HTTP read API",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := logging.Logger()

			ingestCfg := ingest.Config{
				DBPath:    dbPath,
				CacheSize: cacheSize,
				Writer: writer.Config{
					BatchSize:    batchSize,
					BatchTimeout: batchTimeout,
					ChannelCap:   channelCap,
					MaxRetries:   writer.DefaultConfig().MaxRetries,
				},
				Retention: retention.Config{
					MaxRecordsPerAgent: maxRecords,
					RetentionDays:      retentionDays,
					CleanupInterval:    cleanupEvery,
					Enabled:            !noCleanup,
				},
			}

			facade, err := ingest.New(ingestCfg)
			if err != nil {
				return err
			}

			gw, err := gateway.New(gateway.Config{
				ListenAddr:  listen,
				AuthToken:   authToken,
				TLSCertPath: tlsCert,
				TLSKeyPath:  tlsKey,
			}, facade)
			if err != nil {
				return err
			}

			var httpSrv *http.Server
			if httpListen != "" {
				mux := http.NewServeMux()
				readapi.New(facade).Mount(mux)
				metrics.Register()
				mux.Handle("/metrics", promhttp.Handler())
				httpSrv = &http.Server{Addr: httpListen, Handler: mux}
				go func() {
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						lg.Warn("http listener error", zap.Error(err))
					}
				}()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				cancel()
			}()

			serveErr := gw.ListenAndServe(ctx)

			shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutCancel()
			if httpSrv != nil {
				_ = httpSrv.Shutdown(shutCtx)
			}
			_ = facade.Shutdown(shutCtx)

			return serveErr
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "Path to the embedded database file (empty selects memory-only mode)")
	cmd.Flags().StringVar(&listen, "listen", gateway.DefaultConfig().ListenAddr, "gRPC ingest listen address (host:port)")
	cmd.Flags().StringVar(&httpListen, "http-listen", ":8080", "HTTP listen address for the read API and /metrics (empty to disable)")
	cmd.Flags().StringVar(&authToken, "auth-token", "", "Static bearer token required from agents (optional)")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "TLS certificate file (PEM)")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "TLS key file (PEM)")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 100, "Per-agent ring cache capacity")
	cmd.Flags().IntVar(&batchSize, "batch-size", writer.DefaultConfig().BatchSize, "Writer batch size before a forced commit")
	cmd.Flags().DurationVar(&batchTimeout, "batch-timeout", writer.DefaultConfig().BatchTimeout, "Writer batch timeout before a forced commit")
	cmd.Flags().IntVar(&channelCap, "channel-capacity", writer.DefaultConfig().ChannelCap, "Writer queue capacity")
	cmd.Flags().IntVar(&maxRecords, "max-records-per-agent", retention.DefaultConfig().MaxRecordsPerAgent, "Retention count threshold per agent")
	cmd.Flags().IntVar(&retentionDays, "retention-days", retention.DefaultConfig().RetentionDays, "Retention age threshold in days (0 disables)")
	cmd.Flags().DurationVar(&cleanupEvery, "cleanup-interval", retention.DefaultConfig().CleanupInterval, "Interval between retention passes")
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "Disable the background retention cleaner")

	return cmd
}
