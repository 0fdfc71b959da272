// cmd/iris-server/config.go
// Helper for parsing CLI flags and env vars into ingest.Config,
// gateway.Config and gateway.HTTPConfig so that main.go stays minimal,
// following the same flags > env > defaults merge order as the
// original gateway's config loader.
//
// Environment variables (prefixed IRIS_):
//
//	DB_PATH, LISTEN, HTTP_LISTEN, AUTH_TOKEN, TLS_CERT, TLS_KEY,
//	CACHE_SIZE, BATCH_SIZE, BATCH_TIMEOUT, CHANNEL_CAP,
//	MAX_RECORDS_PER_AGENT, RETENTION_DAYS, CLEANUP_INTERVAL, ENABLE_CLEANUP
package main

import (
	"flag"
	"time"

	"github.com/spf13/viper"

	"github.com/ablate-ai/iris/internal/gateway"
	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/retention"
	"github.com/ablate-ai/iris/internal/writer"
)

type serverConfig struct {
	ingest  ingest.Config
	gateway gateway.Config
	http    gateway.HTTPConfig
}

// loadServerConfig parses flags and env vars once during program start.
func loadServerConfig() serverConfig {
	ingestCfg := ingest.Config{
		Writer:    writer.DefaultConfig(),
		Retention: retention.DefaultConfig(),
	}
	gwCfg := gateway.DefaultConfig()
	httpCfg := gateway.HTTPConfig{ListenAddr: ":8080", EnableMetrics: true}

	v := viper.New()
	v.SetEnvPrefix("IRIS")
	v.AutomaticEnv()

	dbPath := flag.String("db-path", "", "Path to the embedded database file (empty selects memory-only mode)")
	listen := flag.String("listen", gwCfg.ListenAddr, "gRPC ingest listen address (host:port)")
	httpListen := flag.String("http-listen", httpCfg.ListenAddr, "HTTP listen address for the read API and /metrics (empty to disable)")
	tlsCert := flag.String("tls-cert", "", "TLS certificate file (PEM)")
	tlsKey := flag.String("tls-key", "", "TLS key file (PEM)")
	authToken := flag.String("auth-token", "", "Static bearer token required from agents (optional)")
	maxClients := flag.Int("max-clients", gwCfg.MaxClients, "Live-feed subscriber limit (recorded in the gateway config, not enforced)")
	disableMetrics := flag.Bool("no-metrics", false, "Disable the Prometheus /metrics endpoint")

	cacheSize := flag.Int("cache-size", 100, "Per-agent ring cache capacity (cache_size_per_agent)")
	batchSize := flag.Int("batch-size", ingestCfg.Writer.BatchSize, "Writer batch size before a forced commit")
	batchTimeout := flag.Duration("batch-timeout", ingestCfg.Writer.BatchTimeout, "Writer batch timeout before a forced commit")
	channelCap := flag.Int("channel-capacity", ingestCfg.Writer.ChannelCap, "Writer queue capacity (backpressure threshold)")
	maxRecords := flag.Int("max-records-per-agent", ingestCfg.Retention.MaxRecordsPerAgent, "Retention count threshold per agent")
	retentionDays := flag.Int("retention-days", ingestCfg.Retention.RetentionDays, "Retention age threshold in days (0 disables age-based cleanup)")
	cleanupInterval := flag.Duration("cleanup-interval", ingestCfg.Retention.CleanupInterval, "Interval between retention passes")
	disableCleanup := flag.Bool("no-cleanup", false, "Disable the background retention cleaner")

	// ----- merge precedence: flags > env > defaults -------------------------
	// Env values replace the defaults first; flag.Parse below then overwrites
	// them with any flag given explicitly.
	if p := v.GetString("DB_PATH"); p != "" {
		*dbPath = p
	}
	if l := v.GetString("LISTEN"); l != "" {
		*listen = l
	}
	if l := v.GetString("HTTP_LISTEN"); l != "" {
		*httpListen = l
	}
	if tok := v.GetString("AUTH_TOKEN"); tok != "" {
		*authToken = tok
	}
	if c := v.GetString("TLS_CERT"); c != "" {
		*tlsCert = c
	}
	if k := v.GetString("TLS_KEY"); k != "" {
		*tlsKey = k
	}
	if n := v.GetInt("CACHE_SIZE"); n > 0 {
		*cacheSize = n
	}
	if n := v.GetInt("BATCH_SIZE"); n > 0 {
		*batchSize = n
	}
	if d := v.GetDuration("BATCH_TIMEOUT"); d > 0 {
		*batchTimeout = d
	}
	if n := v.GetInt("CHANNEL_CAP"); n > 0 {
		*channelCap = n
	}
	if n := v.GetInt("MAX_RECORDS_PER_AGENT"); n > 0 {
		*maxRecords = n
	}
	if d := v.GetDuration("CLEANUP_INTERVAL"); d > 0 {
		*cleanupInterval = d
	}
	if v.GetString("RETENTION_DAYS") != "" {
		*retentionDays = v.GetInt("RETENTION_DAYS")
	}
	if v.GetString("ENABLE_CLEANUP") != "" {
		*disableCleanup = !v.GetBool("ENABLE_CLEANUP")
	}

	flag.Parse()

	ingestCfg.DBPath = *dbPath
	ingestCfg.CacheSize = *cacheSize
	ingestCfg.Writer.BatchSize = *batchSize
	ingestCfg.Writer.BatchTimeout = *batchTimeout
	ingestCfg.Writer.ChannelCap = *channelCap
	ingestCfg.Retention.MaxRecordsPerAgent = *maxRecords
	ingestCfg.Retention.RetentionDays = *retentionDays
	ingestCfg.Retention.CleanupInterval = *cleanupInterval
	ingestCfg.Retention.Enabled = !*disableCleanup

	gwCfg.ListenAddr = *listen
	gwCfg.AuthToken = *authToken
	gwCfg.MaxClients = *maxClients
	gwCfg.TLSCertPath = *tlsCert
	gwCfg.TLSKeyPath = *tlsKey

	httpCfg.ListenAddr = *httpListen
	httpCfg.EnableMetrics = !*disableMetrics

	// sanity clamp: a cleaner interval under a second would just busy-loop.
	if ingestCfg.Retention.CleanupInterval < time.Second {
		ingestCfg.Retention.CleanupInterval = time.Second
	}

	return serverConfig{ingest: ingestCfg, gateway: gwCfg, http: httpCfg}
}
