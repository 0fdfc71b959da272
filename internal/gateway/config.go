// internal/gateway/config.go
// Config for the gRPC ingest server. Filled in by cmd/iris-server from
// flags and IRIS_-prefixed env vars (read via viper) with flags > env >
// defaults precedence, following the same merge order as the original
// gateway's config loader.
package gateway

// Config parameterizes a Server.
type Config struct {
	ListenAddr string      // host:port the gRPC ingest service binds to
	AuthToken  string      // optional static bearer token ("" means open)
	JWT        JWTConfig   // optional JWT auth, takes precedence over AuthToken
	MaxClients int         // intended subscriber cap; stored only, nothing enforces it

	TLSCertPath string // path to TLS certificate (PEM); empty disables TLS
	TLSKeyPath  string // path to TLS key (PEM)
}

// HTTPConfig parameterizes the sibling HTTP listener serving /metrics and,
// when built with internal/readapi wired in, the read API and /stream feed.
type HTTPConfig struct {
	ListenAddr    string
	EnableMetrics bool
}

// DefaultConfig returns the documented defaults for a Server.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":4317",
		MaxClients: 128,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.MaxClients <= 0 {
		c.MaxClients = d.MaxClients
	}
	return c
}
