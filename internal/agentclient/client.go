// internal/agentclient/client.go
// Package agentclient implements a minimal agent-side reporter for the
// ingest gRPC service. It samples nothing itself (collection is out of
// scope); callers hand it a model.Sample and it streams it to the gateway,
// reconnecting with jittered exponential back-off on failure, grounded in
// internal/agent/exporter/grpc_exporter.go.
package agentclient

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ablate-ai/iris/internal/ingestpb"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/util"
)

// Config defines connection parameters for the agent reporter.
//
//   - Addr is host:port of the ingest gateway.
//   - AgentID, if empty, is derived as hostname + "-" + a ULID suffix so
//     that two agents on the same host never collide (spec.md §9's
//     self-identification open question, resolved client-side).
//   - AuthToken, if non-empty, is sent as gRPC metadata
//     "authorization: Bearer <token>".
//   - Insecure disables TLS (useful for local/dev gateways); production
//     deployments should leave it false and rely on the default TLS dial
//     option.
//   - StreamRetry controls reconnection policy; nil selects a default
//     (500ms initial, 15s cap, unbounded elapsed time since a live agent
//     should never give up permanently).
type Config struct {
	Addr        string
	AgentID     string
	AuthToken   string
	Insecure    bool
	DialOpts    []grpc.DialOption
	StreamRetry backoff.BackOff
}

func (c Config) resolveAgentID() string {
	if c.AgentID != "" {
		return c.AgentID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return host + "-" + util.MustNew()
}

// Client maintains a bidirectional StreamReport stream to the ingest
// gateway and reconnects transparently across Send failures.
type Client struct {
	cfg     Config
	agentID string

	client ingestpb.IngestServiceClient
	conn   *grpc.ClientConn
	stream ingestpb.IngestService_StreamReportClient

	closing chan struct{}
}

// Dial connects to the gateway and opens the report stream. The call
// blocks until the first successful handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		agentID: cfg.resolveAgentID(),
		closing: make(chan struct{}),
	}
	if cfg.StreamRetry == nil {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 500 * time.Millisecond
		bo.MaxInterval = 15 * time.Second
		bo.MaxElapsedTime = 0 // retry forever; a live agent never gives up
		c.cfg.StreamRetry = bo
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// AgentID returns the id this client reports under.
func (c *Client) AgentID() string { return c.agentID }

// Send streams one sample, reconnecting once and retrying if the stream
// has gone bad.
func (c *Client) Send(ctx context.Context, sample model.Sample) error {
	sample.AgentID = c.agentID
	if c.stream == nil {
		if err := c.connect(ctx); err != nil {
			return err
		}
	}
	if err := c.stream.Send(ingestpb.FromModel(sample)); err != nil {
		if rerr := c.reconnect(ctx); rerr != nil {
			return err
		}
		return c.stream.Send(ingestpb.FromModel(sample))
	}
	return nil
}

// Report sends one sample via the unary RPC and waits for save_sync's
// result, bypassing the persistent stream entirely.
func (c *Client) Report(ctx context.Context, sample model.Sample) error {
	sample.AgentID = c.agentID
	_, err := c.client.Report(ctx, ingestpb.FromModel(sample), grpc.CallContentSubtype(ingestpb.CallContentSubtype))
	return err
}

// Heartbeat asks the gateway for its wall clock.
func (c *Client) Heartbeat(ctx context.Context) (*ingestpb.HeartbeatResponse, error) {
	return c.client.Heartbeat(ctx, &ingestpb.HeartbeatRequest{}, grpc.CallContentSubtype(ingestpb.CallContentSubtype))
}

// Close terminates the stream and the underlying connection.
func (c *Client) Close() error {
	close(c.closing)
	if c.stream != nil {
		_ = c.stream.CloseSend()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	var dialOpts []grpc.DialOption
	if c.cfg.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	// Caller-supplied options come after the default credentials, so
	// transport credentials among them take precedence.
	dialOpts = append(dialOpts, c.cfg.DialOpts...)
	dialOpts = append(dialOpts, grpc.WithBlock())

	conn, err := grpc.DialContext(ctx, c.cfg.Addr, dialOpts...)
	if err != nil {
		return err
	}
	client := ingestpb.NewIngestServiceClient(conn)

	md := metadata.New(nil)
	if c.cfg.AuthToken != "" {
		md.Set("authorization", "Bearer "+c.cfg.AuthToken)
	}
	streamCtx := metadata.NewOutgoingContext(ctx, md)
	stream, err := client.StreamReport(streamCtx, grpc.CallContentSubtype(ingestpb.CallContentSubtype))
	if err != nil {
		_ = conn.Close()
		return err
	}
	// The gateway sends one ack as soon as the stream is established
	// (spec.md §6); consume it before handing the stream to callers.
	if _, err := stream.Recv(); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.client = client
	c.stream = stream
	return nil
}

func (c *Client) reconnect(ctx context.Context) error {
	if c.stream != nil {
		_ = c.stream.CloseSend()
		c.stream = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	bo := c.cfg.StreamRetry
	bo.Reset()
	for {
		next := bo.NextBackOff()
		if next == backoff.Stop {
			return context.DeadlineExceeded
		}
		select {
		case <-time.After(next):
		case <-c.closing:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := c.connect(ctx); err == nil {
			return nil
		}
	}
}
