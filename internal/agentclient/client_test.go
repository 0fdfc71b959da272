package agentclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ablate-ai/iris/internal/agentclient"
	"github.com/ablate-ai/iris/internal/gateway"
	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/ingestpb"
	"github.com/ablate-ai/iris/internal/model"
)

const bufSize = 1 << 20

func startTestGateway(t *testing.T) (*ingest.Facade, *bufconn.Listener) {
	t.Helper()

	facade, err := ingest.New(ingest.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = facade.Shutdown(context.Background()) })

	srv, err := gateway.New(gateway.DefaultConfig(), facade)
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	grpcSrv := grpc.NewServer()
	ingestpb.RegisterIngestServiceServer(grpcSrv, srv)
	go func() { _ = grpcSrv.Serve(lis) }()
	t.Cleanup(grpcSrv.Stop)

	return facade, lis
}

func dialClient(t *testing.T, lis *bufconn.Listener, cfg agentclient.Config) *agentclient.Client {
	t.Helper()

	cfg.Insecure = true
	cfg.DialOpts = append(cfg.DialOpts,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := agentclient.Dial(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func Test_Client_AgentID_Defaults_To_Hostname_Plus_ULID_Suffix(t *testing.T) {
	_, lis := startTestGateway(t)
	c := dialClient(t, lis, agentclient.Config{Addr: "bufnet"})

	require.NotEmpty(t, c.AgentID())
	require.Contains(t, c.AgentID(), "-")
}

func Test_Client_AgentID_Honors_Explicit_Config(t *testing.T) {
	_, lis := startTestGateway(t)
	c := dialClient(t, lis, agentclient.Config{Addr: "bufnet", AgentID: "agent-7"})

	require.Equal(t, "agent-7", c.AgentID())
}

func Test_Client_Send_Persists_Sample_Via_Facade(t *testing.T) {
	facade, lis := startTestGateway(t)
	c := dialClient(t, lis, agentclient.Config{Addr: "bufnet", AgentID: "agent-1"})

	err := c.Send(context.Background(), model.Sample{Timestamp: 1000, Hostname: "host-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := facade.Latest(context.Background(), "agent-1")
		return err == nil && s.Timestamp == 1000
	}, time.Second, 10*time.Millisecond)
}

func Test_Client_Report_Persists_Sample_Synchronously(t *testing.T) {
	facade, lis := startTestGateway(t)
	c := dialClient(t, lis, agentclient.Config{Addr: "bufnet", AgentID: "agent-2"})

	err := c.Report(context.Background(), model.Sample{Timestamp: 2000, Hostname: "host-2"})
	require.NoError(t, err)

	s, err := facade.Latest(context.Background(), "agent-2")
	require.NoError(t, err)
	require.Equal(t, int64(2000), s.Timestamp)
}

func Test_Client_Heartbeat_Returns_Server_Time(t *testing.T) {
	_, lis := startTestGateway(t)
	c := dialClient(t, lis, agentclient.Config{Addr: "bufnet"})

	resp, err := c.Heartbeat(context.Background())
	require.NoError(t, err)
	require.Greater(t, resp.ServerTimeMs, int64(0))
}
