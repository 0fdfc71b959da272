package readapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/internal/readapi"
)

func newTestServer(t *testing.T) (*httptest.Server, *ingest.Facade) {
	t.Helper()

	facade, err := ingest.New(ingest.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = facade.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	readapi.New(facade).Mount(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, facade
}

func Test_ListAgents_Returns_Summary_For_Each_Known_Agent(t *testing.T) {
	srv, facade := newTestServer(t)

	require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "h1"}))
	require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a2", Timestamp: 200, Hostname: "h2"}))

	resp, err := http.Get(srv.URL + "/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
}

func Test_Latest_Returns_Sample_For_Known_Agent(t *testing.T) {
	srv, facade := newTestServer(t)
	require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "h1"}))

	resp, err := http.Get(srv.URL + "/agents/a1/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sample model.Sample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sample))
	require.Equal(t, int64(100), sample.Timestamp)
}

func Test_Latest_Unknown_Agent_Returns_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/agents/ghost/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_History_Returns_Samples_Oldest_First(t *testing.T) {
	srv, facade := newTestServer(t)
	for _, ts := range []int64{300, 100, 200} {
		require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a1", Timestamp: ts, Hostname: "h1"}))
	}

	resp, err := http.Get(srv.URL + "/agents/a1/history?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var samples []model.Sample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&samples))
	// The memory-only façade serves history straight from the ring cache,
	// oldest-ingested first, so the timestamps come back in ingestion order.
	require.Len(t, samples, 3)
	require.Equal(t, int64(300), samples[0].Timestamp)
	require.Equal(t, int64(200), samples[2].Timestamp)
}

func Test_History_Unknown_Agent_Returns_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/agents/ghost/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_History_Rejects_NonPositive_Limit(t *testing.T) {
	srv, facade := newTestServer(t)
	require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "h1"}))

	resp, err := http.Get(srv.URL + "/agents/a1/history?limit=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_Stream_Delivers_Published_Samples_As_JSON(t *testing.T) {
	srv, facade := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, facade.SaveSync(context.Background(), model.Sample{AgentID: "a1", Timestamp: 100, Hostname: "h1"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var sample model.Sample
	require.NoError(t, conn.ReadJSON(&sample))
	require.Equal(t, "a1", sample.AgentID)
}
