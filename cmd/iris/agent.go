// cmd/iris/agent.go
// Implements the `iris agent` sub-command: a reference reporter that
// connects to an ingest gateway and streams a minimal self-metrics Sample
// on --report-interval (spec.md §6). Real OS-level collection (CPU,
// memory, disk, network) is out of scope for the storage core; this
// subcommand exists to give internal/agentclient, and therefore the
// ingest RPC, an actual long-running caller.
package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ablate-ai/iris/internal/agentclient"
	"github.com/ablate-ai/iris/internal/logging"
	"github.com/ablate-ai/iris/internal/model"
	"github.com/ablate-ai/iris/pkg/version"
)

func newAgentCmd() *cobra.Command {
	var (
		connectAddr    string
		agentID        string
		authToken      string
		insecure       bool
		reportInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Report this host's presence to an ingest gateway on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.Sugar()

			hostname := os.Getenv("IRIS_HOSTNAME")
			if hostname == "" {
				h, err := os.Hostname()
				if err != nil {
					h = "unknown-host"
				}
				hostname = h
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			client, err := agentclient.Dial(ctx, agentclient.Config{
				Addr:      connectAddr,
				AgentID:   agentID,
				AuthToken: authToken,
				Insecure:  insecure,
			})
			cancel()
			if err != nil {
				return err
			}
			defer client.Close()

			log.Infow("agent connected", "agent_id", client.AgentID(), "gateway", connectAddr)

			ticker := time.NewTicker(reportInterval)
			defer ticker.Stop()

			var dropped uint64
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					sample := model.Sample{
						Timestamp: time.Now().UnixMilli(),
						Hostname:  hostname,
						System: &model.SystemMetrics{
							Agent: &model.AgentSelfMetrics{
								VersionString: version.String(),
								DroppedTotal:  dropped,
							},
						},
					}
					if err := client.Send(cmd.Context(), sample); err != nil {
						dropped++
						log.Warnw("report failed", "err", err, "dropped_total", dropped)
						continue
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&connectAddr, "connect", "127.0.0.1:4317", "Ingest gateway address (host:port)")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Explicit agent id (default hostname + ULID suffix)")
	cmd.Flags().StringVar(&authToken, "auth-token", "", "Bearer token to present to the gateway (optional)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Disable TLS when dialing the gateway")
	cmd.Flags().DurationVar(&reportInterval, "report-interval", 10*time.Second, "Interval between reports")

	return cmd
}
