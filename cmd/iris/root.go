// cmd/iris/root.go
// Root command for the `iris` CLI. Wires global flags, logger
// initialisation and the server/agent subcommands (spec.md §6's CLI
// surface), following the original CLI's init pattern.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ablate-ai/iris/internal/logging"
)

var (
	logJSON bool

	rootCmd = &cobra.Command{
		Use:   "iris",
		Short: "Iris fleet metrics ingest and storage core",
		Long:  `Iris accepts agent-reported system metrics over gRPC, caches and persists them, and serves them back over an HTTP read API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logging.Initialised() {
				return nil
			}
			return initLogger()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Enable JSON log output (default is human-friendly console)")

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newAgentCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute is called by main.main().
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func initConfig() {
	viper.SetEnvPrefix("IRIS")
	viper.AutomaticEnv()
}

func initLogger() error {
	cfg := zap.NewProductionConfig()
	if !logJSON {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zap.TimeEncoder(func(t time.Time, enc zap.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.RFC3339))
	})

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	logging.Set(logger)
	return nil
}
