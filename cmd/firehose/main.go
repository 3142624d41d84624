package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serverrun "github.com/firehose-io/firehose/internal/cmd/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "firehose",
		Short: "Real-time event fanout server",
		Long:  "Firehose delivers timeline events to WebSocket and SSE clients from the Redis firehose.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the streaming server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			bind, _ := cmd.Flags().GetString("bind")
			port, _ := cmd.Flags().GetInt("port")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			if err := serverrun.Run(context.Background(), serverrun.Options{
				Bind:      bind,
				Port:      port,
				LogLevel:  logLevel,
				LogFormat: logFormat,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("bind", "", "HTTP listen address (default from BIND or 127.0.0.1)")
	serverStartCmd.Flags().Int("port", 0, "HTTP listen port (default from PORT or 4000)")
	serverStartCmd.Flags().String("log-level", os.Getenv("LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
