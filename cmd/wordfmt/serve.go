package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/config"
	"github.com/jackzampolin/wordfmt/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wordfmt server",
	Long: `Start the wordfmt HTTP server.

The server opens the configured cache backend (memory, sqlite or redis) and
the download store, then serves the formatting API. Formatted .docx files are
removed once their retention period ends. Configuration changes are picked up
without a restart.

The server provides:
  - POST /api/format         - Format HTML content
  - POST /api/format/upload  - Format an uploaded file into a .docx download
  - /health, /ready, /status - Health checks
  - /metrics                 - Prometheus metrics

Examples:
  wordfmt serve                    # Start on default port 8080
  wordfmt serve --port 3000        # Start on custom port
  wordfmt serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		logger, err := newLogger(mgr.Get())
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		if f := mgr.ConfigFile(); f != "" {
			logger.Info("loaded config", "file", f)
			mgr.WatchConfig()
			mgr.OnChange(func(c *config.Config) {
				if err := c.Validate(); err != nil {
					logger.Warn("reloaded config is invalid", "error", err)
				}
			})
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
