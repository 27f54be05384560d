package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/config"
	"github.com/jackzampolin/wordfmt/internal/home"
	"github.com/jackzampolin/wordfmt/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "wordfmt",
	Short: "AI-assisted document formatter",
	Long: `wordfmt reformats documents to a requirements document or free-form
instructions using an LLM, and rebuilds them as Word (.docx) files.

Results are cached by input hash, so formatting the same document with the
same instructions twice costs a single model call.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.wordfmt/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "wordfmt home directory (default: ~/.wordfmt)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level override: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory selected by --home.
func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// openConfig reads --config, falling back to the home directory's
// config.yaml when --home is set.
func openConfig(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && homeDir != "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}

// loadConfig is openConfig plus validation.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	mgr, err := openConfig(h)
	if err != nil {
		return nil, err
	}
	if err := mgr.Get().Validate(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// newLogger builds the process logger. --log-level wins over the config.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	name := cfg.LogLevel
	if logLevel != "" {
		name = logLevel
	}
	level, err := config.ParseLogLevel(name)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
