package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the wordfmt configuration",
	Long: `Manage the wordfmt configuration file.

Settings are read from --config, ./config.yaml or ~/.wordfmt/config.yaml, and
can be overridden with WORDFMT_ environment variables, e.g.
WORDFMT_CACHE_BACKEND=redis.

Examples:
  wordfmt config init        # Write a default config to ~/.wordfmt/config.yaml
  wordfmt config show        # Print the effective configuration
  wordfmt config validate    # Check the configuration`,
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := openConfig(h)
		if err != nil {
			return err
		}
		cfg := *mgr.Get()
		// Keys stay unresolved; only ${VAR} references are shown.
		providers := make(map[string]config.LLMProviderCfg, len(cfg.LLMProviders))
		for name, p := range cfg.LLMProviders {
			if p.APIKey != "" && !config.IsEnvReference(p.APIKey) {
				p.APIKey = "********"
			}
			providers[name] = p
		}
		cfg.LLMProviders = providers
		if cfg.Cache.Redis.Password != "" && !config.IsEnvReference(cfg.Cache.Redis.Password) {
			cfg.Cache.Redis.Password = "********"
		}
		return api.Output(cfg)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		if f := mgr.ConfigFile(); f != "" {
			fmt.Printf("%s: ok\n", f)
		} else {
			fmt.Println("defaults: ok")
		}
		fmt.Printf("Engine: %s\n", mgr.Get().Engine())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
