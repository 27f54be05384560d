package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/wordfmt/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. WORDFMT_CACHE_BACKEND.
const EnvPrefix = "WORDFMT"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()

	// Provider entries are replaced wholesale by the file.
	v.SetDefault("llm_providers", defaults.LLMProviders)
	v.SetDefault("defaults.llm_provider", defaults.Defaults.LLMProvider)

	v.SetDefault("formatter.model", defaults.Formatter.Model)
	v.SetDefault("formatter.temperature", defaults.Formatter.Temperature)
	v.SetDefault("formatter.max_tokens", defaults.Formatter.MaxTokens)
	v.SetDefault("formatter.timeout", defaults.Formatter.Timeout)

	v.SetDefault("cache.backend", defaults.Cache.Backend)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("cache.capacity", defaults.Cache.Capacity)
	v.SetDefault("cache.sqlite_path", defaults.Cache.SQLitePath)
	v.SetDefault("cache.connect_attempts", defaults.Cache.ConnectAttempts)
	v.SetDefault("cache.writer_queue", defaults.Cache.WriterQueue)
	v.SetDefault("cache.writer_workers", defaults.Cache.WriterWorkers)
	v.SetDefault("cache.redis.address", defaults.Cache.Redis.Address)
	v.SetDefault("cache.redis.password", defaults.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", defaults.Cache.Redis.DB)
	v.SetDefault("cache.redis.key_prefix", defaults.Cache.Redis.KeyPrefix)

	v.SetDefault("uploads.max_bytes", defaults.Uploads.MaxBytes)
	v.SetDefault("uploads.max_pdf_pages", defaults.Uploads.MaxPDFPages)
	v.SetDefault("uploads.retention", defaults.Uploads.Retention)
	v.SetDefault("uploads.dir", defaults.Uploads.Dir)

	v.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with WORDFMT_ prefix; nested keys use underscores
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wordfmt")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cm.reload(e.Name)
	})
	cm.v.WatchConfig()
}

// reload re-reads the config after a change to file and notifies callbacks.
// An empty file is the truncate half of an in-place write and is skipped.
func (cm *Manager) reload(file string) {
	if fi, err := os.Stat(file); err == nil && fi.Size() == 0 {
		slog.Debug("ignoring empty config write", "file", file)
		return
	}
	if err := cm.v.ReadInConfig(); err != nil {
		slog.Warn("ignoring unreadable config change", "file", file, "error", err)
		return
	}
	cfg, err := cm.load()
	if err != nil {
		slog.Warn("ignoring invalid config change", "file", file, "error", err)
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// IsEnvReference reports whether value is exactly one ${ENV_VAR} reference.
func IsEnvReference(value string) bool {
	loc := envPattern.FindStringIndex(value)
	return loc != nil && loc[0] == 0 && loc[1] == len(value)
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys. Providers with an
// unparseable timeout fall back to the client default.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	for name, llm := range c.LLMProviders {
		timeout, _ := parseDuration("timeout", llm.Timeout)
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:    llm.Type,
			Model:   llm.Model,
			APIKey:  ResolveEnvVars(llm.APIKey),
			BaseURL: llm.BaseURL,
			Timeout: timeout,
			Enabled: llm.Enabled,
		}
	}

	return cfg
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.FormatterTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("cache.ttl", c.Cache.TTL); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("uploads.retention", c.Uploads.Retention); err != nil {
		errs = append(errs, err)
	}
	for name, llm := range c.LLMProviders {
		if _, err := parseDuration("llm_providers."+name+".timeout", llm.Timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Formatter.Temperature < 0 || c.Formatter.Temperature > 2 {
		errs = append(errs, fmt.Errorf("invalid formatter.temperature %v: must be between 0 and 2", c.Formatter.Temperature))
	}
	if c.Formatter.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("invalid formatter.max_tokens %d", c.Formatter.MaxTokens))
	}
	if c.Uploads.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("invalid uploads.max_bytes %d", c.Uploads.MaxBytes))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps a log_level value to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wordfmt configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx
# Any key can be overridden with WORDFMT_<SECTION>_<KEY>, e.g. WORDFMT_CACHE_BACKEND=sqlite

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
