package config

import (
	"fmt"
	"time"

	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/downloads"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/providers"
)

// Config holds wordfmt configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Formatter    FormatterCfg              `mapstructure:"formatter" yaml:"formatter"`
	Cache        CacheCfg                  `mapstructure:"cache" yaml:"cache"`
	Uploads      UploadsCfg                `mapstructure:"uploads" yaml:"uploads"`
	LogLevel     string                    `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`         // "openrouter" or "openai"
	Model   string `mapstructure:"model" yaml:"model"`       // Model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Optional gateway override
	Timeout string `mapstructure:"timeout" yaml:"timeout"`   // HTTP timeout, e.g. "180s"
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider"`
}

// FormatterCfg tunes the formatting call.
type FormatterCfg struct {
	Model       string  `mapstructure:"model" yaml:"model"` // Empty uses the provider's model
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     string  `mapstructure:"timeout" yaml:"timeout"`
}

// CacheCfg selects the result cache backend.
type CacheCfg struct {
	Backend         string   `mapstructure:"backend" yaml:"backend"` // memory, sqlite, redis
	TTL             string   `mapstructure:"ttl" yaml:"ttl"`
	Capacity        int      `mapstructure:"capacity" yaml:"capacity"`
	SQLitePath      string   `mapstructure:"sqlite_path" yaml:"sqlite_path"` // Relative paths resolve against the home dir
	Redis           RedisCfg `mapstructure:"redis" yaml:"redis"`
	ConnectAttempts uint     `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	WriterQueue     int      `mapstructure:"writer_queue" yaml:"writer_queue"`
	WriterWorkers   int      `mapstructure:"writer_workers" yaml:"writer_workers"`
}

// RedisCfg holds Redis connection settings.
type RedisCfg struct {
	Address   string `mapstructure:"address" yaml:"address"`
	Password  string `mapstructure:"password" yaml:"password"` // supports ${ENV_VAR} syntax
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// UploadsCfg limits uploads and generated downloads.
type UploadsCfg struct {
	MaxBytes    int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxPDFPages int    `mapstructure:"max_pdf_pages" yaml:"max_pdf_pages"`
	Retention   string `mapstructure:"retention" yaml:"retention"`
	Dir         string `mapstructure:"dir" yaml:"dir"` // Relative paths resolve against the home dir
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    providers.OpenRouterName,
				Model:   providers.DefaultModel,
				APIKey:  "${OPENROUTER_API_KEY}",
				Timeout: "180s",
				Enabled: true,
			},
			"openai": {
				Type:    providers.OpenAIName,
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Timeout: "180s",
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openrouter",
		},
		Formatter: FormatterCfg{
			Temperature: 0.3,
			MaxTokens:   16000,
			Timeout:     "120s",
		},
		Cache: CacheCfg{
			Backend:         cache.MemoryName,
			TTL:             "168h",
			Capacity:        1000,
			SQLitePath:      "cache.db",
			ConnectAttempts: 5,
			WriterQueue:     256,
			WriterWorkers:   2,
			Redis: RedisCfg{
				Address:   "localhost:6379",
				KeyPrefix: "wordfmt:",
			},
		},
		Uploads: UploadsCfg{
			MaxBytes:    extract.DefaultMaxBytes,
			MaxPDFPages: 200,
			Retention:   "60m",
			Dir:         "downloads",
		},
		LogLevel: "info",
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Engine names the provider and model that answer format requests,
// e.g. "openrouter/google/gemini-2.5-flash".
func (c *Config) Engine() string {
	name := c.Defaults.LLMProvider
	model := c.Formatter.Model
	if p, ok := c.LLMProviders[name]; ok && model == "" {
		model = p.Model
	}
	if model == "" {
		return name
	}
	return name + "/" + model
}

// FormatterTimeout returns the per-call deadline; zero means none.
func (c *Config) FormatterTimeout() (time.Duration, error) {
	return parseDuration("formatter.timeout", c.Formatter.Timeout)
}

// ToCacheConfig converts the cache section. resolvePath maps relative paths.
func (c *Config) ToCacheConfig(resolvePath func(string) string) (cache.Config, error) {
	ttl, err := parseDuration("cache.ttl", c.Cache.TTL)
	if err != nil {
		return cache.Config{}, err
	}
	path := c.Cache.SQLitePath
	if path != "" && resolvePath != nil {
		path = resolvePath(path)
	}
	return cache.Config{
		Backend:    c.Cache.Backend,
		TTL:        ttl,
		Capacity:   c.Cache.Capacity,
		SQLitePath: path,
		Redis: cache.RedisConfig{
			Address:   c.Cache.Redis.Address,
			Password:  ResolveEnvVars(c.Cache.Redis.Password),
			DB:        c.Cache.Redis.DB,
			KeyPrefix: c.Cache.Redis.KeyPrefix,
		},
		ConnectAttempts: c.Cache.ConnectAttempts,
		WriterQueue:     c.Cache.WriterQueue,
		WriterWorkers:   c.Cache.WriterWorkers,
	}, nil
}

// ToDownloadsConfig converts the uploads section. resolvePath maps relative
// paths.
func (c *Config) ToDownloadsConfig(resolvePath func(string) string) (downloads.Config, error) {
	retention, err := parseDuration("uploads.retention", c.Uploads.Retention)
	if err != nil {
		return downloads.Config{}, err
	}
	dir := c.Uploads.Dir
	if dir != "" && resolvePath != nil {
		dir = resolvePath(dir)
	}
	return downloads.Config{Dir: dir, Retention: retention}, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, value)
	}
	return d, nil
}
