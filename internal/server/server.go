package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/wordfmt/internal/aiformat"
	"github.com/jackzampolin/wordfmt/internal/api"
	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/config"
	"github.com/jackzampolin/wordfmt/internal/downloads"
	"github.com/jackzampolin/wordfmt/internal/extract"
	"github.com/jackzampolin/wordfmt/internal/formatter"
	"github.com/jackzampolin/wordfmt/internal/home"
	"github.com/jackzampolin/wordfmt/internal/metrics"
	"github.com/jackzampolin/wordfmt/internal/providers"
	"github.com/jackzampolin/wordfmt/internal/server/endpoints"
	"github.com/jackzampolin/wordfmt/internal/svcctx"
)

// Server is the main wordfmt HTTP server.
// It owns the cache backend, the write-back queue and the download store,
// opening them on start and releasing them on shutdown.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	home       *home.Dir
	llm        providers.LLMClient
	metrics    *metrics.Recorder
	logger     *slog.Logger

	store     cache.Store
	writer    *cache.Writer
	downloads *downloads.Store

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu       sync.RWMutex
	services *svcctx.Services
	running  bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080, "0" picks a free port)
	Port string
	// Home is the wordfmt home directory (default: ~/.wordfmt)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Defaults apply when nil.
	ConfigManager *config.Manager
	// LLM overrides the configured provider, e.g. with a mock in tests.
	LLM providers.LLMClient
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		llm:       cfg.LLM,
		metrics:   metrics.NewRecorder(metrics.Config{}),
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.withServices(s.logRequests(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Formatting waits on the model.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) config() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

// Init opens the cache backend and download store and builds the
// formatting pipeline. Start calls it; tests may call it directly and
// serve Handler.
func (s *Server) Init(ctx context.Context) error {
	cfg := s.config()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := s.home.EnsureExists(); err != nil {
		return err
	}

	cacheCfg, err := cfg.ToCacheConfig(s.home.Resolve)
	if err != nil {
		return err
	}
	store, err := cache.Open(ctx, cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	writer := cache.NewWriter(cache.WriterConfig{
		Store:     store,
		QueueSize: cacheCfg.WriterQueue,
		Workers:   cacheCfg.WriterWorkers,
		Logger:    s.logger,
		OnWrite: func(_ string, err error) {
			s.metrics.RecordCacheWrite(err)
		},
	})
	writer.Start(ctx)

	dlCfg, err := cfg.ToDownloadsConfig(s.home.Resolve)
	if err != nil {
		s.release(store, writer, nil)
		return err
	}
	if dlCfg.Dir == "" {
		dlCfg.Dir = s.home.DownloadsDir()
	}
	dlCfg.Logger = s.logger
	dl, err := downloads.New(dlCfg)
	if err != nil {
		s.release(store, writer, nil)
		return err
	}
	dl.Start(context.WithoutCancel(ctx))

	llm := s.llm
	if llm == nil {
		llm = providers.NewSelector(s.registry, func() string {
			return s.config().Defaults.LLMProvider
		})
	}
	timeout, _ := cfg.FormatterTimeout()
	ai, err := aiformat.New(aiformat.Config{
		LLM:         llm,
		Model:       cfg.Formatter.Model,
		Temperature: cfg.Formatter.Temperature,
		MaxTokens:   cfg.Formatter.MaxTokens,
		Timeout:     timeout,
		Logger:      s.logger,
	})
	if err != nil {
		s.release(store, writer, dl)
		return err
	}

	svc, err := formatter.New(formatter.Config{
		AI:      ai,
		Store:   store,
		Writer:  writer,
		TTL:     cacheCfg.TTL,
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	if err != nil {
		s.release(store, writer, dl)
		return err
	}

	s.mu.Lock()
	s.store, s.writer, s.downloads = store, writer, dl
	s.services = &svcctx.Services{
		Formatter: svc,
		Extractor: extract.New(extract.Config{
			MaxBytes:    cfg.Uploads.MaxBytes,
			MaxPDFPages: cfg.Uploads.MaxPDFPages,
			Logger:      s.logger,
		}),
		Downloads:     dl,
		Cache:         store,
		Registry:      s.registry,
		Metrics:       s.metrics,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
	}
	s.mu.Unlock()

	s.logger.Info("formatter ready", "engine", cfg.Engine(), "cache", store.Name(), "downloads", dlCfg.Dir)
	return nil
}

// Start initializes the server and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Init(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.httpServer.Addr = ln.Addr().String()
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server, then drains pending cache writes.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.Close()
	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// Close releases the backends opened by Init.
func (s *Server) Close() {
	s.mu.Lock()
	store, writer, dl := s.store, s.writer, s.downloads
	s.store, s.writer, s.downloads, s.services = nil, nil, nil, nil
	s.mu.Unlock()
	s.release(store, writer, dl)
}

func (s *Server) release(store cache.Store, writer *cache.Writer, dl *downloads.Store) {
	if writer != nil {
		writer.Stop()
	}
	if dl != nil {
		dl.Stop()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			s.logger.Error("cache close error", "error", err)
		}
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpServer.Addr
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Metrics returns the metrics recorder.
func (s *Server) Metrics() *metrics.Recorder {
	return s.metrics
}

// Endpoints returns the endpoint registry, for building CLI commands.
func (s *Server) Endpoints() *api.Registry {
	return s.endpointRegistry
}

// Services returns the services built by Init, or nil before Init.
func (s *Server) Services() *svcctx.Services {
	return s.currentServices()
}

func (s *Server) currentServices() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.currentServices(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the formatter isn't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.currentServices() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"success":false,"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
