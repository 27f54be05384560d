// Package formatter runs a formatting request through the cache, the AI
// client and the rebuilder.
package formatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/statekit"
	"golang.org/x/sync/singleflight"

	"github.com/jackzampolin/wordfmt/internal/aiformat"
	"github.com/jackzampolin/wordfmt/internal/cache"
	"github.com/jackzampolin/wordfmt/internal/metrics"
	"github.com/jackzampolin/wordfmt/internal/prompts"
	"github.com/jackzampolin/wordfmt/internal/rebuild"
)

// CachedSuffix is appended to the summary of a cache hit.
const CachedSuffix = " (cached)"

// Config configures a Service.
type Config struct {
	AI      *aiformat.Client // required
	Store   cache.Store      // required
	Writer  *cache.Writer    // nil disables write-back
	TTL     time.Duration    // default: cache.DefaultTTL
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Service formats documents. It is safe for concurrent use.
type Service struct {
	ai      *aiformat.Client
	store   cache.Store
	writer  *cache.Writer
	ttl     time.Duration
	metrics *metrics.Recorder
	logger  *slog.Logger

	machine *statekit.MachineConfig[*run]
	flights singleflight.Group
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.AI == nil {
		return nil, errors.New("formatter: AI client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("formatter: cache store is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	machine, err := newMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to build format state machine: %w", err)
	}

	return &Service{
		ai:      cfg.AI,
		store:   cfg.Store,
		writer:  cfg.Writer,
		ttl:     cfg.TTL,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		machine: machine,
	}, nil
}

// Format runs req through the pipeline. Errors are *InvalidInputError,
// *aiformat.ServiceError or *aiformat.ParseError; cache failures are logged
// and never returned.
//
// Concurrent misses for the same input share a single AI call.
func (s *Service) Format(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		t := newTracker(s.machine)
		_ = t.advance(evInvalid)
		s.metrics.Begin()(metrics.OutcomeInvalid)
		s.logger.Warn("rejected format request", "state", t.current(), "error", err)
		return nil, err
	}

	hash := req.CacheKey()
	ch := s.flights.DoChan(hash, func() (any, error) {
		// The shared call outlives any single caller's cancellation.
		return s.run(context.WithoutCancel(ctx), req, hash)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(*Result).clone()
		if res.Shared {
			s.logger.Debug("shared in-flight format", "hash", shortHash(hash))
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) run(ctx context.Context, req Request, hash string) (*Result, error) {
	finish := s.metrics.Begin()
	t := newTracker(s.machine)
	logger := s.logger.With("hash", shortHash(hash))

	res, outcome, err := s.pipeline(ctx, t, logger, req, hash)
	finish(outcome)

	if err != nil {
		logger.Error("format failed", "state", t.current(), "states", t.states, t.timings(), "error", err)
		return nil, err
	}
	res.States = t.states
	logger.Info("format complete", "cached", res.Cached, "states", len(t.states), t.timings())
	return res, nil
}

func (s *Service) pipeline(ctx context.Context, t *tracker, logger *slog.Logger, req Request, hash string) (*Result, metrics.Outcome, error) {
	// Validated by Format; the machine still records the hop.
	if err := t.advance(evHash); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	if err := t.advance(evLookup); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}

	if entry := s.lookup(ctx, logger, hash); entry != nil {
		if err := t.advance(evHit); err != nil {
			return nil, metrics.OutcomeServiceError, err
		}
		res := &Result{
			Success:          true,
			Cached:           true,
			FormattingRules:  entry.FormattingRules,
			FormattedContent: entry.FormattedContent,
			Summary:          entry.Summary + CachedSuffix,
			InputHash:        hash,
		}
		if err := t.advance(evDone); err != nil {
			return nil, metrics.OutcomeServiceError, err
		}
		return res, metrics.OutcomeHit, nil
	}

	for _, ev := range []statekit.EventType{evMiss, evPrompt} {
		if err := t.advance(ev); err != nil {
			return nil, metrics.OutcomeServiceError, err
		}
	}
	prompt, err := prompts.Build(req.promptRequest())
	if err != nil {
		_ = t.advance(evFail)
		return nil, metrics.OutcomeServiceError, fmt.Errorf("failed to build prompt: %w", err)
	}
	logger.Debug("prompt built", "source", prompts.SourceOf(req.promptRequest()), "chars", len(prompt))

	if err := t.advance(evCall); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	completion, err := s.ai.Complete(ctx, prompt)
	if err != nil {
		s.recordCall(hash, nil, err)
		_ = t.advance(evFail)
		return nil, metrics.OutcomeServiceError, err
	}

	if err := t.advance(evParse); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	out, err := s.ai.Decode(completion)
	s.recordCall(hash, completion, err)
	if err != nil {
		_ = t.advance(evFail)
		return nil, metrics.OutcomeParseError, err
	}

	if err := t.advance(evRebuild); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	doc := rebuild.Rebuild(out.FormattedContent, out.FormattingRules, req.TOC())

	res := &Result{
		Success:          true,
		Cached:           false,
		FormattingRules:  out.FormattingRules,
		TableOfContents:  out.TableOfContents,
		FormattedContent: out.FormattedContent,
		Summary:          out.Summary,
		InputHash:        hash,
		Document:         doc,
	}

	if err := t.advance(evWrite); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	s.writeBack(logger, hash, out)

	if err := t.advance(evDone); err != nil {
		return nil, metrics.OutcomeServiceError, err
	}
	return res, metrics.OutcomeMiss, nil
}

// lookup returns the cached entry, or nil on a miss. A failing store is
// treated as a miss.
func (s *Service) lookup(ctx context.Context, logger *slog.Logger, hash string) *cache.Entry {
	entry, err := s.store.Get(ctx, hash)
	switch {
	case err == nil:
		s.metrics.RecordCacheLookup(s.store.Name(), true)
		logger.Info("cache hit")
		return entry
	case errors.Is(err, cache.ErrNotFound):
		logger.Debug("cache miss")
	default:
		logger.Warn("cache read failed, continuing uncached", "backend", s.store.Name(), "error", err)
	}
	s.metrics.RecordCacheLookup(s.store.Name(), false)
	return nil
}

// writeBack queues the result without waiting for the store.
func (s *Service) writeBack(logger *slog.Logger, hash string, out *aiformat.Output) {
	if s.writer == nil {
		return
	}
	entry := cache.NewEntry(hash, out.FormattedContent, out.FormattingRules, out.Summary, s.ttl)
	if !s.writer.Submit(entry) {
		logger.Warn("cache write not queued")
	}
}

func (s *Service) recordCall(hash string, c *aiformat.Completion, err error) {
	m := metrics.Metric{
		InputHash: hash,
		Provider:  s.ai.Provider(),
		Success:   err == nil,
	}
	if c != nil {
		m.RequestID = c.RequestID
		m.Provider = c.Provider
		m.Model = c.Model
		m.CostUSD = c.CostUSD
		m.PromptTokens = c.PromptTokens
		m.CompletionTokens = c.CompletionTokens
		m.TotalTokens = c.TotalTokens
		m.ExecutionSeconds = c.Duration.Seconds()
	}
	var (
		svc   *aiformat.ServiceError
		parse *aiformat.ParseError
	)
	switch {
	case errors.As(err, &svc):
		m.ErrorType = "service"
	case errors.As(err, &parse):
		m.ErrorType = "parse"
	case err != nil:
		m.ErrorType = "other"
	}
	s.metrics.RecordLLMCall(m)
}

// Lookup returns the unexpired cache entry for hash.
func (s *Service) Lookup(ctx context.Context, hash string) (*cache.Entry, error) {
	return s.store.Get(ctx, hash)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
