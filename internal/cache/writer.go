package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CacheWriteError wraps a failed write-back. It is logged, never returned
// to a formatting caller.
type CacheWriteError struct {
	Hash string
	Err  error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write for %s failed: %v", shortHash(e.Hash), e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }

// WriterConfig configures the write-back queue.
type WriterConfig struct {
	Store        Store
	QueueSize    int           // Buffered entries (default: 256)
	Workers      int           // Concurrent writers (default: 2)
	WriteTimeout time.Duration // Per-write deadline (default: 10s)
	Logger       *slog.Logger

	// OnWrite is called after every attempted write with its outcome.
	OnWrite func(hash string, err error)
}

// Writer performs fire-and-forget cache writes on background goroutines.
type Writer struct {
	store        Store
	logger       *slog.Logger
	workers      int
	writeTimeout time.Duration
	onWrite      func(string, error)

	queue chan *Entry

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewWriter creates a writer. Call Start before submitting.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Writer{
		store:        cfg.Store,
		logger:       cfg.Logger,
		workers:      cfg.Workers,
		writeTimeout: cfg.WriteTimeout,
		onWrite:      cfg.OnWrite,
		queue:        make(chan *Entry, cfg.QueueSize),
	}
}

// Start launches the worker goroutines.
func (w *Writer) Start(ctx context.Context) {
	// Writes outlive request contexts; only Stop ends them.
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Stop drains queued writes and waits for the workers to exit.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.queue)
		w.mu.Unlock()

		w.wg.Wait()
		if w.cancel != nil {
			w.cancel()
		}
		w.logger.Info("cache writer stopped")
	})
}

// Submit queues e for writing and returns immediately. It reports false when
// the entry was dropped because the queue is full or the writer is stopped.
func (w *Writer) Submit(e *Entry) bool {
	if e == nil {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.logger.Warn("cache writer stopped, dropping entry", "hash", shortHash(e.InputHash))
		return false
	}

	select {
	case w.queue <- e:
		return true
	default:
		w.logger.Warn("cache write queue full, dropping entry", "hash", shortHash(e.InputHash))
		return false
	}
}

func (w *Writer) run() {
	defer w.wg.Done()
	for e := range w.queue {
		w.write(e)
	}
}

func (w *Writer) write(e *Entry) {
	ctx, cancel := context.WithTimeout(w.ctx, w.writeTimeout)
	defer cancel()

	var err error
	func() {
		// A panicking backend must not take the process down with it.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = w.store.Put(ctx, e)
	}()

	if err != nil {
		werr := &CacheWriteError{Hash: e.InputHash, Err: err}
		w.logger.Error("cache write failed", "backend", w.store.Name(), "error", werr)
	} else {
		w.logger.Debug("result cached", "backend", w.store.Name(), "hash", shortHash(e.InputHash))
	}
	if w.onWrite != nil {
		w.onWrite(e.InputHash, err)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
