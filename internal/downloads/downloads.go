// Package downloads keeps generated documents on disk for a limited time
// and hands out opaque IDs for fetching them.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRetention     = 60 * time.Minute
	DefaultSweepInterval = time.Minute
)

var (
	ErrNotFound  = errors.New("download not found")
	ErrInvalidID = errors.New("invalid download id")
)

// File describes a stored download.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	path string
}

// Path returns the file's location on disk.
func (f *File) Path() string { return f.path }

// Config configures a Store.
type Config struct {
	Dir           string        // required
	Retention     time.Duration // default: DefaultRetention
	SweepInterval time.Duration // default: DefaultSweepInterval
	Logger        *slog.Logger
}

// Store holds generated files until they expire.
type Store struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	files map[string]*File

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates the download directory and removes files left over from a
// previous run.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("downloads: dir is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}

	s := &Store{
		dir:       cfg.Dir,
		retention: cfg.Retention,
		interval:  cfg.SweepInterval,
		logger:    cfg.Logger,
		now:       time.Now,
		files:     make(map[string]*File),
		stop:      make(chan struct{}),
	}
	s.removeOrphans()
	return s, nil
}

// Save writes data under a fresh ID. name is the filename offered to the
// client.
func (s *Store) Save(name, contentType string, data []byte) (*File, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+strings.ToLower(filepath.Ext(name)))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write download: %w", err)
	}

	now := s.now()
	f := &File{
		ID:          id,
		Name:        SafeName(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   now.UTC(),
		ExpiresAt:   now.Add(s.retention).UTC(),
		path:        path,
	}

	s.mu.Lock()
	s.files[id] = f
	s.mu.Unlock()

	s.logger.Debug("download stored", "id", id, "name", f.Name, "size", f.Size)
	return f, nil
}

// Get returns an unexpired file. Expired files are removed on access.
func (s *Store) Get(id string) (*File, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	f, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(f.ExpiresAt) {
		s.Remove(id)
		return nil, ErrNotFound
	}
	c := *f
	return &c, nil
}

// Remove deletes a file immediately.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	f, ok := s.files[id]
	delete(s.files, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove download", "id", id, "error", err)
	}
}

// List returns the unexpired files, oldest first.
func (s *Store) List() []File {
	now := s.now()
	s.mu.RLock()
	out := make([]File, 0, len(s.files))
	for _, f := range s.files {
		if now.Before(f.ExpiresAt) {
			out = append(out, *f)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sweep removes every expired file and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	var expired []string
	s.mu.RLock()
	for id, f := range s.files {
		if !now.Before(f.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.Remove(id)
	}
	if len(expired) > 0 {
		s.logger.Info("removed expired downloads", "count", len(expired))
	}
	return len(expired)
}

// Start runs the janitor until ctx is cancelled or Stop is called.
func (s *Store) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop halts the janitor and waits for it to exit. Stored files are kept
// until the next New on the same directory.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// removeOrphans deletes files named like downloads that no index refers to.
func (s *Store) removeOrphans() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to scan downloads directory", "dir", s.dir, "error", err)
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, err := uuid.Parse(base); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("removed stale downloads", "count", removed)
	}
}

// SafeName strips path separators and characters Windows rejects.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = strings.Trim(replacer.Replace(name), " .")
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	if name == "" || name == "/" {
		return "document"
	}
	return name
}

// FormattedName returns the download name for a formatted copy of src,
// e.g. "report.pdf" becomes "report_formatted.docx".
func FormattedName(src string) string {
	base := SafeName(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "document" {
		return "formatted_document.docx"
	}
	return base + "_formatted.docx"
}
