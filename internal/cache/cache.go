// Package cache stores formatting results keyed by a content hash of the
// request that produced them.
//
// Entries expire passively: every backend compares ExpiresAt against the
// current time on read and reports an expired entry as ErrNotFound. Nothing
// sweeps the store in the background.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackzampolin/wordfmt/internal/rules"
)

// DefaultTTL is how long a formatting result stays readable.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrNotFound is returned for missing and expired entries.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidKey is returned when an entry has no input hash.
	ErrInvalidKey = errors.New("invalid cache key")
)

// Entry is a cached formatting result.
type Entry struct {
	InputHash        string      `json:"inputHash"`
	FormattedContent string      `json:"formattedContent"`
	FormattingRules  rules.Rules `json:"formattingRules"`
	Summary          string      `json:"summary"`
	CreatedAt        time.Time   `json:"createdAt"`
	ExpiresAt        time.Time   `json:"expiresAt"`
}

// Expired reports whether the entry is no longer readable at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// NewEntry builds an entry that expires ttl after now.
func NewEntry(hash, content string, r rules.Rules, summary string, ttl time.Duration) *Entry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Entry{
		InputHash:        hash,
		FormattedContent: content,
		FormattingRules:  r,
		Summary:          summary,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
}

// Store is a content-addressed result store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for hash, or ErrNotFound if it is missing or expired.
	Get(ctx context.Context, hash string) (*Entry, error)

	// Put upserts the entry by its InputHash.
	Put(ctx context.Context, e *Entry) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Name returns the backend identifier.
	Name() string

	Close() error
}
