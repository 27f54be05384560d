package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const MemoryName = "memory"

// MemoryStore is an in-process LRU store. Expired entries are dropped when
// they are read or when they reach the tail of the LRU list.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

// NewMemoryStore creates a store that keeps at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (s *MemoryStore) Name() string { return MemoryName }

// Get returns a copy of the entry for hash.
func (s *MemoryStore) Get(ctx context.Context, hash string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[hash]
	if !ok {
		return nil, ErrNotFound
	}
	e := el.Value.(*Entry)
	if e.Expired(s.now()) {
		s.order.Remove(el)
		delete(s.items, hash)
		return nil, ErrNotFound
	}

	s.order.MoveToFront(el)
	cp := *e
	return &cp, nil
}

// Put upserts a copy of e.
func (s *MemoryStore) Put(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e == nil || e.InputHash == "" {
		return ErrInvalidKey
	}

	cp := *e

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[e.InputHash]; ok {
		el.Value = &cp
		s.order.MoveToFront(el)
		return nil
	}

	for s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	s.items[e.InputHash] = s.order.PushFront(&cp)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	s.order.Remove(el)
	delete(s.items, el.Value.(*Entry).InputHash)
}

var _ Store = (*MemoryStore)(nil)
