// Package cache provides the in-process TTL cache shared by every
// source adapter and the aggregation engine. Values are stored as-is,
// never deep-copied: callers treat anything returned by Get as an
// immutable snapshot owned by the cache.
package cache

import (
	"log"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64 `json:"hit_count"`
	Misses uint64 `json:"miss_count"`
	Keys   int    `json:"key_count"`
}

// Store is a process-wide TTL cache. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    uint64
	misses  uint64

	now    func() time.Time
	stopCh chan struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Get returns the cached value for key, or false if the key is absent
// or expired. Expired entries are purged on the way out.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	now := s.now()
	s.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return e.value, true
	}

	s.mu.Lock()
	s.misses++
	if ok {
		// Re-check under the write lock: a concurrent Set may have
		// replaced the entry with a fresh one.
		if cur, still := s.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
	return nil, false
}

// Set stores value under key for ttl. Setting an existing key resets
// its expiry relative to now. A non-positive ttl is a no-op.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes the given keys and returns how many were present.
func (s *Store) Delete(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// DeletePrefix removes every key starting with prefix and returns the
// count removed. An empty prefix clears nothing; use Flush for that.
func (s *Store) DeletePrefix(prefix string) int {
	if prefix == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Keys returns all live (unexpired) keys, optionally filtered by prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			continue
		}
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Flush removes every entry.
func (s *Store) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Stats returns hit/miss counters and the live key count. Expired but
// not-yet-swept entries are excluded from the key count.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	live := 0
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			live++
		}
	}
	return Stats{Hits: s.hits, Misses: s.misses, Keys: live}
}

// StartSweeper purges expired entries every interval until Stop is
// called. Lazy purge on Get keeps the read contract on its own; the
// sweeper just bounds memory held by keys nobody reads again.
func (s *Store) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					log.Printf("cache: swept %d expired entries", n)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the background sweeper.
func (s *Store) Stop() {
	close(s.stopCh)
}

func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
