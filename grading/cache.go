package grading

import (
	"context"
	"sync"
	"time"
)

// DefaultFreshness is how long a cached report is served before it is
// recomputed.
const DefaultFreshness = 5 * time.Minute

// Cache is a passive keyed store of reports. It never expires entries
// itself; staleness is judged by the reader. Put always replaces.
type Cache interface {
	Get(ctx context.Context, domain string) (CacheEntry, bool, error)
	Put(ctx context.Context, domain string, report GradeReport) error
}

// MemoryCache keeps entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	hint    time.Duration
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache whose entries carry an expiry hint of
// hint after the report's completion.
func NewMemoryCache(hint time.Duration) *MemoryCache {
	if hint <= 0 {
		hint = DefaultFreshness
	}
	return &MemoryCache{entries: make(map[string]CacheEntry), hint: hint}
}

// Get returns the entry stored for domain.
func (c *MemoryCache) Get(_ context.Context, domain string) (CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[domain]
	return entry, ok, nil
}

// Put stores report under domain, replacing any previous entry.
func (c *MemoryCache) Put(_ context.Context, domain string, report GradeReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = CacheEntry{Report: report, ExpiresHint: report.ComputedAt.Add(c.hint)}
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
