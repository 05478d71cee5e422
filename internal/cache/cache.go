// Package cache memoizes questionnaire analysis results. The
// recommendation is derived only from the answer set, so a repeat
// submission with identical answers can skip the model call.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

type entry struct {
	recommendation string
	timestamp      time.Time
}

// Analyses is a TTL-bounded recommendation cache keyed by answer set.
type Analyses struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

func NewAnalyses(ttl time.Duration) *Analyses {
	return &Analyses{ttl: ttl, entries: make(map[string]entry)}
}

// Key hashes an answer set into a stable cache key.
func Key(responses map[string]string) string {
	ids := make([]string, 0, len(responses))
	for id := range responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(responses[id]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the cached recommendation for key if it has not expired.
func (c *Analyses) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(e.timestamp) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.recommendation, true
}

// Put stores a recommendation under key.
func (c *Analyses) Put(key, recommendation string) {
	c.mu.Lock()
	c.entries[key] = entry{recommendation: recommendation, timestamp: time.Now()}
	c.mu.Unlock()
}
