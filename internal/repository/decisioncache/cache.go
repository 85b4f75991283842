// Package decisioncache holds the in-memory fingerprint → Decision cache.
package decisioncache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/sentinel/internal/domain"
)

// Cache is a bounded LRU with TTL expiry, keyed by the fingerprint of
// normalized input text. Decisions are immutable values, so a reader always
// observes either the old or the fully-written new entry, never a mix.
// Best-effort only: nothing survives a restart.
type Cache struct {
	lru        *expirable.LRU[string, domain.Decision]
	cacheTotal *prometheus.CounterVec
}

// New creates a decision cache with the given capacity and TTL.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(capacity int, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Cache {
	return &Cache{
		lru:        expirable.NewLRU[string, domain.Decision](capacity, nil, ttl),
		cacheTotal: cacheTotal,
	}
}

// Get returns the cached Decision for a fingerprint, if present and unexpired.
func (c *Cache) Get(fingerprint string) (domain.Decision, bool) {
	d, ok := c.lru.Get(fingerprint)
	if ok {
		c.inc("hit")
	} else {
		c.inc("miss")
	}
	return d, ok
}

// Put stores a Decision under a fingerprint, overwriting any previous entry.
func (c *Cache) Put(fingerprint string, d domain.Decision) {
	c.lru.Add(fingerprint, d)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
