// Package cache implements a CORS-preflight cache akin to the one
// [browsers maintain]: it records, per URL, which methods and request-header
// names servers have allowed, and for how long.
//
// [browsers maintain]: https://fetch.spec.whatwg.org/#cors-preflight-cache
package cache

import (
	"sync"
	"time"

	"github.com/jub0bs/preflight/internal/headers"
	"github.com/jub0bs/preflight/internal/methods"
	"github.com/jub0bs/preflight/internal/util"
)

// A Key identifies a permission granted by a server for some URL.
// Exactly one of Method and Header is non-empty:
//   - (url, METHOD, "") records that method METHOD is allowed;
//   - (url, "", header) records that request-header name header is allowed.
//
// A Method or Header of "*" denotes a wildcard grant.
type Key struct {
	URL    string
	Method string // byte-uppercase
	Header string // byte-lowercase
}

// A Cache maps keys to the instant at which they expire.
// Expired entries are never reported as present, but they are only
// physically removed when a lookup encounters them or when the cache
// is cleared.
//
// A Cache is safe for concurrent use by multiple goroutines, but the
// cheapest arrangement is one Cache per virtual user.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]time.Time // expiry instants
	now     func() time.Time
}

// New returns an empty Cache whose notion of the current time is given by
// clock. If clock is nil, [time.Now] is used.
func New(clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		entries: make(map[Key]time.Time),
		now:     clock,
	}
}

// IsGranted reports whether the cache holds unexpired grants, for url,
// of method and of every one of hdrs.
// A wildcard method grant covers all methods;
// a wildcard header grant covers all header names other than
// [CORS non-wildcard request-header names].
//
// [CORS non-wildcard request-header names]: https://fetch.spec.whatwg.org/#cors-non-wildcard-request-header-name
func (c *Cache) IsGranted(url, method string, hdrs []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.live(Key{URL: url, Method: methods.Normalize(method)}, now) &&
		!c.live(Key{URL: url, Method: headers.ValueWildcard}, now) {
		return false
	}
	for _, name := range hdrs {
		name = util.ByteLowercase(name)
		if c.live(Key{URL: url, Header: name}, now) {
			continue
		}
		if headers.IsNonWildcardRequestHeaderName(name) ||
			!c.live(Key{URL: url, Header: headers.ValueWildcard}, now) {
			return false
		}
	}
	return true
}

// live reports whether k is present and unexpired at now,
// evicting k if it has expired.
//
// Precondition: c.mu is held.
func (c *Cache) live(k Key, now time.Time) bool {
	expiry, found := c.entries[k]
	if !found {
		return false
	}
	if !expiry.After(now) {
		delete(c.entries, k)
		return false
	}
	return true
}

// Populate records that, for url, the server allows each of hdrs and each
// of methods for the next ttl. Existing grants for the same keys are
// overwritten. A negative ttl is treated as zero.
func (c *Cache) Populate(url string, ttl time.Duration, hdrs, methodNames []string) {
	ttl = max(ttl, 0)
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry := c.now().Add(ttl)
	for _, name := range hdrs {
		c.entries[Key{URL: url, Header: util.ByteLowercase(name)}] = expiry
	}
	for _, m := range methodNames {
		c.entries[Key{URL: url, Method: methods.Normalize(m)}] = expiry
	}
}

// Clear removes all entries from c.
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of unexpired entries in c.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var n int
	for k := range c.entries {
		if c.live(k, now) {
			n++
		}
	}
	return n
}
