// Package ipmatch answers "is this address covered by that index" for
// indexes that mix plain IPv4 addresses with CIDRv4 ranges. Plain addresses
// are resolved by the registry's own set lookup; CIDR coverage is resolved
// here against a per-index cache of parsed ranges, rebuilt on a TTL and on
// explicit invalidation after a swap.
package ipmatch

import (
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foae/riskdet/index"
	"github.com/foae/riskdet/netutil"
)

const cidrCacheTTL = 5 * time.Minute

type cidrEntry struct {
	base uint32
	mask uint32
}

type cidrCache struct {
	mu      sync.Mutex
	entries []cidrEntry
	builtAt time.Time
}

// Matcher resolves IPv4 membership, including CIDR coverage, against named
// registry indexes.
type Matcher struct {
	reg *index.Registry

	mu     sync.Mutex
	caches map[string]*cidrCache
}

// NewMatcher returns a Matcher backed by reg.
func NewMatcher(reg *index.Registry) *Matcher {
	return &Matcher{reg: reg, caches: make(map[string]*cidrCache)}
}

// Invalidate drops the cached CIDR set for name, forcing a rebuild on next
// use. Called after every swap of that index.
func (m *Matcher) Invalidate(name string) {
	m.mu.Lock()
	delete(m.caches, name)
	m.mu.Unlock()
}

// Matches reports whether ip is covered by the named index: either present
// verbatim, or covered by one of its CIDR ranges. Invalid ip strings never
// match.
func (m *Matcher) Matches(name, ip string) bool {
	if !netutil.IsIPv4(ip) {
		log.Printf("ipmatch: warn: %q is not a syntactically valid IPv4 address", ip)
		return false
	}

	if m.reg.Lookup(name, ip) {
		return true
	}

	addr, ok := parseIPv4(ip)
	if !ok {
		return false
	}

	for _, ce := range m.cidrEntries(name) {
		if addr&ce.mask == ce.base&ce.mask {
			return true
		}
	}
	return false
}

func (m *Matcher) cacheFor(name string) *cidrCache {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.caches[name]
	if !ok {
		c = &cidrCache{}
		m.caches[name] = c
	}
	return c
}

func (m *Matcher) cidrEntries(name string) []cidrEntry {
	c := m.cacheFor(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries != nil && time.Since(c.builtAt) < cidrCacheTTL {
		return c.entries
	}

	var entries []cidrEntry
	for _, key := range m.reg.Scan(name) {
		if !strings.Contains(key, "/") {
			continue
		}
		base, mask, ok := parseCIDR(key)
		if !ok {
			continue
		}
		entries = append(entries, cidrEntry{base: base, mask: mask})
	}

	c.entries = entries
	c.builtAt = time.Now()
	return c.entries
}

// parseIPv4 parses a dotted-quad IPv4 address into its 32-bit big-endian
// representation.
func parseIPv4(s string) (uint32, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, false
	}

	var out uint32
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, false
		}
		out = out<<8 | uint32(n)
	}
	return out, true
}

// parseCIDR parses "a.b.c.d/n" into its base address and the /n network
// mask.
func parseCIDR(key string) (base, mask uint32, ok bool) {
	addrPart, bitsPart, found := strings.Cut(key, "/")
	if !found {
		return 0, 0, false
	}

	bits, err := strconv.Atoi(bitsPart)
	if err != nil || bits < 0 || bits > 32 {
		return 0, 0, false
	}

	base, ok = parseIPv4(addrPart)
	if !ok {
		return 0, 0, false
	}

	if bits == 0 {
		return base, 0, true
	}
	mask = ^uint32(0) << uint(32-bits)
	return base, mask, true
}
