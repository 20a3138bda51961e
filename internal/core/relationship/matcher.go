// Package relationship resolves declared subschema/childschema/parentschema
// patterns into concrete schema id sets, entirely in memory.
package relationship

import (
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Wildcard matches one or more characters of a single path segment.
const Wildcard = "*"

const (
	DefaultExpiration      = 30 * time.Minute
	DefaultCleanupInterval = time.Hour
)

// IsWildcard reports whether pattern needs regex matching.
func IsWildcard(pattern string) bool {
	return strings.Contains(pattern, Wildcard)
}

// Matcher compiles wildcard patterns into anchored regular expressions and
// caches them across passes. Safe for concurrent use.
type Matcher struct {
	cache *gocache.Cache
}

// NewMatcher creates a Matcher whose compiled patterns expire after expiration.
func NewMatcher(expiration, cleanupInterval time.Duration) *Matcher {
	return &Matcher{cache: gocache.New(expiration, cleanupInterval)}
}

// Compile returns the anchored regex for pattern. Every "*" becomes "[^/]+",
// so "/a/*" matches "/a/x" but neither "/a" nor "/a/b/z".
func (m *Matcher) Compile(pattern string) *regexp.Regexp {
	if v, found := m.cache.Get(pattern); found {
		if re, ok := v.(*regexp.Regexp); ok {
			return re
		}
	}

	parts := strings.Split(pattern, Wildcard)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("^" + strings.Join(parts, "[^/]+") + "$")

	m.cache.Set(pattern, re, gocache.DefaultExpiration)
	return re
}

// Cached reports how many compiled patterns are held.
func (m *Matcher) Cached() int {
	return m.cache.ItemCount()
}
