package ir

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// SizeCache memoizes (*Type).CopyEligible, deduplicating concurrent
// lookups of the same type name when a checker pipeline analyzes many
// functions of a module in parallel and repeatedly asks about the same
// parameter or field type (internal/checker wires this across its
// errgroup-based per-function fan-out).
type SizeCache struct {
	sf    singleflight.Group
	cache sync.Map // map[string]bool
}

// NewSizeCache constructs an empty SizeCache.
func NewSizeCache() *SizeCache { return &SizeCache{} }

// CopyEligible returns t.CopyEligible(), computing it at most once per
// distinct type name regardless of how many goroutines ask concurrently.
func (c *SizeCache) CopyEligible(t *Type) bool {
	if t == nil {
		return true
	}

	if v, ok := c.cache.Load(t.Name); ok {
		return v.(bool)
	}

	v, _, _ := c.sf.Do(t.Name, func() (any, error) {
		result := t.CopyEligible()
		c.cache.Store(t.Name, result)

		return result, nil
	})

	return v.(bool)
}
