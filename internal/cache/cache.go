// Package cache enforces a byte budget over the store and index by
// evicting least-recently-accessed memories. Memories of protected
// types (decisions) are never evicted.
package cache

import (
	"context"
	"fmt"

	"github.com/rulebook-dev/rulebook-memory/internal/index"
	"github.com/rulebook-dev/rulebook-memory/internal/store"
)

// DefaultMaxBytes is the default size budget (500 MiB).
const DefaultMaxBytes = 524288000

// forceEvictBatch is how many candidates ForceEvict removes per call.
const forceEvictBatch = 10

// Result reports what an eviction pass removed.
type Result struct {
	EvictedCount int   `json:"evicted_count"`
	FreedBytes   int64 `json:"freed_bytes"`
}

// Controller applies the eviction policy to a store and its index.
type Controller struct {
	store    *store.Store
	index    *index.Index
	maxBytes int64
}

// New creates a controller. A non-positive maxBytes falls back to the
// default budget.
func New(s *store.Store, idx *index.Index, maxBytes int64) *Controller {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Controller{store: s, index: idx, maxBytes: maxBytes}
}

// MaxBytes returns the configured budget.
func (c *Controller) MaxBytes() int64 { return c.maxBytes }

// CurrentSize returns the store's on-disk footprint.
func (c *Controller) CurrentSize() (int64, error) {
	return c.store.SizeBytes()
}

// UsagePercent returns current size as a percentage of the budget.
func (c *Controller) UsagePercent() (float64, error) {
	size, err := c.store.SizeBytes()
	if err != nil {
		return 0, err
	}
	return float64(size) / float64(c.maxBytes) * 100, nil
}

// CheckAndEvict is a no-op while under budget. Over budget it evicts
// the single oldest-accessed unprotected memory, re-measures, and
// repeats until under budget or out of candidates. Running out while
// still over budget is a defined partial outcome, not an error.
func (c *Controller) CheckAndEvict(ctx context.Context) (Result, error) {
	var res Result
	for {
		size, err := c.store.SizeBytes()
		if err != nil {
			return res, fmt.Errorf("check size: %w", err)
		}
		if size <= c.maxBytes {
			return res, nil
		}

		cands, err := c.store.EvictionCandidates(ctx, 1)
		if err != nil {
			return res, err
		}
		if len(cands) == 0 {
			// Everything left is protected.
			return res, nil
		}

		if err := c.evictOne(ctx, cands[0].ID, &res); err != nil {
			return res, err
		}
	}
}

// ForceEvict removes a batch of oldest-accessed unprotected memories
// regardless of current usage.
func (c *Controller) ForceEvict(ctx context.Context) (Result, error) {
	var res Result
	cands, err := c.store.EvictionCandidates(ctx, forceEvictBatch)
	if err != nil {
		return res, err
	}
	for _, m := range cands {
		if err := c.evictOne(ctx, m.ID, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// evictOne removes a memory from the store and tombstones its vector
// as one step, so eviction interleaves safely with reads and writes.
func (c *Controller) evictOne(ctx context.Context, id string, res *Result) error {
	before, err := c.store.SizeBytes()
	if err != nil {
		return err
	}
	if err := c.store.DeleteMemory(ctx, id); err != nil {
		return fmt.Errorf("evict %s: %w", id, err)
	}
	c.index.Remove(id)
	c.store.Checkpoint()

	after, err := c.store.SizeBytes()
	if err != nil {
		return err
	}
	res.EvictedCount++
	if freed := before - after; freed > 0 {
		res.FreedBytes += freed
	}
	return nil
}
