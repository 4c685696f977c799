// Package blocktime implements the Block-Time Cache and the Timestamp
// Enricher policies (off, sampled+interpolated, closed-form).
package blocktime

import (
	"sync"
	"time"
)

// Point is one real (blockNumber, timestamp) calibration sample.
type Point struct {
	BlockNumber uint64
	Timestamp   time.Time
}

// Cache holds calibration points in ascending block-number order and
// answers timestamp queries by exact match or interpolation between
// the two closest points.
type Cache struct {
	mu     sync.RWMutex
	points []Point
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// Add records a real calibration point, keeping points sorted.
func (c *Cache) Add(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := len(c.points)
	for i, existing := range c.points {
		if existing.BlockNumber == p.BlockNumber {
			c.points[i] = p
			return
		}
		if existing.BlockNumber > p.BlockNumber {
			idx = i
			break
		}
	}
	c.points = append(c.points, Point{})
	copy(c.points[idx+1:], c.points[idx:])
	c.points[idx] = p
}

// Interpolate estimates the timestamp for blockNumber from the two
// closest recorded calibration points. A recorded point at exactly
// blockNumber is returned as is, even when it is the only point.
// Otherwise returns false if there are fewer than two points or
// blockNumber falls outside the known range.
func (c *Cache) Interpolate(blockNumber uint64) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.points) == 0 {
		return time.Time{}, false
	}

	// Exact match.
	for _, p := range c.points {
		if p.BlockNumber == blockNumber {
			return p.Timestamp, true
		}
	}

	if len(c.points) < 2 {
		return time.Time{}, false
	}

	var before, after *Point
	for i := range c.points {
		p := &c.points[i]
		if p.BlockNumber < blockNumber {
			before = p
		}
		if p.BlockNumber > blockNumber && after == nil {
			after = p
		}
	}
	if before == nil || after == nil {
		return time.Time{}, false
	}

	span := float64(after.BlockNumber - before.BlockNumber)
	offset := float64(blockNumber - before.BlockNumber)
	frac := offset / span

	delta := after.Timestamp.Sub(before.Timestamp)
	return before.Timestamp.Add(time.Duration(frac * float64(delta))), true
}

// Prune discards calibration points older than keepFromBlock, mirroring
// the reorg handler's block-hash pruning so the cache doesn't grow
// unbounded over a long-running backfill.
func (c *Cache) Prune(keepFromBlock uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := 0
	for i < len(c.points) && c.points[i].BlockNumber < keepFromBlock {
		i++
	}
	c.points = c.points[i:]
}
