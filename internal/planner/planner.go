// Package planner implements the Range Planner: turns a cursor and a
// target head into a sequence of fetch windows, shrinking the window
// on request when a node rejects a range as too large.
package planner

import "fmt"

const minChunkSize = 1

// Planner produces fetch windows for one pipeline.
type Planner struct {
	chunkSize uint64
	floor     uint64
}

// New creates a Planner with the given starting chunk size.
func New(chunkSize uint64) *Planner {
	if chunkSize == 0 {
		chunkSize = 5000
	}
	return &Planner{chunkSize: chunkSize, floor: minChunkSize}
}

// ChunkSize returns the planner's current chunk size.
func (p *Planner) ChunkSize() uint64 {
	return p.chunkSize
}

// Next returns the next window starting at cursor+1, capped at head
// and at the current chunk size. ok is false when cursor has already
// caught up to head.
func (p *Planner) Next(cursor, head uint64) (from, to uint64, ok bool) {
	from = cursor + 1
	if from > head {
		return 0, 0, false
	}
	to = from + p.chunkSize - 1
	if to > head {
		to = head
	}
	return from, to, true
}

// Shrink halves the chunk size (never below the floor) after a
// RangeTooLarge rejection, and returns a narrower window to retry with
// immediately — either the node's own suggested range, when given, or
// the planner's own halved guess.
func (p *Planner) Shrink(from, to uint64, suggestedTo *uint64) (newFrom, newTo uint64) {
	if p.chunkSize > p.floor {
		p.chunkSize = max(p.floor, p.chunkSize/2)
	}

	if suggestedTo != nil && *suggestedTo >= from && *suggestedTo < to {
		return from, *suggestedTo
	}

	newTo = from + p.chunkSize - 1
	if newTo > to {
		newTo = to
	}
	if newTo < from {
		newTo = from
	}
	return from, newTo
}

// Grow doubles the chunk size back up after each clean fetch,
// capped at the caller-supplied ceiling (the manifest's configured
// chunk_size), so a temporary shrink doesn't permanently slow the
// pipeline down.
func (p *Planner) Grow(ceiling uint64) {
	next := p.chunkSize * 2
	if next > ceiling {
		next = ceiling
	}
	p.chunkSize = next
}

func (p *Planner) String() string {
	return fmt.Sprintf("Planner{chunkSize=%d}", p.chunkSize)
}
