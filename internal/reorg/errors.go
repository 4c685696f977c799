package reorg

import "fmt"

// ErrReorgDetected is returned when block-hash verification finds the
// canonical chain has changed beneath an already-indexed range.
type ErrReorgDetected struct {
	FirstReorgBlock uint64
	Details         string
}

func (e *ErrReorgDetected) Error() string {
	return fmt.Sprintf("reorg detected at block %d: %s", e.FirstReorgBlock, e.Details)
}

// NewReorgError builds an ErrReorgDetected.
func NewReorgError(firstReorgBlock uint64, details string) error {
	return &ErrReorgDetected{FirstReorgBlock: firstReorgBlock, Details: details}
}

// ErrFatalReorg signals a reorg deeper than safe_distance can recover:
// the canonical chain diverged at a block earlier than the pipeline's
// computed rewind window, so replaying [RewindFrom, lastIndexed] would
// not actually reach a block both sides agree on. The pipeline must
// halt rather than silently replay an insufficient window.
type ErrFatalReorg struct {
	FirstReorgBlock uint64
	RewindFrom      uint64
	Details         string
}

func (e *ErrFatalReorg) Error() string {
	return fmt.Sprintf("fatal reorg: divergence at block %d is deeper than the safe rewind window starting at %d: %s",
		e.FirstReorgBlock, e.RewindFrom, e.Details)
}
