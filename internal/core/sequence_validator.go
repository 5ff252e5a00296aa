package core

import (
	"fmt"
)

// SequenceValidator validates source sequences per partition (one partition
// per asset id, plus "group" for group-level events).
// Not thread-safe — only accessed from the single-threaded engine.
type SequenceValidator struct {
	expectedNextSeq map[string]int64
	gaps            map[string]int64
	outOfOrder      map[string]int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		gaps:            make(map[string]int64),
		outOfOrder:      make(map[string]int64),
	}
}

// ValidateSequence checks source sequence ordering
func (sv *SequenceValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	isDuplicate bool,
) error {
	expected := sv.expectedNextSeq[partition]

	if sourceSequence < expected {
		// Stale or duplicate
		if isDuplicate {
			// Already processed, nothing to do
			return nil
		}
		sv.outOfOrder[partition]++
		return fmt.Errorf("out-of-order event: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	if sourceSequence == expected {
		sv.expectedNextSeq[partition] = expected + 1
		return nil
	}

	// sourceSequence > expected - gap detected
	sv.gaps[partition]++
	return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
		partition, expected, sourceSequence)
}

// ValidateAccrualSequence validates interest accrual events. Accruals are
// periodic snapshots from the rate engine: stale ones are ignored, gaps are
// tolerated because a later accrual supersedes any missed one.
func (sv *SequenceValidator) ValidateAccrualSequence(
	partition string,
	sourceSequence int64,
) (stale bool) {
	key := fmt.Sprintf("accrual:%s", partition)

	expected := sv.expectedNextSeq[key]
	if sourceSequence < expected {
		return true
	}
	if sourceSequence > expected {
		sv.gaps[key]++
	}
	sv.expectedNextSeq[key] = sourceSequence + 1
	return false
}

// GetExpectedSequence returns next expected sequence for a partition
func (sv *SequenceValidator) GetExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// SetExpectedSequence initializes expected sequence (used during recovery)
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// SequenceState exports the per-partition counters for snapshotting.
func (sv *SequenceValidator) SequenceState() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for k, v := range sv.expectedNextSeq {
		out[k] = v
	}
	return out
}

// Gaps returns gap count for a partition (for metrics)
func (sv *SequenceValidator) Gaps(partition string) int64 {
	return sv.gaps[partition]
}
