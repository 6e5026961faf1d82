// Package memguard estimates the output footprint of a run before any
// tile is dispatched and turns that estimate into a policy decision:
// proceed in memory, spill tiles to disk, or abort. The estimate is a
// coarse heuristic (catalog area over cell area times a per-cell byte
// cost), not an accounting guarantee.
package memguard

import (
	"errors"
	"math"
)

// Decision is the guard's verdict for a run.
type Decision int

const (
	Proceed Decision = iota
	Spill
	Abort
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Spill:
		return "spill"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// ErrAborted is returned by the engine when the guard (or its policy
// callback) chooses Abort. It is a user decision, not a failure, and
// callers should treat it as a distinguishable no-output outcome.
var ErrAborted = errors.New("memguard: run aborted before dispatch")

// DecideFunc resolves an over-threshold estimate into a decision. The
// engine calls it only when the estimate exceeds the threshold and
// spilling is not already configured. Implementations may prompt a
// human or apply a fixed policy.
type DecideFunc func(estimatedBytes, thresholdBytes int64) Decision

// AlwaysAbort is the non-interactive default policy: refuse runs whose
// estimated output exceeds the threshold.
func AlwaysAbort(int64, int64) Decision { return Abort }

// AlwaysProceed accepts any estimate. Suitable for callers that have
// sized their machine to the data.
func AlwaysProceed(int64, int64) Decision { return Proceed }

// AlwaysSpill converts over-threshold runs to on-disk tile output.
func AlwaysSpill(int64, int64) Decision { return Spill }

// Estimate predicts the merged output size in bytes: one row of
// bytesPerCell for every cell of size cellSize covering area. The
// buffer margin is excluded by construction (buffered reads never
// reach the merged output).
func Estimate(area, cellSize float64, bytesPerCell int64) int64 {
	if area <= 0 || cellSize <= 0 || bytesPerCell <= 0 {
		return 0
	}
	cells := math.Ceil(area / (cellSize * cellSize))
	return int64(cells) * bytesPerCell
}

// Check applies the guard policy.
//
// threshold <= 0 disables the guard entirely: always Proceed. Within
// threshold: Proceed. Over threshold with spilling already configured:
// Spill, silently. Otherwise the decision is delegated to decide (nil
// decide falls back to AlwaysAbort).
func Check(estimate, threshold int64, spillConfigured bool, decide DecideFunc) Decision {
	if threshold <= 0 || estimate <= threshold {
		return Proceed
	}
	if spillConfigured {
		return Spill
	}
	if decide == nil {
		decide = AlwaysAbort
	}
	return decide(estimate, threshold)
}
