// Package segmenter turns a continuous video timeline into an ordered
// sequence of overlapping, UTC-stamped time windows.
package segmenter

import (
	"errors"
	"fmt"
	"time"
)

// MinTailDuration is the shortest trailing window worth emitting. A remainder
// below this is dropped unless it would be the only window.
const MinTailDuration = 500 * time.Millisecond

// Errors for invalid segmentation parameters.
var (
	ErrNonPositiveDuration = errors.New("total duration must be positive")
	ErrNonPositiveChunk    = errors.New("chunk duration must be positive")
	ErrOverlapTooLarge     = errors.New("overlap must be smaller than chunk duration")
	ErrNegativeOverlap     = errors.New("overlap must not be negative")
)

// TimeWindow is one segment of the source timeline. Index is 1-based.
// Immutable once planned.
type TimeWindow struct {
	Index       int           `json:"index"`
	StartOffset time.Duration `json:"start_time"`
	EndOffset   time.Duration `json:"end_time"`
	StartUTC    time.Time     `json:"start_utc_time"`
	EndUTC      time.Time     `json:"end_utc_time"`
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.EndOffset - w.StartOffset
}

// String renders the window bounds for logs.
func (w TimeWindow) String() string {
	return fmt.Sprintf("window %d [%.2fs, %.2fs)", w.Index, w.StartOffset.Seconds(), w.EndOffset.Seconds())
}

// Plan computes the full ordered window list for a source of totalDuration.
// Consecutive windows overlap by exactly overlap; the final window may be
// shorter than chunkDuration but never shorter than MinTailDuration unless it
// is the only window. Deterministic for identical inputs.
func Plan(totalDuration, chunkDuration, overlap time.Duration, startUTC time.Time) ([]TimeWindow, error) {
	if totalDuration <= 0 {
		return nil, ErrNonPositiveDuration
	}
	if chunkDuration <= 0 {
		return nil, ErrNonPositiveChunk
	}
	if overlap < 0 {
		return nil, ErrNegativeOverlap
	}
	if overlap >= chunkDuration {
		return nil, ErrOverlapTooLarge
	}

	step := chunkDuration - overlap
	var windows []TimeWindow
	offset := time.Duration(0)

	for offset < totalDuration {
		span := totalDuration - offset
		if span > chunkDuration {
			span = chunkDuration
		}
		// Drop a near-zero trailing artifact once we have at least one window.
		if span < MinTailDuration && len(windows) > 0 {
			break
		}
		end := offset + span
		windows = append(windows, TimeWindow{
			Index:       len(windows) + 1,
			StartOffset: offset,
			EndOffset:   end,
			StartUTC:    startUTC.Add(offset),
			EndUTC:      startUTC.Add(end),
		})
		// A window reaching the end of the timeline is the final one; later
		// offsets would only re-cover already-seen footage.
		if end >= totalDuration {
			break
		}
		offset += step
	}
	return windows, nil
}
