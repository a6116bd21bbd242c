// Package interval implements busy-interval arithmetic: merging overlapping
// intervals into a minimal disjoint set and deriving free slots from them.
// All computation is pure; callers supply intervals fetched from external
// calendar providers and receive new slices back.
package interval

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidInterval indicates an interval whose start is after its end.
// Such intervals are rejected at ingestion and never silently swapped.
var ErrInvalidInterval = errors.New("interval: start must not be after end")

// Interval represents a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New constructs an Interval, normalizing both bounds to UTC.
func New(start, end time.Time) (Interval, error) {
	if start.After(end) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Merge collapses possibly-overlapping intervals into a sorted, disjoint,
// minimal set. Touching intervals (next.Start == last.End) are treated as
// contiguous and coalesced. The input slice is not mutated and its order
// does not matter.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]Interval, 0, len(sorted))
	merged = append(merged, sorted[0])
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if next.Start.After(last.End) {
			merged = append(merged, next)
			continue
		}
		if next.End.After(last.End) {
			last.End = next.End
		}
	}

	return merged
}

// FreeSlot represents an available window of at least the requested duration.
// DurationMinutes is floored to whole minutes so availability is never
// over-promised.
type FreeSlot struct {
	Start           time.Time
	End             time.Time
	DurationMinutes int
}

// FindFree derives free slots of at least minDuration within bounds from a
// merged, sorted busy set. Busy intervals outside the bounds never produce
// negative slots: the cursor only moves forward and is clamped to the range.
func FindFree(busy []Interval, bounds Interval, minDuration time.Duration) []FreeSlot {
	var slots []FreeSlot

	cursor := bounds.Start
	for _, b := range busy {
		if b.End.Before(bounds.Start) {
			continue
		}

		slotEnd := b.Start
		if slotEnd.After(bounds.End) {
			slotEnd = bounds.End
		}
		if gap := slotEnd.Sub(cursor); gap >= minDuration && gap > 0 {
			slots = append(slots, newFreeSlot(cursor, slotEnd))
		}

		if b.End.After(cursor) {
			cursor = b.End
		}
		if cursor.After(bounds.End) {
			cursor = bounds.End
		}
	}

	if gap := bounds.End.Sub(cursor); gap >= minDuration && gap > 0 {
		slots = append(slots, newFreeSlot(cursor, bounds.End))
	}

	return slots
}

func newFreeSlot(start, end time.Time) FreeSlot {
	return FreeSlot{
		Start:           start,
		End:             end,
		DurationMinutes: int(end.Sub(start) / time.Minute),
	}
}
