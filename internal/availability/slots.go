// Package availability computes free appointment windows for a resource.
package availability

import (
	"iter"
	"time"

	"slotkeeper/backend/internal/domain"
)

// Slots yields every window of length duration, stepping from day.Start by step, that
// ends no later than day.End, starts no earlier than now, and overlaps none of blocked.
//
// The sequence is a pure function of its inputs and may be ranged over repeatedly.
func Slots(day domain.TimeWindow, duration, step time.Duration, blocked []domain.TimeWindow, now time.Time) iter.Seq[domain.TimeWindow] {
	return func(yield func(domain.TimeWindow) bool) {
		if duration <= 0 || step <= 0 || day.IsEmpty() {
			return
		}
		for start := day.Start; !start.Add(duration).After(day.End); start = start.Add(step) {
			if start.Before(now) {
				continue
			}
			candidate := domain.TimeWindow{Start: start, End: start.Add(duration)}
			if candidate.OverlapsAny(blocked) {
				continue
			}
			if !yield(candidate) {
				return
			}
		}
	}
}

// Windows converts appointments to the intervals they block.
func Windows(appts []domain.Appointment) []domain.TimeWindow {
	out := make([]domain.TimeWindow, 0, len(appts))
	for _, a := range appts {
		if a.Blocks() {
			out = append(out, a.Window())
		}
	}
	return out
}
