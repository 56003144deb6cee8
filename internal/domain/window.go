package domain

import "time"

// TimeWindow is a half-open [Start, End) interval.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) IsEmpty() bool {
	return !w.End.After(w.Start)
}

func (w TimeWindow) Duration() time.Duration {
	if w.IsEmpty() {
		return 0
	}
	return w.End.Sub(w.Start)
}

// Overlaps is the single overlap predicate used for availability and commit checks.
// Empty windows never overlap anything; touching windows do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	if w.IsEmpty() || o.IsEmpty() {
		return false
	}
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether o lies entirely within w.
func (w TimeWindow) Contains(o TimeWindow) bool {
	return !o.Start.Before(w.Start) && !o.End.After(w.End)
}

func (w TimeWindow) UTC() TimeWindow {
	return TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

// OverlapsAny reports whether w overlaps any of the given windows.
func (w TimeWindow) OverlapsAny(others []TimeWindow) bool {
	for _, o := range others {
		if w.Overlaps(o) {
			return true
		}
	}
	return false
}
