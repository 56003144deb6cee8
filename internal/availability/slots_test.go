package availability

import (
	"slices"
	"testing"
	"time"

	"slotkeeper/backend/internal/domain"
)

var day = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func window(h1, m1, h2, m2 int) domain.TimeWindow {
	return domain.TimeWindow{Start: at(h1, m1), End: at(h2, m2)}
}

func TestSlots_SkipsBookedWindow(t *testing.T) {
	open := window(9, 0, 12, 0)
	blocked := []domain.TimeWindow{window(10, 0, 10, 30)}

	got := slices.Collect(Slots(open, 30*time.Minute, 30*time.Minute, blocked, day))
	want := []domain.TimeWindow{
		window(9, 0, 9, 30),
		window(9, 30, 10, 0),
		window(10, 30, 11, 0),
		window(11, 0, 11, 30),
		window(11, 30, 12, 0),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestSlots_DurationEqualToRemainingWindow(t *testing.T) {
	open := window(9, 0, 12, 0)
	blocked := []domain.TimeWindow{window(9, 0, 11, 15)}

	got := slices.Collect(Slots(open, 45*time.Minute, 15*time.Minute, blocked, day))
	if len(got) != 1 || got[0] != window(11, 15, 12, 0) {
		t.Fatalf("slots = %v, want exactly 11:15-12:00", got)
	}

	got = slices.Collect(Slots(open, 46*time.Minute, 15*time.Minute, blocked, day))
	if len(got) != 0 {
		t.Fatalf("slots = %v, want none", got)
	}
}

func TestSlots_EdgeCases(t *testing.T) {
	open := window(9, 0, 10, 0)

	tests := []struct {
		name     string
		duration time.Duration
		step     time.Duration
		blocked  []domain.TimeWindow
		now      time.Time
		want     int
	}{
		{name: "duration longer than open window", duration: 61 * time.Minute, step: 15 * time.Minute, now: day},
		{name: "zero-length blocked interval ignored", duration: 30 * time.Minute, step: 30 * time.Minute, blocked: []domain.TimeWindow{window(9, 10, 9, 10)}, now: day, want: 2},
		{name: "touching appointment does not conflict", duration: 30 * time.Minute, step: 30 * time.Minute, blocked: []domain.TimeWindow{window(8, 30, 9, 0)}, now: day, want: 2},
		{name: "past starts skipped", duration: 15 * time.Minute, step: 15 * time.Minute, now: at(9, 31), want: 1},
		{name: "non-positive step", duration: 15 * time.Minute, step: 0, now: day},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := slices.Collect(Slots(open, tc.duration, tc.step, tc.blocked, tc.now))
			if len(got) != tc.want {
				t.Fatalf("len(slots) = %d, want %d (%v)", len(got), tc.want, got)
			}
		})
	}
}

func TestSlots_IsRestartable(t *testing.T) {
	seq := Slots(window(9, 0, 12, 0), 30*time.Minute, 30*time.Minute, nil, day)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 6 || !slices.Equal(first, second) {
		t.Fatalf("first = %v, second = %v", first, second)
	}

	var n int
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("early stop consumed %d", n)
	}
}

func TestSlots_NeverOverlapBlocked(t *testing.T) {
	open := window(8, 0, 18, 0)
	blocked := []domain.TimeWindow{
		window(8, 20, 8, 50),
		window(9, 45, 11, 5),
		window(13, 0, 13, 0),
		window(13, 10, 13, 40),
		window(17, 35, 18, 0),
	}
	for _, duration := range []time.Duration{10 * time.Minute, 25 * time.Minute, 45 * time.Minute, 90 * time.Minute} {
		for _, step := range []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute} {
			for w := range Slots(open, duration, step, blocked, day) {
				if w.OverlapsAny(blocked) {
					t.Fatalf("duration=%v step=%v: slot %v overlaps blocked", duration, step, w)
				}
				if !open.Contains(w) {
					t.Fatalf("duration=%v step=%v: slot %v outside open hours", duration, step, w)
				}
			}
		}
	}
}
