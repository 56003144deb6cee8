package availability

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
	"slotkeeper/backend/internal/store/memory"
)

func morningResource() domain.Resource {
	weekly := make([]domain.WorkingDay, 0, 7)
	for wd := int16(1); wd <= 7; wd++ {
		weekly = append(weekly, domain.WorkingDay{ResourceID: "r1", Weekday: wd, Open: wd <= 5, StartMinute: 9 * 60, EndMinute: 12 * 60})
	}
	return domain.Resource{ID: "r1", TenantID: "t1", Timezone: "UTC", Weekly: weekly}
}

func seed(l *memory.Ledger, status domain.Status, start time.Time) {
	l.Put(domain.Appointment{
		ID:              uuid.New(),
		TenantID:        "t1",
		ResourceID:      "r1",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		Status:          status,
		ServiceDuration: 30,
	})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCalculator_FreeSlots(t *testing.T) {
	ledger := memory.NewLedger()
	seed(ledger, domain.StatusConfirmed, at(10, 0))
	seed(ledger, domain.StatusCancelled, at(11, 0))
	seed(ledger, domain.StatusNoShow, at(11, 30))

	c := NewCalculator(memory.NewCalendar(morningResource()), ledger, WithClock(fixedClock(day)))

	seq, err := c.FreeSlots(context.Background(), "t1", "r1", domain.DateOf(day), 30*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	got := slices.Collect(seq)
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

func TestCalculator_StepFallbacks(t *testing.T) {
	res := morningResource()
	c := NewCalculator(memory.NewCalendar(res), memory.NewLedger(), WithClock(fixedClock(day)), WithDefaultStep(time.Hour))

	seq, err := c.FreeSlots(context.Background(), "t1", "r1", domain.DateOf(day), 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	if n := len(slices.Collect(seq)); n != 3 {
		t.Fatalf("configured default step: %d slots, want 3", n)
	}

	step := 15
	res.SlotStepMinutes = &step
	c = NewCalculator(memory.NewCalendar(res), memory.NewLedger(), WithClock(fixedClock(day)), WithDefaultStep(time.Hour))
	seq, _ = c.FreeSlots(context.Background(), "t1", "r1", domain.DateOf(day), 30*time.Minute, 0)
	if n := len(slices.Collect(seq)); n != 11 {
		t.Fatalf("resource step: %d slots, want 11", n)
	}
}

func TestCalculator_ClosedDayAndUnknownResource(t *testing.T) {
	c := NewCalculator(memory.NewCalendar(morningResource()), memory.NewLedger(), WithClock(fixedClock(day)))

	seq, err := c.FreeSlots(context.Background(), "t1", "r1", domain.Date{Year: 2026, Month: time.January, Day: 10}, 30*time.Minute, 0)
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	if n := len(slices.Collect(seq)); n != 0 {
		t.Fatalf("closed day returned %d slots", n)
	}

	if _, err := c.FreeSlots(context.Background(), "t1", "nope", domain.DateOf(day), 30*time.Minute, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}
	if _, err := c.FreeSlots(context.Background(), "t1", "r1", domain.DateOf(day), 0, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidDuration)
	}
}

func TestCalculator_NextAvailable(t *testing.T) {
	ledger := memory.NewLedger()
	for _, h := range []int{9, 10, 11} {
		seed(ledger, domain.StatusConfirmed, at(h, 0))
		seed(ledger, domain.StatusPending, at(h, 30))
	}
	c := NewCalculator(memory.NewCalendar(morningResource()), ledger, WithClock(fixedClock(day)))

	w, ok, err := c.NextAvailable(context.Background(), "t1", "r1", at(9, 0), 30*time.Minute, 7)
	if err != nil || !ok {
		t.Fatalf("NextAvailable = %v, %v", ok, err)
	}
	want := domain.TimeWindow{Start: day.Add(24*time.Hour + 9*time.Hour), End: day.Add(24*time.Hour + 9*time.Hour + 30*time.Minute)}
	if w != want {
		t.Fatalf("next = %v, want %v", w, want)
	}

	_, ok, err = c.NextAvailable(context.Background(), "t1", "r1", at(9, 0), 30*time.Minute, 1)
	if err != nil || ok {
		t.Fatalf("horizon of one full day: ok=%v err=%v", ok, err)
	}
}
