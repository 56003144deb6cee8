package availability

import (
	"context"
	"errors"
	"iter"
	"time"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

const DefaultStep = 30 * time.Minute

var ErrInvalidDuration = errors.New("duration must be positive")

// BlockingReader is the read side of the ledger the calculator needs.
type BlockingReader interface {
	ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

type Calculator struct {
	calendar    store.CalendarSource
	ledger      BlockingReader
	defaultStep time.Duration
	now         func() time.Time
}

type Option func(*Calculator)

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// WithDefaultStep sets the step used when neither the call nor the resource names one.
func WithDefaultStep(step time.Duration) Option {
	return func(c *Calculator) {
		if step > 0 {
			c.defaultStep = step
		}
	}
}

func NewCalculator(calendar store.CalendarSource, ledger BlockingReader, opts ...Option) *Calculator {
	c := &Calculator{
		calendar:    calendar,
		ledger:      ledger,
		defaultStep: DefaultStep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FreeSlots returns the free windows of length duration on the resource-local date.
// A non-positive step falls back to the resource's slot step, then the configured default.
func (c *Calculator) FreeSlots(ctx context.Context, tenantID, resourceID string, date domain.Date, duration, step time.Duration) (iter.Seq[domain.TimeWindow], error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	res, err := c.calendar.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}
	return c.freeSlots(ctx, res, date, duration, step)
}

func (c *Calculator) freeSlots(ctx context.Context, res domain.Resource, date domain.Date, duration, step time.Duration) (iter.Seq[domain.TimeWindow], error) {
	hours, open, err := res.EffectiveHours(date)
	if err != nil {
		return nil, err
	}
	if !open {
		return empty, nil
	}

	blocking, err := c.ledger.ListBlocking(ctx, res.TenantID, res.ID, hours.Start, hours.End)
	if err != nil {
		return nil, err
	}
	return Slots(hours, duration, c.stepFor(res, step), Windows(blocking), c.now()), nil
}

func (c *Calculator) stepFor(res domain.Resource, step time.Duration) time.Duration {
	if step > 0 {
		return step
	}
	if res.SlotStepMinutes != nil && *res.SlotStepMinutes > 0 {
		return time.Duration(*res.SlotStepMinutes) * time.Minute
	}
	return c.defaultStep
}

// NextAvailable scans forward from the local date of from, up to horizonDays days, and
// returns the first free window starting at or after from. ok is false when none exists.
func (c *Calculator) NextAvailable(ctx context.Context, tenantID, resourceID string, from time.Time, duration time.Duration, horizonDays int) (window domain.TimeWindow, ok bool, err error) {
	if duration <= 0 {
		return domain.TimeWindow{}, false, ErrInvalidDuration
	}
	if horizonDays <= 0 {
		horizonDays = 1
	}
	res, err := c.calendar.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		return domain.TimeWindow{}, false, err
	}
	day, err := res.DateIn(from)
	if err != nil {
		return domain.TimeWindow{}, false, err
	}

	for i := 0; i < horizonDays; i++ {
		slots, err := c.freeSlots(ctx, res, day.AddDays(i), duration, 0)
		if err != nil {
			return domain.TimeWindow{}, false, err
		}
		for w := range slots {
			if !w.Start.Before(from) {
				return w, true, nil
			}
		}
	}
	return domain.TimeWindow{}, false, nil
}

func empty(func(domain.TimeWindow) bool) {}
