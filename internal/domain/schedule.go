package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const minutesPerDay = 24 * 60

// Resource is a bookable staff member or unit. Owned by staff management; read-only here.
type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ID              string         `bun:"id,pk" json:"id"`
	TenantID        string         `bun:"tenant_id,notnull" json:"tenant_id"`
	Name            string         `bun:"name,notnull" json:"name"`
	Timezone        string         `bun:"timezone,notnull" json:"timezone"`
	SlotStepMinutes *int           `bun:"slot_step_minutes" json:"slot_step_minutes,omitempty"`
	Weekly          []WorkingDay   `bun:"rel:has-many,join:id=resource_id" json:"weekly"`
	Overrides       []DateOverride `bun:"rel:has-many,join:id=resource_id" json:"overrides"`
}

// WorkingDay is one row of the weekly template. Weekday uses ISO numbering (1=Mon..7=Sun).
type WorkingDay struct {
	bun.BaseModel `bun:"table:resource_working_hours"`

	ResourceID  string `bun:"resource_id,pk" json:"resource_id"`
	Weekday     int16  `bun:"weekday,pk" json:"weekday"`
	Open        bool   `bun:"is_open,notnull" json:"open"`
	StartMinute int    `bun:"start_minute,notnull" json:"start_minute"`
	EndMinute   int    `bun:"end_minute,notnull" json:"end_minute"`
}

// DateOverride replaces the weekly template for a single local calendar date.
type DateOverride struct {
	bun.BaseModel `bun:"table:resource_date_overrides"`

	ResourceID  string    `bun:"resource_id,pk" json:"resource_id"`
	Date        time.Time `bun:"date,pk,type:date" json:"date"`
	Closed      bool      `bun:"closed,notnull" json:"closed"`
	StartMinute int       `bun:"start_minute,notnull" json:"start_minute"`
	EndMinute   int       `bun:"end_minute,notnull" json:"end_minute"`
	Reason      string    `bun:"reason" json:"reason,omitempty"`
}

// Service is the catalog entry whose duration and price are snapshotted at booking time.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string `bun:"id,pk" json:"id"`
	TenantID        string `bun:"tenant_id,notnull" json:"tenant_id"`
	Name            string `bun:"name,notnull" json:"name"`
	DurationMinutes int    `bun:"duration_minutes,notnull" json:"duration_minutes"`
	PriceCents      int64  `bun:"price_cents,notnull" json:"price_cents"`
	Currency        string `bun:"currency,notnull" json:"currency"`
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) at(minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minute/60, minute%60, 0, 0, loc)
}

// isoWeekday maps time.Weekday to 1=Mon..7=Sun.
func isoWeekday(wd time.Weekday) int16 {
	if wd == time.Sunday {
		return 7
	}
	return int16(wd)
}

func (r Resource) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, errors.New("invalid time_zone")
	}
	return loc, nil
}

// DateIn returns the resource-local calendar date of t.
func (r Resource) DateIn(t time.Time) (Date, error) {
	loc, err := r.Location()
	if err != nil {
		return Date{}, err
	}
	return DateOf(t.In(loc)), nil
}

// EffectiveHours resolves the open window for a local date. An override for the date
// wins over the weekly template. ok is false when the resource is closed that day.
func (r Resource) EffectiveHours(d Date) (window TimeWindow, ok bool, err error) {
	loc, err := r.Location()
	if err != nil {
		return TimeWindow{}, false, err
	}

	if o, found := r.overrideFor(d); found {
		if o.Closed {
			return TimeWindow{}, false, nil
		}
		return openWindow(d, o.StartMinute, o.EndMinute, loc)
	}

	wd := isoWeekday(d.Weekday())
	for _, day := range r.Weekly {
		if day.Weekday != wd {
			continue
		}
		if !day.Open {
			return TimeWindow{}, false, nil
		}
		return openWindow(d, day.StartMinute, day.EndMinute, loc)
	}
	return TimeWindow{}, false, nil
}

func (r Resource) overrideFor(d Date) (DateOverride, bool) {
	for _, o := range r.Overrides {
		if DateOf(o.Date) == d {
			return o, true
		}
	}
	return DateOverride{}, false
}

func openWindow(d Date, startMinute, endMinute int, loc *time.Location) (TimeWindow, bool, error) {
	if startMinute < 0 || endMinute > minutesPerDay {
		return TimeWindow{}, false, fmt.Errorf("working hours out of range on %s", d)
	}
	if endMinute <= startMinute {
		return TimeWindow{}, false, nil
	}
	w := TimeWindow{Start: d.at(startMinute, loc).UTC(), End: d.at(endMinute, loc).UTC()}
	return w, true, nil
}

// OpenDays expands the schedule into per-day open windows for n consecutive dates
// starting at from. Closed days are omitted.
func (r Resource) OpenDays(from Date, n int) ([]TimeWindow, error) {
	out := make([]TimeWindow, 0, n)
	for i := 0; i < n; i++ {
		w, ok, err := r.EffectiveHours(from.AddDays(i))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, w)
		}
	}
	return out, nil
}

// WithinHours reports whether w lies inside the resource's effective hours on the
// local date of w.Start.
func (r Resource) WithinHours(w TimeWindow) (bool, error) {
	d, err := r.DateIn(w.Start)
	if err != nil {
		return false, err
	}
	hours, ok, err := r.EffectiveHours(d)
	if err != nil || !ok {
		return false, err
	}
	return hours.Contains(w), nil
}
