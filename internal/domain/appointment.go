package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid"`
	TenantID        string     `bun:"tenant_id,notnull"`
	ResourceID      string     `bun:"resource_id,notnull"`
	CustomerID      string     `bun:"customer_id,notnull"`
	ServiceID       string     `bun:"service_id,notnull"`
	StartTime       time.Time  `bun:"start_time,notnull"`
	EndTime         time.Time  `bun:"end_time,notnull"`
	Status          Status     `bun:"status,notnull"`
	ServiceDuration int        `bun:"service_duration,notnull"`
	PriceCents      int64      `bun:"price_cents,notnull"`
	Currency        string     `bun:"currency,notnull"`
	CancelReason    string     `bun:"cancel_reason"`
	CancelledAt     *time.Time `bun:"cancelled_at"`
	ReminderSent    bool       `bun:"reminder_sent,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Window returns the booked half-open interval.
func (a Appointment) Window() TimeWindow {
	return TimeWindow{Start: a.StartTime, End: a.EndTime}
}

// Duration is the snapshotted service duration.
func (a Appointment) Duration() time.Duration {
	return time.Duration(a.ServiceDuration) * time.Minute
}

// Blocks reports whether the appointment holds its window on the resource calendar.
func (a Appointment) Blocks() bool {
	return a.DeletedAt == nil && a.Status.Blocks()
}
