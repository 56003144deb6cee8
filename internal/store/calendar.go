package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

// LedgerTx is the view of the ledger inside one unit of work.
type LedgerTx interface {
	// GetForUpdate loads an appointment and locks its row for the rest of the unit of work.
	GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error)
	// ListBlocking returns appointments on the resource in a blocking status that overlap
	// [windowStart, windowEnd).
	ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// UpdateSchedule persists resource, start, end and reminder flag of appt.
	UpdateSchedule(ctx context.Context, appt domain.Appointment) error
	// UpdateStatus persists status, cancel reason and cancelled_at of appt.
	UpdateStatus(ctx context.Context, appt domain.Appointment) error
	AppendEvent(ctx context.Context, evt domain.Event) error
}

// CalendarSource provides a resource's working-hours template and overrides. Read-only.
type CalendarSource interface {
	GetResource(ctx context.Context, tenantID, resourceID string) (domain.Resource, error)
}

// ServiceCatalog provides service duration and price at booking time. Read-only.
type ServiceCatalog interface {
	GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error)
}
