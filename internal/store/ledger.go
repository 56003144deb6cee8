package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
)

// Ledger is the durable appointment record set and the source of truth for conflicts.
type Ledger interface {
	// InResourceTransaction runs fn in one unit of work serialized per (tenant, resource).
	// Returning an error from fn rolls everything back.
	InResourceTransaction(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context, tx LedgerTx) error) error
	// InTransaction runs fn in one unit of work without taking a resource lock. Used by
	// operations that can only free time, never claim it.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	Get(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error)
	ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	List(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)

	// ClaimDueReminders flips reminder_sent on at most limit appointments starting in
	// [from, to) with a reminder-eligible status, writes one event per claimed row via
	// emit, and returns the claimed rows. Selection, flag flip and event writes commit
	// together.
	ClaimDueReminders(ctx context.Context, from, to time.Time, limit int, emit func(domain.Appointment) (domain.Event, error)) ([]domain.Appointment, error)
	// ListOverdueConfirmed returns confirmed appointments whose end_time is before cutoff.
	ListOverdueConfirmed(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error)
}
