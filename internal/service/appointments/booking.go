package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type CreateInput struct {
	TenantID       string
	ResourceID     string
	ServiceID      string
	CustomerID     string
	StartTime      time.Time
	IdempotencyKey string
}

// Create books a Pending appointment. The service duration and price are copied from
// the catalog at this moment and never re-read.
func (s *Service) Create(ctx context.Context, in CreateInput) (appt domain.Appointment, err error) {
	ctx, span := s.startSpan(ctx, "appointments.Create", in.TenantID, attribute.String("resource_id", in.ResourceID))
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", in.TenantID, "resource_id", in.ResourceID, "service_id", in.ServiceID, "customer_id", in.CustomerID); err != nil {
		return domain.Appointment{}, err
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}

	var id uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotkeeper:create_appointment:"+in.TenantID+":"+in.CustomerID+":"+key))
	}

	svc, err := s.catalog.GetService(ctx, in.TenantID, in.ServiceID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if svc.DurationMinutes <= 0 {
		return domain.Appointment{}, validationError("service has no duration")
	}

	start := in.StartTime.UTC()
	window := domain.TimeWindow{Start: start, End: start.Add(time.Duration(svc.DurationMinutes) * time.Minute)}

	candidate := domain.Appointment{
		ID:              id,
		TenantID:        in.TenantID,
		ResourceID:      in.ResourceID,
		CustomerID:      in.CustomerID,
		ServiceID:       in.ServiceID,
		StartTime:       window.Start,
		EndTime:         window.End,
		Status:          domain.StatusPending,
		ServiceDuration: svc.DurationMinutes,
		PriceCents:      svc.PriceCents,
		Currency:        svc.Currency,
	}

	err = s.withRetry(ctx, func() error {
		if id != uuid.Nil {
			// A replay may land after the window was taken by the original request.
			if existing, err := s.ledger.Get(ctx, in.TenantID, id); err == nil {
				if !sameBooking(existing, candidate) {
					return store.ErrIdempotencyConflict
				}
				appt = existing
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		if err := s.checkBookable(ctx, in.TenantID, in.ResourceID, window); err != nil {
			return err
		}

		return s.ledger.InResourceTransaction(ctx, in.TenantID, in.ResourceID, func(ctx context.Context, tx store.LedgerTx) error {
			if id != uuid.Nil {
				existing, err := tx.GetForUpdate(ctx, in.TenantID, id)
				switch {
				case err == nil:
					if !sameBooking(existing, candidate) {
						return store.ErrIdempotencyConflict
					}
					appt = existing
					return nil
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
			}

			ok, err := s.guard.TryReserve(ctx, tx, in.TenantID, in.ResourceID, window, nil)
			if err != nil {
				return err
			}
			if !ok {
				return slotUnavailable(in.ResourceID, window, "conflict", store.ErrConflict)
			}

			created, err := tx.InsertAppointment(ctx, candidate)
			if err != nil {
				return err
			}
			evt, err := domain.AppointmentCreated(created)
			if err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, evt); err != nil {
				return err
			}
			appt = created
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, asSlotUnavailable(err, in.ResourceID, window)
	}
	return appt, nil
}

func sameBooking(a, b domain.Appointment) bool {
	return a.ResourceID == b.ResourceID &&
		a.CustomerID == b.CustomerID &&
		a.ServiceID == b.ServiceID &&
		a.StartTime.Equal(b.StartTime)
}

// checkBookable rejects windows in the past or outside the resource's effective hours.
func (s *Service) checkBookable(ctx context.Context, tenantID, resourceID string, window domain.TimeWindow) error {
	if window.Start.Before(s.now()) {
		return slotUnavailable(resourceID, window, "in the past", nil)
	}
	res, err := s.calendar.GetResource(ctx, tenantID, resourceID)
	if err != nil {
		return err
	}
	ok, err := res.WithinHours(window)
	if err != nil {
		return err
	}
	if !ok {
		return slotUnavailable(resourceID, window, "outside working hours", nil)
	}
	return nil
}

func slotUnavailable(resourceID string, window domain.TimeWindow, reason string, cause error) error {
	return &SlotUnavailableError{ResourceID: resourceID, Window: window, Reason: reason, err: cause}
}

// asSlotUnavailable turns a constraint violation raised by the store into the typed error.
func asSlotUnavailable(err error, resourceID string, window domain.TimeWindow) error {
	var sErr *SlotUnavailableError
	if errors.As(err, &sErr) {
		return err
	}
	if errors.Is(err, store.ErrConflict) {
		return slotUnavailable(resourceID, window, "conflict", err)
	}
	return err
}

type RescheduleInput struct {
	TenantID      string
	AppointmentID uuid.UUID
	NewStartTime  time.Time
	// NewResourceID moves the appointment to another resource when set.
	NewResourceID string
}

// Reschedule moves a Pending or Confirmed appointment. On any failure the stored
// appointment is left untouched.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (appt domain.Appointment, err error) {
	ctx, span := s.startSpan(ctx, "appointments.Reschedule", in.TenantID, attribute.String("appointment_id", in.AppointmentID.String()))
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", in.TenantID); err != nil {
		return domain.Appointment{}, err
	}
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if in.NewStartTime.IsZero() {
		return domain.Appointment{}, validationError("new_start_time is required")
	}

	var target string
	var window domain.TimeWindow
	err = s.withRetry(ctx, func() error {
		current, err := s.ledger.Get(ctx, in.TenantID, in.AppointmentID)
		if err != nil {
			return err
		}
		if !current.Status.Reschedulable() {
			return &InvalidStateError{Op: "reschedule", Status: current.Status}
		}

		target = current.ResourceID
		if r := strings.TrimSpace(in.NewResourceID); r != "" {
			target = r
		}
		start := in.NewStartTime.UTC()
		window = domain.TimeWindow{Start: start, End: start.Add(current.Duration())}

		if target == current.ResourceID && window.Start.Equal(current.StartTime) && window.End.Equal(current.EndTime) {
			appt = current
			return nil
		}
		if err := s.checkBookable(ctx, in.TenantID, target, window); err != nil {
			return err
		}

		return s.ledger.InResourceTransaction(ctx, in.TenantID, target, func(ctx context.Context, tx store.LedgerTx) error {
			cur, err := tx.GetForUpdate(ctx, in.TenantID, in.AppointmentID)
			if err != nil {
				return err
			}
			if cur.ResourceID != current.ResourceID || cur.ServiceDuration != current.ServiceDuration {
				// Moved by a concurrent call after it was read; start over.
				return store.ErrTransient
			}
			if !cur.Status.Reschedulable() {
				return &InvalidStateError{Op: "reschedule", Status: cur.Status}
			}

			ok, err := s.guard.TryReserve(ctx, tx, in.TenantID, target, window, &cur.ID)
			if err != nil {
				return err
			}
			if !ok {
				return slotUnavailable(target, window, "conflict", store.ErrConflict)
			}

			previous, previousResource := cur.Window(), cur.ResourceID
			cur.ResourceID = target
			cur.StartTime = window.Start
			cur.EndTime = window.End
			cur.ReminderSent = false
			cur.UpdatedAt = s.now().UTC()
			if err := tx.UpdateSchedule(ctx, cur); err != nil {
				return err
			}

			evt, err := domain.AppointmentRescheduled(cur, previous, previousResource)
			if err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, evt); err != nil {
				return err
			}
			appt = cur
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, asSlotUnavailable(err, target, window)
	}
	return appt, nil
}
