package appointments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// Cancel moves a non-terminal appointment to Cancelled. It never consults the guard:
// cancelling only frees time.
func (s *Service) Cancel(ctx context.Context, tenantID string, id uuid.UUID, reason string) (appt domain.Appointment, err error) {
	ctx, span := s.startSpan(ctx, "appointments.Cancel", tenantID, attribute.String("appointment_id", id.String()))
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", tenantID); err != nil {
		return domain.Appointment{}, err
	}
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if len(strings.TrimSpace(reason)) > 1024 {
		return domain.Appointment{}, validationError("reason too long")
	}

	err = s.withRetry(ctx, func() error {
		return s.ledger.InTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
			cur, err := tx.GetForUpdate(ctx, tenantID, id)
			if err != nil {
				return err
			}
			if cur.Status.IsTerminal() {
				return &InvalidStateError{Op: "cancel", Status: cur.Status}
			}
			updated, err := s.transition(ctx, tx, cur, domain.StatusCancelled, reason)
			if err != nil {
				return err
			}
			appt = updated
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// UpdateStatus applies one state-machine transition. Illegal moves fail with
// *domain.InvalidTransitionError carrying the current status.
func (s *Service) UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, target domain.Status) (appt domain.Appointment, err error) {
	ctx, span := s.startSpan(ctx, "appointments.UpdateStatus", tenantID,
		attribute.String("appointment_id", id.String()),
		attribute.String("target_status", string(target)),
	)
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", tenantID); err != nil {
		return domain.Appointment{}, err
	}
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if _, err := domain.ParseStatus(string(target)); err != nil {
		return domain.Appointment{}, validationError(err.Error())
	}

	err = s.withRetry(ctx, func() error {
		return s.ledger.InTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
			cur, err := tx.GetForUpdate(ctx, tenantID, id)
			if err != nil {
				return err
			}
			updated, err := s.transition(ctx, tx, cur, target, "")
			if err != nil {
				return err
			}
			appt = updated
			return nil
		})
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) transition(ctx context.Context, tx store.LedgerTx, cur domain.Appointment, to domain.Status, reason string) (domain.Appointment, error) {
	from := cur.Status
	if err := domain.Transition(&cur, to, reason, s.now().UTC()); err != nil {
		return domain.Appointment{}, err
	}
	if err := tx.UpdateStatus(ctx, cur); err != nil {
		return domain.Appointment{}, err
	}
	evt, err := domain.AppointmentStatusChanged(cur, from)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return domain.Appointment{}, err
	}
	return cur, nil
}
