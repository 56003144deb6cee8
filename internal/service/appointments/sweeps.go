package appointments

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// SweepReminders claims every appointment starting in [now+lead, now+lead+width) that
// has not been reminded and records one ReminderDue event each. Claiming flips the
// flag in the same write, so overlapping sweeps never double-emit.
func (s *Service) SweepReminders(ctx context.Context, now time.Time) (total int, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.SweepReminders")
	defer func() {
		span.SetAttributes(attribute.Int("claimed", total))
		endSpan(span, err)
	}()

	from := now.UTC().Add(s.cfg.ReminderLead)
	to := from.Add(s.cfg.ReminderWidth)
	emit := func(a domain.Appointment) (domain.Event, error) {
		return domain.ReminderDue(a, a.StartTime.Add(-s.cfg.ReminderLead))
	}

	for {
		var claimed []domain.Appointment
		err := s.withRetry(ctx, func() error {
			var err error
			claimed, err = s.ledger.ClaimDueReminders(ctx, from, to, s.cfg.SweepBatch, emit)
			return err
		})
		if err != nil {
			return total, err
		}
		total += len(claimed)
		if len(claimed) < s.cfg.SweepBatch {
			break
		}
	}
	if total > 0 {
		s.logger.Info("reminders due", "count", total, "window_start", from, "window_end", to)
	}
	return total, nil
}

// SweepNoShows marks Confirmed appointments that ended more than the grace period ago
// as NoShow. A zero grace period disables the sweep.
func (s *Service) SweepNoShows(ctx context.Context, now time.Time) (marked int, err error) {
	if s.cfg.NoShowGrace <= 0 {
		return 0, nil
	}
	ctx, span := s.tracer.Start(ctx, "appointments.SweepNoShows")
	defer func() {
		span.SetAttributes(attribute.Int("marked", marked))
		endSpan(span, err)
	}()

	cutoff := now.UTC().Add(-s.cfg.NoShowGrace)
	overdue, err := s.ledger.ListOverdueConfirmed(ctx, cutoff, s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	for _, a := range overdue {
		err := s.withRetry(ctx, func() error {
			return s.ledger.InTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
				cur, err := tx.GetForUpdate(ctx, a.TenantID, a.ID)
				if err != nil {
					return err
				}
				if cur.Status != domain.StatusConfirmed {
					return errSkip
				}
				_, err = s.transition(ctx, tx, cur, domain.StatusNoShow, "")
				return err
			})
		})
		switch {
		case err == nil:
			marked++
		case errors.Is(err, errSkip), errors.Is(err, store.ErrNotFound):
		default:
			return marked, err
		}
	}
	if marked > 0 {
		s.logger.Info("appointments marked no-show", "count", marked, "cutoff", cutoff)
	}
	return marked, nil
}

var errSkip = errors.New("skip")
