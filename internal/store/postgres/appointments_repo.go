package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/outbox"
	"slotkeeper/backend/internal/store"
)

const noOverlapConstraint = "appointments_no_overlap"

type AppointmentRepo struct {
	db     *bun.DB
	outbox *outbox.Repository
}

func NewAppointmentRepo(db *bun.DB, outboxRepo *outbox.Repository) *AppointmentRepo {
	return &AppointmentRepo{db: db, outbox: outboxRepo}
}

var _ store.Ledger = (*AppointmentRepo)(nil)

type ledgerTx struct {
	tx     bun.Tx
	outbox *outbox.Repository
}

func (r *AppointmentRepo) InResourceTransaction(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockResourceCalendar(ctx, tx, tenantID, resourceID); err != nil {
			return err
		}
		return fn(ctx, ledgerTx{tx: tx, outbox: r.outbox})
	})
	return mapError(ctx, err)
}

func (r *AppointmentRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, ledgerTx{tx: tx, outbox: r.outbox})
	})
	return mapError(ctx, err)
}

func lockResourceCalendar(ctx context.Context, tx bun.Tx, tenantID, resourceID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", tenantID+"/"+resourceID).Exec(ctx)
	return err
}

func (r *AppointmentRepo) Get(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("tenant_id = ?", tenantID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(ctx, err)
	}
	return appt, nil
}

func (r *AppointmentRepo) ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	rows, err := listBlocking(ctx, r.db, tenantID, resourceID, windowStart, windowEnd)
	return rows, mapError(ctx, err)
}

func (r *AppointmentRepo) List(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", tenantID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC")
	if resourceID != "" {
		q = q.Where("resource_id = ?", resourceID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, mapError(ctx, err)
	}
	return rows, nil
}

func (r *AppointmentRepo) ClaimDueReminders(ctx context.Context, from, to time.Time, limit int, emit func(domain.Appointment) (domain.Event, error)) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var claimed []domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		claimed = nil
		err := tx.NewRaw(`
			UPDATE appointments
			SET reminder_sent = TRUE, updated_at = now()
			WHERE id IN (
				SELECT id FROM appointments
				WHERE start_time >= ?
					AND start_time < ?
					AND status IN (?)
					AND reminder_sent = FALSE
					AND deleted_at IS NULL
				ORDER BY start_time
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		`, from.UTC(), to.UTC(), bun.In(domain.ReschedulableStatuses), limit).Scan(ctx, &claimed)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		for _, appt := range claimed {
			evt, err := emit(appt)
			if err != nil {
				return err
			}
			if err := r.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return claimed, nil
}

func (r *AppointmentRepo) ListOverdueConfirmed(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", domain.StatusConfirmed).
		Where("end_time < ?", cutoff.UTC()).
		OrderExpr("end_time ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return rows, nil
}

func (r ledgerTx) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.tx.NewSelect().
		Model(&appt).
		Where("tenant_id = ?", tenantID).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r ledgerTx) ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	return listBlocking(ctx, r.tx, tenantID, resourceID, windowStart, windowEnd)
}

func listBlocking(ctx context.Context, db bun.IDB, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("tenant_id = ?", tenantID).
		Where("resource_id = ?", resourceID).
		Where("status IN (?)", bun.In(domain.BlockingStatuses)).
		Where("start_time < ?", windowEnd.UTC()).
		Where("end_time > ?", windowStart.UTC()).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r ledgerTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.StartTime = appt.StartTime.UTC()
	m.EndTime = appt.EndTime.UTC()

	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r ledgerTx) UpdateSchedule(ctx context.Context, appt domain.Appointment) error {
	m := appt
	m.StartTime = appt.StartTime.UTC()
	m.EndTime = appt.EndTime.UTC()
	return r.update(ctx, &m, "resource_id", "start_time", "end_time", "reminder_sent", "updated_at")
}

func (r ledgerTx) UpdateStatus(ctx context.Context, appt domain.Appointment) error {
	m := appt
	return r.update(ctx, &m, "status", "cancel_reason", "cancelled_at", "updated_at")
}

func (r ledgerTx) update(ctx context.Context, m *domain.Appointment, columns ...string) error {
	res, err := r.tx.NewUpdate().
		Model(m).
		Column(columns...).
		WherePK().
		Where("tenant_id = ?", m.TenantID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r ledgerTx) AppendEvent(ctx context.Context, evt domain.Event) error {
	return r.outbox.Insert(ctx, r.tx, evt)
}

// mapError translates driver errors into the store error taxonomy.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrIdempotencyConflict) || errors.Is(err, store.ErrTransient) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			if pgErr.ConstraintName == noOverlapConstraint {
				return store.ErrConflict
			}
		case "23505":
			if pgErr.ConstraintName == "appointments_pkey" {
				// Concurrent insert with the same idempotent id; a retry observes the winner.
				return fmt.Errorf("%w: %v", store.ErrTransient, err)
			}
		case "40001", "40P01", "55P03", "57014":
			return fmt.Errorf("%w: %v", store.ErrTransient, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}
	return err
}
