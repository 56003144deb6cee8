package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

var base = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func pending(resourceID string, start time.Time) domain.Appointment {
	return domain.Appointment{
		TenantID:        "t1",
		ResourceID:      resourceID,
		CustomerID:      "c1",
		ServiceID:       "s1",
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		Status:          domain.StatusPending,
		ServiceDuration: 30,
	}
}

func insert(l *Ledger, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := l.InResourceTransaction(context.Background(), appt.TenantID, appt.ResourceID, func(ctx context.Context, tx store.LedgerTx) error {
		var err error
		out, err = tx.InsertAppointment(ctx, appt)
		return err
	})
	return out, err
}

func TestLedger_CommitRejectsOverlap(t *testing.T) {
	l := NewLedger()

	if _, err := insert(l, pending("r1", base)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := insert(l, pending("r1", base.Add(10*time.Minute))); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("overlap err = %v, want %v", err, store.ErrConflict)
	}
	if _, err := insert(l, pending("r1", base.Add(30*time.Minute))); err != nil {
		t.Fatalf("touching insert: %v", err)
	}
	if _, err := insert(l, pending("r2", base)); err != nil {
		t.Fatalf("other resource insert: %v", err)
	}
}

func TestLedger_FailedUnitOfWorkLeavesNoTrace(t *testing.T) {
	l := NewLedger()
	boom := errors.New("boom")

	err := l.InResourceTransaction(context.Background(), "t1", "r1", func(ctx context.Context, tx store.LedgerTx) error {
		if _, err := tx.InsertAppointment(ctx, pending("r1", base)); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, domain.Event{Type: domain.EventAppointmentCreated}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	rows, _ := l.List(context.Background(), "t1", "", base.Add(-time.Hour), base.Add(time.Hour))
	if len(rows) != 0 {
		t.Fatalf("rolled back insert is visible: %+v", rows)
	}
	if len(l.Events()) != 0 {
		t.Fatalf("rolled back event is visible")
	}
}

func TestLedger_StaleReadIsTransient(t *testing.T) {
	l := NewLedger()
	appt, err := insert(l, pending("r1", base))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = l.InTransaction(context.Background(), func(ctx context.Context, tx store.LedgerTx) error {
		cur, err := tx.GetForUpdate(ctx, "t1", appt.ID)
		if err != nil {
			return err
		}

		concurrent := cur
		concurrent.Status = domain.StatusConfirmed
		l.Put(concurrent)

		cur.Status = domain.StatusCancelled
		return tx.UpdateStatus(ctx, cur)
	})
	if !errors.Is(err, store.ErrTransient) {
		t.Fatalf("err = %v, want %v", err, store.ErrTransient)
	}
}

func TestLedger_ConcurrentInsertsOneWinner(t *testing.T) {
	l := NewLedger()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := insert(l, pending("r1", base))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful inserts = %d, want 1", ok)
	}
}

func TestLedger_ClaimDueReminders(t *testing.T) {
	l := NewLedger()
	due := pending("r1", base)
	due.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	late := pending("r1", base.Add(2*time.Hour))
	late.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	cancelled := pending("r2", base)
	cancelled.ID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	cancelled.Status = domain.StatusCancelled
	for _, a := range []domain.Appointment{due, late, cancelled} {
		l.Put(a)
	}

	emit := func(a domain.Appointment) (domain.Event, error) { return domain.ReminderDue(a, base) }

	claimed, err := l.ClaimDueReminders(context.Background(), base, base.Add(time.Hour), 10, emit)
	if err != nil {
		t.Fatalf("ClaimDueReminders: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != due.ID {
		t.Fatalf("claimed = %+v", claimed)
	}

	again, _ := l.ClaimDueReminders(context.Background(), base, base.Add(time.Hour), 10, emit)
	if len(again) != 0 {
		t.Fatalf("second sweep claimed %d", len(again))
	}
	if got := len(l.Events()); got != 1 {
		t.Fatalf("events = %d, want 1", got)
	}
}

func TestLedger_CancelledContextIsTransient(t *testing.T) {
	l := NewLedger()
	sem := l.resourceLock("t1", "r1")
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := l.InResourceTransaction(ctx, "t1", "r1", func(ctx context.Context, tx store.LedgerTx) error { return nil })
	if !errors.Is(err, store.ErrTransient) {
		t.Fatalf("err = %v, want %v", err, store.ErrTransient)
	}
}

func TestLedger_WaiterRunsAfterRelease(t *testing.T) {
	l := NewLedger()
	sem := l.resourceLock("t1", "r1")
	sem <- struct{}{}

	done := make(chan error, 1)
	go func() {
		done <- l.InResourceTransaction(context.Background(), "t1", "r1", func(ctx context.Context, tx store.LedgerTx) error { return nil })
	}()

	select {
	case err := <-done:
		t.Fatalf("unit of work ran while resource was held: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if err := l.InResourceTransaction(context.Background(), "t1", "r2", func(ctx context.Context, tx store.LedgerTx) error { return nil }); err != nil {
		t.Fatalf("other resource blocked: %v", err)
	}

	<-sem
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter did not run after release")
	}
}
