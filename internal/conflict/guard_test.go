package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type fakeTx struct {
	store.LedgerTx
	listBlockingFn func(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

func (f *fakeTx) ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listBlockingFn == nil {
		panic("ListBlocking not configured")
	}
	return f.listBlockingFn(ctx, tenantID, resourceID, windowStart, windowEnd)
}

func TestTryReserve(t *testing.T) {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	existingID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	existing := domain.Appointment{
		ID:         existingID,
		TenantID:   "t1",
		ResourceID: "r1",
		StartTime:  base,
		EndTime:    base.Add(30 * time.Minute),
		Status:     domain.StatusConfirmed,
	}
	tx := &fakeTx{
		listBlockingFn: func(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
			if tenantID != "t1" || resourceID != "r1" {
				t.Fatalf("unexpected scope %s/%s", tenantID, resourceID)
			}
			return []domain.Appointment{existing}, nil
		},
	}

	tests := []struct {
		name    string
		window  domain.TimeWindow
		exclude *uuid.UUID
		want    bool
	}{
		{name: "overlapping", window: domain.TimeWindow{Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)}},
		{name: "touching after", window: domain.TimeWindow{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}, want: true},
		{name: "touching before", window: domain.TimeWindow{Start: base.Add(-30 * time.Minute), End: base}, want: true},
		{name: "excluding self", window: domain.TimeWindow{Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)}, exclude: &existingID, want: true},
		{name: "empty window", window: domain.TimeWindow{Start: base.Add(2 * time.Hour), End: base.Add(2 * time.Hour)}},
	}

	g := NewGuard()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := g.TryReserve(context.Background(), tx, "t1", "r1", tc.window, tc.exclude)
			if err != nil {
				t.Fatalf("TryReserve error: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("TryReserve = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestTryReservePropagatesStoreError(t *testing.T) {
	tx := &fakeTx{
		listBlockingFn: func(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
			return nil, store.ErrTransient
		},
	}
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	_, err := NewGuard().TryReserve(context.Background(), tx, "t1", "r1", domain.TimeWindow{Start: base, End: base.Add(time.Minute)}, nil)
	if !errors.Is(err, store.ErrTransient) {
		t.Fatalf("err = %v, want %v", err, store.ErrTransient)
	}
}
