// Package conflict re-checks the no-overlap invariant at commit time.
package conflict

import (
	"context"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

// Guard must be called inside the resource-scoped unit of work that performs the
// write; it reads the ledger through that unit of work, never through a snapshot.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

// TryReserve reports whether window is free on the resource, ignoring the appointment
// named by exclude. Empty windows are never reservable.
func (g *Guard) TryReserve(ctx context.Context, tx store.LedgerTx, tenantID, resourceID string, window domain.TimeWindow, exclude *uuid.UUID) (bool, error) {
	if window.IsEmpty() {
		return false, nil
	}
	existing, err := tx.ListBlocking(ctx, tenantID, resourceID, window.Start, window.End)
	if err != nil {
		return false, err
	}
	for _, a := range existing {
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.Blocks() && window.Overlaps(a.Window()) {
			return false, nil
		}
	}
	return true, nil
}
