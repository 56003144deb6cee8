// Package memory is an in-process store used for local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

type row struct {
	appt    domain.Appointment
	version int64
}

// Ledger keeps appointments in memory. Units of work are serialized per resource and
// validated at commit against the same no-overlap rule the Postgres exclusion
// constraint enforces.
type Ledger struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*row
	events []domain.Event

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	now  func() time.Time
	sink func(domain.Event)
}

type LedgerOption func(*Ledger)

// WithEventSink registers fn to receive every committed event.
func WithEventSink(fn func(domain.Event)) LedgerOption {
	return func(l *Ledger) { l.sink = fn }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		rows:  make(map[uuid.UUID]*row),
		locks: make(map[string]chan struct{}),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ store.Ledger = (*Ledger)(nil)

// resourceLock returns the size-one semaphore serializing units of work on a resource.
func (l *Ledger) resourceLock(tenantID, resourceID string) chan struct{} {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	key := tenantID + "/" + resourceID
	sem, ok := l.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[key] = sem
	}
	return sem
}

func (l *Ledger) InResourceTransaction(ctx context.Context, tenantID, resourceID string, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	sem := l.resourceLock(tenantID, resourceID)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return store.ErrTransient
	}
	defer func() { <-sem }()
	return l.run(ctx, fn)
}

func (l *Ledger) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	return l.run(ctx, fn)
}

func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	tx := &ledgerTx{ledger: l, staged: make(map[uuid.UUID]domain.Appointment), read: make(map[uuid.UUID]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return store.ErrTransient
	}
	events, err := l.commit(tx)
	if err != nil {
		return err
	}
	if l.sink != nil {
		for _, evt := range events {
			l.sink(evt)
		}
	}
	return nil
}

func (l *Ledger) commit(tx *ledgerTx) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, version := range tx.read {
		if r, ok := l.rows[id]; ok && r.version != version {
			return nil, store.ErrTransient
		}
	}
	for _, id := range tx.order {
		appt := tx.staged[id]
		if _, exists := l.rows[id]; exists && tx.inserted[id] {
			return nil, store.ErrTransient
		}
		if !appt.Blocks() {
			continue
		}
		for otherID, other := range l.rows {
			if otherID == id || tx.isStaged(otherID) {
				continue
			}
			if sameCalendar(appt, other.appt) && other.appt.Blocks() && appt.Window().Overlaps(other.appt.Window()) {
				return nil, store.ErrConflict
			}
		}
		for _, otherID := range tx.order {
			other := tx.staged[otherID]
			if otherID != id && sameCalendar(appt, other) && other.Blocks() && appt.Window().Overlaps(other.Window()) {
				return nil, store.ErrConflict
			}
		}
	}

	for _, id := range tx.order {
		r, ok := l.rows[id]
		if !ok {
			r = &row{}
			l.rows[id] = r
		}
		r.appt = tx.staged[id]
		r.version++
	}
	l.events = append(l.events, tx.events...)
	return tx.events, nil
}

func sameCalendar(a, b domain.Appointment) bool {
	return a.TenantID == b.TenantID && a.ResourceID == b.ResourceID
}

func (l *Ledger) Get(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok || r.appt.TenantID != tenantID || r.appt.DeletedAt != nil {
		return domain.Appointment{}, store.ErrNotFound
	}
	return r.appt, nil
}

func (l *Ledger) ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter(tenantID, resourceID, windowStart, windowEnd, true), nil
}

func (l *Ledger) List(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter(tenantID, resourceID, windowStart, windowEnd, false), nil
}

// filter must be called with l.mu held.
func (l *Ledger) filter(tenantID, resourceID string, windowStart, windowEnd time.Time, blockingOnly bool) []domain.Appointment {
	window := domain.TimeWindow{Start: windowStart, End: windowEnd}
	var out []domain.Appointment
	for _, r := range l.rows {
		a := r.appt
		if a.TenantID != tenantID || a.DeletedAt != nil {
			continue
		}
		if resourceID != "" && a.ResourceID != resourceID {
			continue
		}
		if blockingOnly && !a.Blocks() {
			continue
		}
		if !window.Overlaps(a.Window()) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out
}

func sortByStart(rows []domain.Appointment) {
	slices.SortFunc(rows, func(a, b domain.Appointment) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func (l *Ledger) ClaimDueReminders(ctx context.Context, from, to time.Time, limit int, emit func(domain.Appointment) (domain.Event, error)) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []*row
	for _, r := range l.rows {
		a := r.appt
		if a.DeletedAt != nil || a.ReminderSent || !a.Status.Reschedulable() {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		due = append(due, r)
	}
	slices.SortFunc(due, func(a, b *row) int { return a.appt.StartTime.Compare(b.appt.StartTime) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]domain.Appointment, 0, len(due))
	events := make([]domain.Event, 0, len(due))
	for _, r := range due {
		a := r.appt
		a.ReminderSent = true
		a.UpdatedAt = l.now()
		evt, err := emit(a)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, a)
		events = append(events, evt)
	}
	for i, r := range due {
		r.appt = claimed[i]
		r.version++
	}
	l.events = append(l.events, events...)
	if l.sink != nil {
		for _, evt := range events {
			l.sink(evt)
		}
	}
	return claimed, nil
}

func (l *Ledger) ListOverdueConfirmed(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Appointment
	for _, r := range l.rows {
		a := r.appt
		if a.DeletedAt == nil && a.Status == domain.StatusConfirmed && a.EndTime.Before(cutoff) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Appointment) int { return a.EndTime.Compare(b.EndTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Events returns every committed event in commit order.
func (l *Ledger) Events() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Put stores appt directly, bypassing conflict checks. Intended for seeding.
func (l *Ledger) Put(appt domain.Appointment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[appt.ID]
	if !ok {
		r = &row{}
		l.rows[appt.ID] = r
	}
	r.appt = appt
	r.version++
}

type ledgerTx struct {
	ledger   *Ledger
	staged   map[uuid.UUID]domain.Appointment
	inserted map[uuid.UUID]bool
	order    []uuid.UUID
	read     map[uuid.UUID]int64
	events   []domain.Event
}

func (t *ledgerTx) isStaged(id uuid.UUID) bool {
	_, ok := t.staged[id]
	return ok
}

func (t *ledgerTx) stage(appt domain.Appointment) {
	if !t.isStaged(appt.ID) {
		t.order = append(t.order, appt.ID)
	}
	t.staged[appt.ID] = appt
}

func (t *ledgerTx) GetForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error) {
	if a, ok := t.staged[id]; ok && a.TenantID == tenantID {
		return a, nil
	}
	t.ledger.mu.Lock()
	defer t.ledger.mu.Unlock()
	r, ok := t.ledger.rows[id]
	if !ok || r.appt.TenantID != tenantID || r.appt.DeletedAt != nil {
		return domain.Appointment{}, store.ErrNotFound
	}
	t.read[id] = r.version
	return r.appt, nil
}

func (t *ledgerTx) ListBlocking(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	t.ledger.mu.Lock()
	committed := t.ledger.filter(tenantID, resourceID, windowStart, windowEnd, true)
	t.ledger.mu.Unlock()

	window := domain.TimeWindow{Start: windowStart, End: windowEnd}
	out := make([]domain.Appointment, 0, len(committed))
	for _, a := range committed {
		if !t.isStaged(a.ID) {
			out = append(out, a)
		}
	}
	for _, id := range t.order {
		a := t.staged[id]
		if a.TenantID == tenantID && a.ResourceID == resourceID && a.Blocks() && window.Overlaps(a.Window()) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *ledgerTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		m.ID = id
	}
	now := t.ledger.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	m.StartTime = m.StartTime.UTC()
	m.EndTime = m.EndTime.UTC()

	if t.inserted == nil {
		t.inserted = make(map[uuid.UUID]bool)
	}
	t.inserted[m.ID] = true
	t.stage(m)
	return m, nil
}

func (t *ledgerTx) UpdateSchedule(ctx context.Context, appt domain.Appointment) error {
	cur, err := t.current(appt.TenantID, appt.ID)
	if err != nil {
		return err
	}
	cur.ResourceID = appt.ResourceID
	cur.StartTime = appt.StartTime.UTC()
	cur.EndTime = appt.EndTime.UTC()
	cur.ReminderSent = appt.ReminderSent
	cur.UpdatedAt = t.ledger.now()
	t.stage(cur)
	return nil
}

func (t *ledgerTx) UpdateStatus(ctx context.Context, appt domain.Appointment) error {
	cur, err := t.current(appt.TenantID, appt.ID)
	if err != nil {
		return err
	}
	cur.Status = appt.Status
	cur.CancelReason = appt.CancelReason
	cur.CancelledAt = appt.CancelledAt
	cur.UpdatedAt = t.ledger.now()
	t.stage(cur)
	return nil
}

func (t *ledgerTx) current(tenantID string, id uuid.UUID) (domain.Appointment, error) {
	if a, ok := t.staged[id]; ok {
		return a, nil
	}
	t.ledger.mu.Lock()
	defer t.ledger.mu.Unlock()
	r, ok := t.ledger.rows[id]
	if !ok || r.appt.TenantID != tenantID || r.appt.DeletedAt != nil {
		return domain.Appointment{}, store.ErrNotFound
	}
	if _, seen := t.read[id]; !seen {
		t.read[id] = r.version
	}
	return r.appt, nil
}

func (t *ledgerTx) AppendEvent(ctx context.Context, evt domain.Event) error {
	t.events = append(t.events, evt)
	return nil
}
