package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"slotkeeper/backend/internal/availability"
	"slotkeeper/backend/internal/conflict"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store"
)

const slotUnavailableMessage = "This time is no longer available. Please choose another."

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// SlotUnavailableError means the requested window conflicts with a booking or lies
// outside working hours. Callers should re-query availability rather than retry.
type SlotUnavailableError struct {
	ResourceID string
	Window     domain.TimeWindow
	Reason     string
	err        error
}

func (e *SlotUnavailableError) Error() string {
	return slotUnavailableMessage
}

func (e *SlotUnavailableError) Unwrap() error {
	return e.err
}

// InvalidStateError means Op is not allowed while the appointment is in Status.
type InvalidStateError struct {
	Op     string
	Status domain.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s appointment in status %s", e.Op, e.Status)
}

var ErrNoAvailability = errors.New("no availability within horizon")

type Config struct {
	// DefaultStep applies when neither the request nor the resource names a slot step.
	DefaultStep          time.Duration
	RetryAttempts        int
	RetryInitialInterval time.Duration
	ReminderLead         time.Duration
	ReminderWidth        time.Duration
	// NoShowGrace of zero disables the no-show sweep.
	NoShowGrace   time.Duration
	SweepBatch    int
	SearchHorizon int
}

func (c Config) withDefaults() Config {
	if c.DefaultStep <= 0 {
		c.DefaultStep = availability.DefaultStep
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 50 * time.Millisecond
	}
	if c.ReminderLead <= 0 {
		c.ReminderLead = 24 * time.Hour
	}
	if c.ReminderWidth <= 0 {
		c.ReminderWidth = time.Hour
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	if c.SearchHorizon <= 0 {
		c.SearchHorizon = 14
	}
	return c
}

type Service struct {
	ledger     store.Ledger
	calendar   store.CalendarSource
	catalog    store.ServiceCatalog
	calculator *availability.Calculator
	guard      *conflict.Guard

	cfg    Config
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(ledger store.Ledger, calendar store.CalendarSource, catalog store.ServiceCatalog, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		calendar: calendar,
		catalog:  catalog,
		guard:    conflict.NewGuard(),
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer("slotkeeper/appointments"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	s.logger = s.logger.With("component", "appointments")
	s.calculator = availability.NewCalculator(calendar, ledger,
		availability.WithClock(s.now),
		availability.WithDefaultStep(s.cfg.DefaultStep),
	)
	return s
}

func (s *Service) startSpan(ctx context.Context, name, tenantID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("tenant_id", tenantID))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withRetry runs op again when it fails with store.ErrTransient. Any other error is
// returned immediately.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitialInterval
	b.MaxInterval = 20 * s.cfg.RetryInitialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil || errors.Is(err, store.ErrTransient) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.cfg.RetryAttempts)))

	if err != nil && !errors.Is(err, store.ErrTransient) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}
	return err
}

func requireIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return validationError(pairs[i] + " is required")
		}
	}
	return nil
}

type SlotsInput struct {
	TenantID   string
	ResourceID string
	Date       domain.Date
	// DurationMinutes wins over ServiceID when both are set.
	DurationMinutes int
	ServiceID       string
	StepMinutes     int
}

func (s *Service) GetAvailableSlots(ctx context.Context, in SlotsInput) (slots []domain.TimeWindow, err error) {
	ctx, span := s.startSpan(ctx, "appointments.GetAvailableSlots", in.TenantID, attribute.String("resource_id", in.ResourceID))
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", in.TenantID, "resource_id", in.ResourceID); err != nil {
		return nil, err
	}
	if in.Date == (domain.Date{}) {
		return nil, validationError("date is required")
	}
	if in.StepMinutes < 0 {
		return nil, validationError("step_minutes must not be negative")
	}
	duration, err := s.resolveDuration(ctx, in.TenantID, in.DurationMinutes, in.ServiceID)
	if err != nil {
		return nil, err
	}

	seq, err := s.calculator.FreeSlots(ctx, in.TenantID, in.ResourceID, in.Date, duration, time.Duration(in.StepMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	slots = []domain.TimeWindow{}
	for w := range seq {
		slots = append(slots, w)
	}
	return slots, nil
}

type NextAvailableInput struct {
	TenantID        string
	ResourceID      string
	From            time.Time
	DurationMinutes int
	ServiceID       string
	HorizonDays     int
}

func (s *Service) NextAvailable(ctx context.Context, in NextAvailableInput) (w domain.TimeWindow, err error) {
	ctx, span := s.startSpan(ctx, "appointments.NextAvailable", in.TenantID, attribute.String("resource_id", in.ResourceID))
	defer func() { endSpan(span, err) }()

	if err := requireIDs("tenant_id", in.TenantID, "resource_id", in.ResourceID); err != nil {
		return domain.TimeWindow{}, err
	}
	duration, err := s.resolveDuration(ctx, in.TenantID, in.DurationMinutes, in.ServiceID)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	from := in.From.UTC()
	if now := s.now().UTC(); from.IsZero() || from.Before(now) {
		from = now
	}
	horizon := in.HorizonDays
	if horizon <= 0 {
		horizon = s.cfg.SearchHorizon
	}

	w, ok, err := s.calculator.NextAvailable(ctx, in.TenantID, in.ResourceID, from, duration, horizon)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	if !ok {
		return domain.TimeWindow{}, ErrNoAvailability
	}
	return w, nil
}

func (s *Service) resolveDuration(ctx context.Context, tenantID string, minutes int, serviceID string) (time.Duration, error) {
	if minutes < 0 {
		return 0, validationError("duration_minutes must be positive")
	}
	if minutes > 0 {
		if minutes > 24*60 {
			return 0, validationError("duration too long")
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	if strings.TrimSpace(serviceID) == "" {
		return 0, validationError("duration_minutes or service_id is required")
	}
	svc, err := s.catalog.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return 0, err
	}
	if svc.DurationMinutes <= 0 {
		return 0, validationError("service has no duration")
	}
	return time.Duration(svc.DurationMinutes) * time.Minute, nil
}

func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error) {
	if err := requireIDs("tenant_id", tenantID); err != nil {
		return domain.Appointment{}, err
	}
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.ledger.Get(ctx, tenantID, id)
}

// List returns appointments of any status overlapping [windowStart, windowEnd).
// An empty resourceID lists the whole tenant.
func (s *Service) List(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if err := requireIDs("tenant_id", tenantID); err != nil {
		return nil, err
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.ledger.List(ctx, tenantID, resourceID, start, end)
}
