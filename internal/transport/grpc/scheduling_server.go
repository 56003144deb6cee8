package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "slotkeeper/backend/internal/api/v1"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/appointments"
)

type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

type schedulingService interface {
	GetAvailableSlots(ctx context.Context, in appointments.SlotsInput) ([]domain.TimeWindow, error)
	NextAvailable(ctx context.Context, in appointments.NextAvailableInput) (domain.TimeWindow, error)
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error)
	Cancel(ctx context.Context, tenantID string, id uuid.UUID, reason string) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, target domain.Status) (domain.Appointment, error)
	Get(ctx context.Context, tenantID string, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, tenantID, resourceID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

var _ SchedulingServiceServer = (*SchedulingServer)(nil)

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) rpcLog(ctx context.Context, rpc string) *slog.Logger {
	log := s.log.With(slog.String("rpc", rpc))
	if id := requestID(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	return log
}

func nilRequest(log *slog.Logger) error {
	log.Warn("invalid request", slog.String("reason", "nil_request"))
	return status.Error(codes.InvalidArgument, "request is required")
}

func parseAppointmentID(log *slog.Logger, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return uuid.Nil, status.Error(codes.InvalidArgument, "appointment_id must be a UUID")
	}
	return id, nil
}

func (s *SchedulingServer) GetAvailableSlots(ctx context.Context, req *apiv1.GetAvailableSlotsRequest) (*apiv1.GetAvailableSlotsResponse, error) {
	log := s.rpcLog(ctx, "GetAvailableSlots")

	if req == nil {
		return nil, nilRequest(log)
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("tenant_id", req.TenantID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	slots, err := s.svc.GetAvailableSlots(ctx, appointments.SlotsInput{
		TenantID:        req.TenantID,
		ResourceID:      req.ResourceID,
		Date:            date,
		DurationMinutes: req.DurationMinutes,
		ServiceID:       req.ServiceID,
		StepMinutes:     req.StepMinutes,
	})
	if err != nil {
		return nil, statusError(log, "slots query", "resource not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("resource_id", req.ResourceID))
	}

	log.Debug(
		"slots listed",
		slog.String("tenant_id", req.TenantID),
		slog.String("resource_id", req.ResourceID),
		slog.String("date", date.String()),
		slog.Int("count", len(slots)),
	)
	return &apiv1.GetAvailableSlotsResponse{Slots: apiv1.FromSlots(slots)}, nil
}

func (s *SchedulingServer) NextAvailableSlot(ctx context.Context, req *apiv1.NextAvailableSlotRequest) (*apiv1.NextAvailableSlotResponse, error) {
	log := s.rpcLog(ctx, "NextAvailableSlot")

	if req == nil {
		return nil, nilRequest(log)
	}
	in := appointments.NextAvailableInput{
		TenantID:        req.TenantID,
		ResourceID:      req.ResourceID,
		DurationMinutes: req.DurationMinutes,
		ServiceID:       req.ServiceID,
		HorizonDays:     req.HorizonDays,
	}
	if req.From != nil {
		in.From = *req.From
	}

	w, err := s.svc.NextAvailable(ctx, in)
	if err != nil {
		return nil, statusError(log, "next slot query", "resource not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("resource_id", req.ResourceID))
	}
	return &apiv1.NextAvailableSlotResponse{Slot: apiv1.FromSlot(w)}, nil
}

func (s *SchedulingServer) CreateAppointment(ctx context.Context, req *apiv1.CreateAppointmentRequest) (*apiv1.AppointmentResponse, error) {
	log := s.rpcLog(ctx, "CreateAppointment")

	if req == nil {
		return nil, nilRequest(log)
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("tenant_id", req.TenantID))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}

	appt, err := s.svc.Create(ctx, appointments.CreateInput{
		TenantID:       req.TenantID,
		ResourceID:     req.ResourceID,
		ServiceID:      req.ServiceID,
		CustomerID:     req.CustomerID,
		StartTime:      *req.StartTime,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, statusError(log, "appointment create", "resource or service not found", err,
			slog.String("tenant_id", req.TenantID),
			slog.String("resource_id", req.ResourceID),
			slog.Time("start_time", *req.StartTime),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("tenant_id", appt.TenantID),
		slog.String("resource_id", appt.ResourceID),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	return &apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)}, nil
}

func (s *SchedulingServer) RescheduleAppointment(ctx context.Context, req *apiv1.RescheduleAppointmentRequest) (*apiv1.AppointmentResponse, error) {
	log := s.rpcLog(ctx, "RescheduleAppointment")

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if req.NewStartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_new_start_time"), slog.String("appointment_id", id.String()))
		return nil, status.Error(codes.InvalidArgument, "new_start_time is required")
	}

	appt, err := s.svc.Reschedule(ctx, appointments.RescheduleInput{
		TenantID:      req.TenantID,
		AppointmentID: id,
		NewStartTime:  *req.NewStartTime,
		NewResourceID: req.NewResourceID,
	})
	if err != nil {
		return nil, statusError(log, "appointment reschedule", "appointment not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("appointment_id", id.String()))
	}

	log.Info(
		"appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("resource_id", appt.ResourceID),
		slog.Time("start_time", appt.StartTime),
	)
	return &apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)}, nil
}

func (s *SchedulingServer) CancelAppointment(ctx context.Context, req *apiv1.CancelAppointmentRequest) (*apiv1.AppointmentResponse, error) {
	log := s.rpcLog(ctx, "CancelAppointment")

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Cancel(ctx, req.TenantID, id, req.Reason)
	if err != nil {
		return nil, statusError(log, "appointment cancel", "appointment not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("appointment_id", id.String()))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", id.String()), slog.String("tenant_id", req.TenantID))
	return &apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)}, nil
}

func (s *SchedulingServer) UpdateStatus(ctx context.Context, req *apiv1.UpdateStatusRequest) (*apiv1.AppointmentResponse, error) {
	log := s.rpcLog(ctx, "UpdateStatus")

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "unknown_status"), slog.String("status", req.Status))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	appt, err := s.svc.UpdateStatus(ctx, req.TenantID, id, target)
	if err != nil {
		return nil, statusError(log, "status update", "appointment not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("appointment_id", id.String()))
	}

	log.Info("appointment status updated", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return &apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)}, nil
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *apiv1.GetAppointmentRequest) (*apiv1.AppointmentResponse, error) {
	log := s.rpcLog(ctx, "GetAppointment")

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Get(ctx, req.TenantID, id)
	if err != nil {
		return nil, statusError(log, "appointment get", "appointment not found", err,
			slog.String("tenant_id", req.TenantID), slog.String("appointment_id", id.String()))
	}
	return &apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)}, nil
}

func (s *SchedulingServer) ListAppointments(ctx context.Context, req *apiv1.ListAppointmentsRequest) (*apiv1.ListAppointmentsResponse, error) {
	log := s.rpcLog(ctx, "ListAppointments")

	if req == nil {
		return nil, nilRequest(log)
	}
	if req.WindowStart == nil || req.WindowEnd == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("tenant_id", req.TenantID))
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end are required")
	}

	appts, err := s.svc.List(ctx, req.TenantID, req.ResourceID, *req.WindowStart, *req.WindowEnd)
	if err != nil {
		return nil, statusError(log, "appointments list", "not found", err, slog.String("tenant_id", req.TenantID))
	}

	log.Debug(
		"appointments listed",
		slog.String("tenant_id", req.TenantID),
		slog.Int("count", len(appts)),
		slog.Time("window_start", *req.WindowStart),
		slog.Time("window_end", *req.WindowEnd),
	)
	return &apiv1.ListAppointmentsResponse{Appointments: apiv1.FromAppointments(appts)}, nil
}
