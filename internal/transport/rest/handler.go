package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apiv1 "slotkeeper/backend/internal/api/v1"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/appointments"
)

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

type Handler struct {
	svc schedulingService
	log *slog.Logger
}

func NewHandler(svc schedulingService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log.With(slog.String("component", "http.scheduling"))}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	tenant := api.Group("/tenants/:tenant_id")

	tenant.GET("/resources/:resource_id/slots", h.GetAvailableSlots)
	tenant.GET("/resources/:resource_id/next-slot", h.NextAvailableSlot)

	tenant.GET("/appointments", h.ListAppointments)
	tenant.POST("/appointments", h.CreateAppointment)
	tenant.GET("/appointments/:id", h.GetAppointment)
	tenant.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	tenant.POST("/appointments/:id/cancel", h.CancelAppointment)
	tenant.POST("/appointments/:id/status", h.UpdateStatus)
}

func (h *Handler) routeLog(c echo.Context, route string) *slog.Logger {
	log := h.log.With(slog.String("route", route), slog.String("tenant_id", c.Param("tenant_id")))
	if rid, ok := c.Get(requestIDContextKey).(string); ok && rid != "" {
		log = log.With(slog.String("request_id", rid))
	}
	return log
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}

func queryTime(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

func appointmentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return id, nil
}

func (h *Handler) GetAvailableSlots(c echo.Context) error {
	log := h.routeLog(c, "GetAvailableSlots")

	date, err := domain.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	duration, err := queryInt(c, "duration_minutes")
	if err != nil {
		return err
	}
	step, err := queryInt(c, "step_minutes")
	if err != nil {
		return err
	}

	slots, err := h.svc.GetAvailableSlots(c.Request().Context(), appointments.SlotsInput{
		TenantID:        c.Param("tenant_id"),
		ResourceID:      c.Param("resource_id"),
		Date:            date,
		DurationMinutes: duration,
		ServiceID:       c.QueryParam("service_id"),
		StepMinutes:     step,
	})
	if err != nil {
		return httpError(log, "slots query", "resource not found", err, slog.String("resource_id", c.Param("resource_id")))
	}
	return c.JSON(http.StatusOK, apiv1.GetAvailableSlotsResponse{Slots: apiv1.FromSlots(slots)})
}

func (h *Handler) NextAvailableSlot(c echo.Context) error {
	log := h.routeLog(c, "NextAvailableSlot")

	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	duration, err := queryInt(c, "duration_minutes")
	if err != nil {
		return err
	}
	horizon, err := queryInt(c, "horizon_days")
	if err != nil {
		return err
	}

	w, err := h.svc.NextAvailable(c.Request().Context(), appointments.NextAvailableInput{
		TenantID:        c.Param("tenant_id"),
		ResourceID:      c.Param("resource_id"),
		From:            from,
		DurationMinutes: duration,
		ServiceID:       c.QueryParam("service_id"),
		HorizonDays:     horizon,
	})
	if err != nil {
		return httpError(log, "next slot query", "resource not found", err, slog.String("resource_id", c.Param("resource_id")))
	}
	return c.JSON(http.StatusOK, apiv1.NextAvailableSlotResponse{Slot: apiv1.FromSlot(w)})
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	log := h.routeLog(c, "CreateAppointment")

	var req apiv1.CreateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StartTime == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time is required")
	}

	appt, err := h.svc.Create(c.Request().Context(), appointments.CreateInput{
		TenantID:       c.Param("tenant_id"),
		ResourceID:     req.ResourceID,
		ServiceID:      req.ServiceID,
		CustomerID:     req.CustomerID,
		StartTime:      *req.StartTime,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")),
	})
	if err != nil {
		return httpError(log, "appointment create", "resource or service not found", err,
			slog.String("resource_id", req.ResourceID), slog.Time("start_time", *req.StartTime))
	}

	log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("resource_id", appt.ResourceID),
		slog.Time("start_time", appt.StartTime),
	)
	return c.JSON(http.StatusCreated, apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	log := h.routeLog(c, "GetAppointment")

	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.Get(c.Request().Context(), c.Param("tenant_id"), id)
	if err != nil {
		return httpError(log, "appointment get", "appointment not found", err, slog.String("appointment_id", id.String()))
	}
	return c.JSON(http.StatusOK, apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	log := h.routeLog(c, "ListAppointments")

	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}

	appts, err := h.svc.List(c.Request().Context(), c.Param("tenant_id"), c.QueryParam("resource_id"), from, to)
	if err != nil {
		return httpError(log, "appointments list", "not found", err)
	}
	return c.JSON(http.StatusOK, apiv1.ListAppointmentsResponse{Appointments: apiv1.FromAppointments(appts)})
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	log := h.routeLog(c, "RescheduleAppointment")

	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var req apiv1.RescheduleAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NewStartTime == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "new_start_time is required")
	}

	appt, err := h.svc.Reschedule(c.Request().Context(), appointments.RescheduleInput{
		TenantID:      c.Param("tenant_id"),
		AppointmentID: id,
		NewStartTime:  *req.NewStartTime,
		NewResourceID: req.NewResourceID,
	})
	if err != nil {
		return httpError(log, "appointment reschedule", "appointment not found", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment rescheduled", slog.String("appointment_id", id.String()), slog.Time("start_time", appt.StartTime))
	return c.JSON(http.StatusOK, apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)})
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	log := h.routeLog(c, "CancelAppointment")

	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var req apiv1.CancelAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	appt, err := h.svc.Cancel(c.Request().Context(), c.Param("tenant_id"), id, req.Reason)
	if err != nil {
		return httpError(log, "appointment cancel", "appointment not found", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", id.String()))
	return c.JSON(http.StatusOK, apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	log := h.routeLog(c, "UpdateStatus")

	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var req apiv1.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("tenant_id"), id, target)
	if err != nil {
		return httpError(log, "status update", "appointment not found", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment status updated", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return c.JSON(http.StatusOK, apiv1.AppointmentResponse{Appointment: apiv1.FromAppointment(appt)})
}
