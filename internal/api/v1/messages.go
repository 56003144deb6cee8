// Package apiv1 holds the JSON wire shapes shared by the gRPC and REST transports.
package apiv1

import (
	"time"

	"slotkeeper/backend/internal/domain"
)

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Appointment struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	ResourceID             string     `json:"resource_id"`
	CustomerID             string     `json:"customer_id"`
	ServiceID              string     `json:"service_id"`
	StartTime              time.Time  `json:"start_time"`
	EndTime                time.Time  `json:"end_time"`
	Status                 string     `json:"status"`
	ServiceDurationMinutes int        `json:"service_duration_minutes"`
	PriceCents             int64      `json:"price_cents"`
	Currency               string     `json:"currency"`
	CancelReason           string     `json:"cancel_reason,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

type GetAvailableSlotsRequest struct {
	TenantID   string `json:"tenant_id"`
	ResourceID string `json:"resource_id"`
	// Date is the resource-local calendar date, YYYY-MM-DD.
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ServiceID       string `json:"service_id,omitempty"`
	StepMinutes     int    `json:"step_minutes,omitempty"`
}

type GetAvailableSlotsResponse struct {
	Slots []Slot `json:"slots"`
}

type NextAvailableSlotRequest struct {
	TenantID        string     `json:"tenant_id"`
	ResourceID      string     `json:"resource_id"`
	From            *time.Time `json:"from,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	ServiceID       string     `json:"service_id,omitempty"`
	HorizonDays     int        `json:"horizon_days,omitempty"`
}

type NextAvailableSlotResponse struct {
	Slot Slot `json:"slot"`
}

type CreateAppointmentRequest struct {
	TenantID   string     `json:"tenant_id"`
	ResourceID string     `json:"resource_id"`
	ServiceID  string     `json:"service_id"`
	CustomerID string     `json:"customer_id"`
	StartTime  *time.Time `json:"start_time"`
}

type RescheduleAppointmentRequest struct {
	TenantID      string     `json:"tenant_id"`
	AppointmentID string     `json:"appointment_id"`
	NewStartTime  *time.Time `json:"new_start_time"`
	NewResourceID string     `json:"new_resource_id,omitempty"`
}

type CancelAppointmentRequest struct {
	TenantID      string `json:"tenant_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

type UpdateStatusRequest struct {
	TenantID      string `json:"tenant_id"`
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type GetAppointmentRequest struct {
	TenantID      string `json:"tenant_id"`
	AppointmentID string `json:"appointment_id"`
}

type ListAppointmentsRequest struct {
	TenantID    string     `json:"tenant_id"`
	ResourceID  string     `json:"resource_id,omitempty"`
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func FromSlot(w domain.TimeWindow) Slot {
	return Slot{Start: w.Start.UTC(), End: w.End.UTC()}
}

func FromSlots(ws []domain.TimeWindow) []Slot {
	out := make([]Slot, 0, len(ws))
	for _, w := range ws {
		out = append(out, FromSlot(w))
	}
	return out
}

func FromAppointment(a domain.Appointment) Appointment {
	out := Appointment{
		ID:                     a.ID.String(),
		TenantID:               a.TenantID,
		ResourceID:             a.ResourceID,
		CustomerID:             a.CustomerID,
		ServiceID:              a.ServiceID,
		StartTime:              a.StartTime.UTC(),
		EndTime:                a.EndTime.UTC(),
		Status:                 string(a.Status),
		ServiceDurationMinutes: a.ServiceDuration,
		PriceCents:             a.PriceCents,
		Currency:               a.Currency,
		CancelReason:           a.CancelReason,
		CreatedAt:              a.CreatedAt.UTC(),
		UpdatedAt:              a.UpdatedAt.UTC(),
	}
	if a.CancelledAt != nil {
		t := a.CancelledAt.UTC()
		out.CancelledAt = &t
	}
	return out
}

func FromAppointments(appts []domain.Appointment) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, FromAppointment(a))
	}
	return out
}
