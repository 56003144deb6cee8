package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types double as Kafka topic names.
const (
	EventAppointmentCreated       = "scheduling.appointment.created.v1"
	EventAppointmentStatusChanged = "scheduling.appointment.status_changed.v1"
	EventAppointmentRescheduled   = "scheduling.appointment.rescheduled.v1"
	EventReminderDue              = "scheduling.reminder.due.v1"
)

// Event is a domain event recorded in the same transaction as the ledger change.
type Event struct {
	Type          string
	AppointmentID uuid.UUID
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	TenantID        string `json:"tenant_id"`
	ResourceID      string `json:"resource_id"`
	CustomerID      string `json:"customer_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	ServiceDuration int    `json:"service_duration_minutes"`
}

func payloadOf(a Appointment) appointmentPayload {
	return appointmentPayload{
		AppointmentID:   a.ID.String(),
		TenantID:        a.TenantID,
		ResourceID:      a.ResourceID,
		CustomerID:      a.CustomerID,
		ServiceID:       a.ServiceID,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime.UTC().Format(time.RFC3339),
		Status:          string(a.Status),
		ServiceDuration: a.ServiceDuration,
	}
}

func AppointmentCreated(a Appointment) (Event, error) {
	return newEvent(EventAppointmentCreated, a.ID, struct {
		appointmentPayload
		PriceCents int64  `json:"price_cents"`
		Currency   string `json:"currency"`
	}{payloadOf(a), a.PriceCents, a.Currency})
}

func AppointmentStatusChanged(a Appointment, from Status) (Event, error) {
	return newEvent(EventAppointmentStatusChanged, a.ID, struct {
		appointmentPayload
		PreviousStatus string `json:"previous_status"`
		CancelReason   string `json:"cancel_reason,omitempty"`
	}{payloadOf(a), string(from), a.CancelReason})
}

func AppointmentRescheduled(a Appointment, previous TimeWindow, previousResource string) (Event, error) {
	return newEvent(EventAppointmentRescheduled, a.ID, struct {
		appointmentPayload
		PreviousResourceID string `json:"previous_resource_id"`
		PreviousStartTime  string `json:"previous_start_time"`
		PreviousEndTime    string `json:"previous_end_time"`
	}{payloadOf(a), previousResource, previous.Start.UTC().Format(time.RFC3339), previous.End.UTC().Format(time.RFC3339)})
}

func ReminderDue(a Appointment, dueAt time.Time) (Event, error) {
	return newEvent(EventReminderDue, a.ID, struct {
		appointmentPayload
		DueAt string `json:"due_at"`
	}{payloadOf(a), dueAt.UTC().Format(time.RFC3339)})
}

func newEvent(eventType string, id uuid.UUID, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, AppointmentID: id, Payload: b}, nil
}
