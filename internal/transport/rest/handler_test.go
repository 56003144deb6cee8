package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	apiv1 "slotkeeper/backend/internal/api/v1"
	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/service/appointments"
	"slotkeeper/backend/internal/store/memory"
)

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func newTestHandler() (*Handler, *echo.Echo) {
	weekly := make([]domain.WorkingDay, 0, 7)
	for wd := int16(1); wd <= 7; wd++ {
		weekly = append(weekly, domain.WorkingDay{ResourceID: "r1", Weekday: wd, Open: wd <= 5, StartMinute: 9 * 60, EndMinute: 12 * 60})
	}
	svc := appointments.NewService(
		memory.NewLedger(memory.WithClock(func() time.Time { return monday })),
		memory.NewCalendar(domain.Resource{ID: "r1", TenantID: "t1", Timezone: "UTC", Weekly: weekly}),
		memory.NewCatalog(domain.Service{ID: "cut", TenantID: "t1", DurationMinutes: 30, PriceCents: 2500, Currency: "EUR"}),
		appointments.WithClock(func() time.Time { return monday }),
	)
	h := NewHandler(svc, slog.Default())
	e := NewEcho(h, slog.Default(), ServerConfig{})
	return h, e
}

func do(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const createBody = `{"resource_id":"r1","service_id":"cut","customer_id":"c1","start_time":"2026-01-05T10:00:00Z"}`

func TestHandler_GetAvailableSlots(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?date=2026-01-05&duration_minutes=45", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tenant_id", "resource_id")
	c.SetParamValues("t1", "r1")

	if err := h.GetAvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[apiv1.GetAvailableSlotsResponse](t, rec)
	if len(resp.Slots) != 5 {
		t.Fatalf("len(slots) = %d, want 5", len(resp.Slots))
	}
}

func TestHandler_GetAvailableSlots_BadDate(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?date=tomorrow", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("tenant_id", "resource_id")
	c.SetParamValues("t1", "r1")

	err := h.GetAvailableSlots(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestHandler_CreateThenConflict(t *testing.T) {
	_, e := newTestHandler()

	rec := do(e, http.MethodPost, "/v1/tenants/t1/appointments", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[apiv1.AppointmentResponse](t, rec)
	if created.Appointment.Status != "pending" || created.Appointment.TenantID != "t1" {
		t.Fatalf("appointment = %+v", created.Appointment)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected %s response header", RequestIDHeader)
	}

	rec = do(e, http.MethodPost, "/v1/tenants/t1/appointments",
		`{"resource_id":"r1","service_id":"cut","customer_id":"c2","start_time":"2026-01-05T10:15:00Z"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decode[apiv1.ErrorResponse](t, rec)
	if body.Message != "This time is no longer available. Please choose another." {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestHandler_CreateIsIdempotent(t *testing.T) {
	_, e := newTestHandler()

	first := do(e, http.MethodPost, "/v1/tenants/t1/appointments", createBody, "Idempotency-Key", "k1")
	second := do(e, http.MethodPost, "/v1/tenants/t1/appointments", createBody, "Idempotency-Key", "k1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	a := decode[apiv1.AppointmentResponse](t, first)
	b := decode[apiv1.AppointmentResponse](t, second)
	if a.Appointment.ID != b.Appointment.ID {
		t.Fatalf("ids differ: %s vs %s", a.Appointment.ID, b.Appointment.ID)
	}
}

func TestHandler_LifecycleRoutes(t *testing.T) {
	_, e := newTestHandler()

	created := decode[apiv1.AppointmentResponse](t, do(e, http.MethodPost, "/v1/tenants/t1/appointments", createBody))
	base := "/v1/tenants/t1/appointments/" + created.Appointment.ID

	rec := do(e, http.MethodPost, base+"/reschedule", `{"new_start_time":"2026-01-05T11:00:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, base+"/status", `{"status":"in_progress"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("pending -> in_progress: expected 409, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, base+"/status", `{"status":"confirmed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, base+"/cancel", `{"reason":"sick"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	rec = do(e, http.MethodPost, base+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", rec.Code)
	}

	got := decode[apiv1.AppointmentResponse](t, do(e, http.MethodGet, base, ""))
	if got.Appointment.Status != "cancelled" || got.Appointment.CancelReason != "sick" {
		t.Fatalf("appointment = %+v", got.Appointment)
	}
	if !got.Appointment.StartTime.Equal(time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", got.Appointment.StartTime)
	}

	list := decode[apiv1.ListAppointmentsResponse](t, do(e, http.MethodGet,
		"/v1/tenants/t1/appointments?from=2026-01-05T00:00:00Z&to=2026-01-06T00:00:00Z", ""))
	if len(list.Appointments) != 1 {
		t.Fatalf("len(appointments) = %d, want 1", len(list.Appointments))
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	_, e := newTestHandler()

	rec := do(e, http.MethodGet, "/v1/tenants/t1/appointments/00000000-0000-0000-0000-000000000020", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decode[apiv1.ErrorResponse](t, rec); body.Error != "not_found" {
		t.Fatalf("error = %q", body.Error)
	}
}

func TestHandler_NextSlot(t *testing.T) {
	_, e := newTestHandler()

	rec := do(e, http.MethodGet, "/v1/tenants/t1/resources/r1/next-slot?duration_minutes=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[apiv1.NextAvailableSlotResponse](t, rec)
	if !resp.Slot.Start.Equal(monday.Add(9 * time.Hour)) {
		t.Fatalf("slot start = %v", resp.Slot.Start)
	}

	rec = do(e, http.MethodGet, "/v1/tenants/t1/resources/r1/next-slot?duration_minutes=240", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("oversized duration: expected 404, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	h, _ := newTestHandler()
	e := NewEcho(h, slog.Default(), ServerConfig{},
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := do(e, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "redis: down") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
}
