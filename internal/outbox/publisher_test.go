package outbox

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"slotkeeper/backend/internal/kafkax"
)

func TestMessageCarriesMetaAndTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceparent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	rec := Record{
		ID:          7,
		EventID:     "8a6e0804-2bd0-4672-b79d-d97027f9071a",
		AggregateID: "0190f0e4-7c1d-7000-8000-000000000001",
		EventType:   "scheduling.appointment.created.v1",
		Payload:     []byte(`{"status":"pending"}`),
		Traceparent: traceparent,
	}

	msg := Message(context.Background(), rec)

	if msg.Topic != rec.EventType {
		t.Fatalf("topic = %q", msg.Topic)
	}
	if string(msg.Key) != rec.AggregateID {
		t.Fatalf("key = %q", msg.Key)
	}
	if got := kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID); got != rec.EventID {
		t.Fatalf("event_id header = %q, want %q", got, rec.EventID)
	}
	if got := kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType); got != rec.EventType {
		t.Fatalf("event_type header = %q, want %q", got, rec.EventType)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != traceparent {
		t.Fatalf("traceparent header = %q, want %q", got, traceparent)
	}
}

func TestMessageWithoutTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	msg := Message(context.Background(), Record{EventID: "e1", AggregateID: "a1", EventType: "t"})
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != "" {
		t.Fatalf("unexpected traceparent %q", got)
	}
	if len(msg.Headers) != 2 {
		t.Fatalf("headers = %v", msg.Headers)
	}
}
