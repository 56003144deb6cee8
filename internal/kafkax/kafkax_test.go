package kafkax

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092,")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitBrokers = %v, want %v", got, want)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestHeaderValueReturnsFirstMatch(t *testing.T) {
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte("scheduling.reminder.due.v1")},
		{Key: HeaderEventID, Value: []byte("e1")},
		{Key: HeaderEventID, Value: []byte("e2")},
	}
	if got := HeaderValue(headers, HeaderEventID); got != "e1" {
		t.Fatalf("HeaderValue = %q, want e1", got)
	}
	if got := HeaderValue(headers, "missing"); got != "" {
		t.Fatalf("HeaderValue(missing) = %q", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, []kafka.Header{{Key: "event_id", Value: []byte("e1")}})
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent not injected: %v", headers)
	}

	extracted := otel.GetTextMapPropagator().Extract(context.Background(), &headerCarrier{headers: headers})
	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != traceID {
		t.Fatalf("trace id = %s, want %s", got.TraceID(), traceID)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck(nil)(context.Background()); err == nil {
		t.Fatalf("expected error when no brokers configured")
	}
}

func TestReadyCheckReportsEveryUnreachableBroker(t *testing.T) {
	brokers := []string{unusedAddr(t), unusedAddr(t)}

	err := ReadyCheck(brokers)(context.Background())
	if err == nil {
		t.Fatalf("expected error for unreachable brokers")
	}
	for _, b := range brokers {
		if !strings.Contains(err.Error(), b) {
			t.Fatalf("error %q does not mention %s", err, b)
		}
	}
}

func TestReadyCheckStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ReadyCheck([]string{unusedAddr(t)})(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
}

// unusedAddr returns a loopback address nothing is listening on.
func unusedAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}
