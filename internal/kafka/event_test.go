package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewBookingEvent(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, moscow)

	booking := domain.Booking{ID: 12, UserID: 3}
	slots := []domain.Slot{{ID: 5, BookingID: 12, StartTime: start, EndTime: start.Add(time.Hour)}}

	e := NewBookingEvent(EventBookingCreated, booking, slots, start)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventBookingCreated, e.Type)
	assert.Equal(t, int64(12), e.BookingID)
	assert.Equal(t, int64(3), e.UserID)
	assert.Equal(t, "12", e.Key())
	require.Len(t, e.Slots, 1)
	assert.Equal(t, time.UTC, e.Slots[0].StartTime.Location())
	assert.True(t, e.Slots[0].EndTime.Equal(start.Add(time.Hour)))
}

func TestExtractEventMeta(t *testing.T) {
	msg := kafka.Message{
		Topic:   "booking-events",
		Key:     []byte("12"),
		Headers: []kafka.Header{{Key: headerEventID, Value: []byte("abc")}, {Key: headerEventType, Value: []byte(EventSlotAdded)}},
	}
	assert.Equal(t, EventMeta{EventID: "abc", EventType: EventSlotAdded}, ExtractEventMeta(msg))

	bare := kafka.Message{Topic: "booking-events", Key: []byte("12")}
	assert.Equal(t, EventMeta{EventID: "12", EventType: "booking-events"}, ExtractEventMeta(bare))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := &headerCarrier{}
	prop.Inject(ctx, carrier)
	require.NotEmpty(t, carrier.headers)
	assert.Contains(t, carrier.Keys(), "traceparent")

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
	assert.Equal(t, traceID, extracted.TraceID())

	carrier.Set("traceparent", "replaced")
	assert.Equal(t, "replaced", carrier.Get("traceparent"))
	assert.Len(t, carrier.headers, 1)
}
