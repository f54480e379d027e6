package kafka

import (
	"strconv"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	EventBookingCreated = "booking_created"
	EventSlotAdded      = "slot_added"
	EventSlotUpdated    = "slot_updated"
	EventBookingDeleted = "booking_deleted"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

type SlotPayload struct {
	ID        int64     `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type BookingEvent struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	BookingID  int64         `json:"booking_id"`
	UserID     int64         `json:"user_id"`
	Slots      []SlotPayload `json:"slots"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewBookingEvent(eventType string, booking domain.Booking, slots []domain.Slot, at time.Time) BookingEvent {
	payload := make([]SlotPayload, 0, len(slots))
	for _, s := range slots {
		payload = append(payload, SlotPayload{ID: s.ID, StartTime: s.StartTime.UTC(), EndTime: s.EndTime.UTC()})
	}
	return BookingEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		Slots:      payload,
		OccurredAt: at.UTC(),
	}
}

// Key partitions events by booking.
func (e BookingEvent) Key() string {
	return strconv.FormatInt(e.BookingID, 10)
}

// EventMeta is the metadata carried in message headers.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, headerEventID)
	eventType := HeaderValue(msg.Headers, headerEventType)
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
