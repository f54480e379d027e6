package email

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/slotbooking/internal/kafka"
)

// Sender turns booking events into user notifications. Delivery is a log line for now.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	s.logger.InfoContext(ctx, "notify user",
		"event_id", event.ID,
		"type", event.Type,
		"user_id", event.UserID,
		"booking_id", event.BookingID,
		"slots", len(event.Slots),
	)
	return nil
}
