package api

import (
	"io"
	"log/slog"

	"github.com/Domenick1991/slotbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Bookings booking.BookingUseCase
	Users    UserLookup
	Checks   map[string]Check
	Logger   *slog.Logger
}

// NewRouter wires the health endpoints and the authenticated /bookings group.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := gin.New()
	engine.Use(requestID(), accessLog(logger), recovery(logger))
	engine.NoRoute(notFound)

	NewHealthHandler(deps.Checks, logger).Register(engine)

	bookings := engine.Group("/bookings", Authenticate(deps.Users, logger))
	NewBookingHandler(deps.Bookings).Register(bookings)

	return engine
}
