package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/Domenick1991/slotbooking/internal/service/booking"
	"github.com/Domenick1991/slotbooking/internal/validation"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	Slots json.RawMessage `json:"slots"`
}

type slotResponse struct {
	ID        int64  `json:"id"`
	BookingID int64  `json:"booking_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type bookingResponse struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Slots     []slotResponse `json:"slots"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type bookingEnvelope struct {
	Booking bookingResponse `json:"booking"`
}

type bookingsEnvelope struct {
	Bookings []bookingResponse `json:"bookings"`
}

type slotEnvelope struct {
	Slot slotResponse `json:"slot"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.DELETE("/:booking", h.destroy)
	router.POST("/:booking/slots", h.addSlot)
	router.PATCH("/:booking/slots/:slot", h.updateSlot)
}

func (h *BookingHandler) list(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
		return
	}

	bookings, err := h.service.GetUserBookings(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, msgListFailed)
		return
	}

	resp := bookingsEnvelope{Bookings: make([]bookingResponse, 0, len(bookings))}
	for _, b := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
		return
	}

	var req createBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	slots, err := validation.DecodeSlots(req.Slots)
	if err != nil {
		respondError(c, err, msgCreateFailed)
		return
	}

	created, err := h.service.CreateBookingWithSlots(c.Request.Context(), user, slots)
	if err != nil {
		respondError(c, err, msgCreateFailed)
		return
	}

	c.JSON(http.StatusCreated, bookingEnvelope{Booking: toBookingResponse(*created)})
}

func (h *BookingHandler) addSlot(c *gin.Context) {
	owned, ok := h.ownedBooking(c)
	if !ok {
		return
	}

	var req validation.RawSlot
	if !bindJSON(c, &req) {
		return
	}

	added, err := h.service.AddSlotToBooking(c.Request.Context(), *owned, req)
	if err != nil {
		respondError(c, err, msgAddFailed)
		return
	}

	c.JSON(http.StatusCreated, slotEnvelope{Slot: toSlotResponse(*added)})
}

func (h *BookingHandler) updateSlot(c *gin.Context) {
	owned, ok := h.ownedBooking(c)
	if !ok {
		return
	}
	slotID, ok := pathID(c, "slot")
	if !ok {
		return
	}

	slot, err := h.service.GetBookingSlot(c.Request.Context(), owned.ID, slotID)
	if err != nil {
		respondError(c, err, msgUpdateFailed)
		return
	}

	var req validation.RawSlot
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdateBookingSlot(c.Request.Context(), *slot, req)
	if err != nil {
		respondError(c, err, msgUpdateFailed)
		return
	}

	c.JSON(http.StatusOK, slotEnvelope{Slot: toSlotResponse(*updated)})
}

func (h *BookingHandler) destroy(c *gin.Context) {
	owned, ok := h.ownedBooking(c)
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(c.Request.Context(), *owned); err != nil {
		respondError(c, err, msgDeleteFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ownedBooking loads the :booking path parameter. Bookings of other users are
// reported as missing.
func (h *BookingHandler) ownedBooking(c *gin.Context) (*domain.Booking, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
		return nil, false
	}
	id, ok := pathID(c, "booking")
	if !ok {
		return nil, false
	}

	found, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, msgLoadFailed)
		return nil, false
	}
	if found.UserID != user.ID {
		notFound(c)
		return nil, false
	}
	return found, true
}

// bindJSON rejects bodies that are not valid JSON. A body of the wrong shape decodes
// to empty or flagged fields and is reported by validation instead.
func bindJSON(c *gin.Context, dst any) bool {
	data, err := c.GetRawData()
	if err != nil || !json.Valid(data) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return false
	}
	_ = json.Unmarshal(data, dst)
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		notFound(c)
		return 0, false
	}
	return id, true
}

func toBookingResponse(b domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Slots:     make([]slotResponse, 0, len(b.Slots)),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
	for _, s := range b.Slots {
		resp.Slots = append(resp.Slots, toSlotResponse(s))
	}
	return resp
}

func toSlotResponse(s domain.Slot) slotResponse {
	return slotResponse{
		ID:        s.ID,
		BookingID: s.BookingID,
		StartTime: formatTime(s.StartTime),
		EndTime:   formatTime(s.EndTime),
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
