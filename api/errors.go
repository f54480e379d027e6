package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/slotbooking/internal/service/booking"
	"github.com/Domenick1991/slotbooking/internal/validation"
	"github.com/gin-gonic/gin"
)

const (
	msgUnauthenticated  = "authentication required"
	msgNotFound         = "resource not found"
	msgValidationFailed = "validation failed"
	msgInvalidBody      = "invalid request body"

	msgListFailed   = "failed to load bookings"
	msgLoadFailed   = "failed to load booking"
	msgCreateFailed = "failed to create booking"
	msgAddFailed    = "failed to add slot"
	msgUpdateFailed = "failed to update slot"
	msgDeleteFailed = "failed to delete booking"
)

type validationErrorResponse struct {
	Error    string              `json:"error"`
	Messages map[string][]string `json:"messages"`
}

// respondError writes err using the generic message for anything that is neither
// a validation failure nor a missing resource. The service has already logged the cause.
func respondError(c *gin.Context, err error, generic string) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{
			Error:    msgValidationFailed,
			Messages: vErr.Report.Messages(),
		})
	case errors.Is(err, booking.ErrNotFound):
		notFound(c)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msgNotFound})
}
