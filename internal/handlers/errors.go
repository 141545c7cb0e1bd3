package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

var errorStatus = map[models.ErrorCode]int{
	models.CodeValidation:             http.StatusBadRequest,
	models.CodeInvalidSegment:         http.StatusBadRequest,
	models.CodeTrainNotFound:          http.StatusNotFound,
	models.CodeOrderNotFound:          http.StatusNotFound,
	models.CodeInsufficientSeats:      http.StatusConflict,
	models.CodeConflict:               http.StatusConflict,
	models.CodeInvalidStateTransition: http.StatusConflict,
	models.CodeOrderExpired:           http.StatusConflict,
	models.CodeQuotaExceeded:          http.StatusTooManyRequests,
}

// respondError writes a booking error in the client's language.
// Anything that is not a BookingError is logged and reported as a 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	be, ok := models.AsBookingError(err)
	if !ok {
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"code":    "INTERNAL_ERROR",
			"message": "Internal server error",
		})
		return
	}

	status, ok := errorStatus[be.Code]
	if !ok {
		status = http.StatusBadRequest
	}

	lang := models.MatchLanguage(c.GetHeader("Accept-Language"))
	body := gin.H{
		"error":   strings.ToLower(string(be.Code)),
		"code":    be.Code,
		"message": models.LocalizedMessage(be.Code, lang),
		"details": be.Message,
	}
	if be.Retryable() {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

// respondBindError reports a malformed request body
func respondBindError(c *gin.Context, logger *logrus.Logger, err error) {
	respondError(c, logger, models.ErrValidation.WithMessage("%s", err.Error()))
}
