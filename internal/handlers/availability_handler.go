package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// AvailabilityReader answers seat availability questions
type AvailabilityReader interface {
	QueryAvailability(ctx context.Context, trainNo, date string, seatType models.SeatType, from, to string) (int, error)
	Summary(ctx context.Context, trainNo, date, from, to string) ([]models.SeatTypeAvailability, error)
}

// AvailabilityHandler serves segment availability
type AvailabilityHandler struct {
	ledger AvailabilityReader
	logger *logrus.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(ledger AvailabilityReader, logger *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{ledger: ledger, logger: logger}
}

type availabilityQuery struct {
	TrainNo  string `form:"train_no" binding:"required"`
	Date     string `form:"date" binding:"required"`
	From     string `form:"from" binding:"required"`
	To       string `form:"to" binding:"required"`
	SeatType string `form:"seat_type"`
}

// GetAvailability handles GET /api/v1/availability.
// With seat_type it returns the free-seat count for that type, otherwise a
// per-type summary.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	if q.SeatType == "" {
		summary, err := h.ledger.Summary(c.Request.Context(), q.TrainNo, q.Date, q.From, q.To)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"train_no":   q.TrainNo,
			"date":       q.Date,
			"from":       q.From,
			"to":         q.To,
			"seat_types": summary,
		})
		return
	}

	seatType := models.SeatType(q.SeatType)
	if !seatType.IsValid() {
		respondError(c, h.logger, models.ErrValidation.WithMessage("unknown seat type %q", q.SeatType))
		return
	}

	count, err := h.ledger.QueryAvailability(c.Request.Context(), q.TrainNo, q.Date, seatType, q.From, q.To)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"train_no":  q.TrainNo,
		"date":      q.Date,
		"from":      q.From,
		"to":        q.To,
		"seat_type": seatType,
		"count":     count,
	})
}
