package services

import (
	"context"

	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// FareQuoter prices one passenger line. Fare rules live outside the booking
// core; the quoted price is snapshotted into the order detail.
type FareQuoter interface {
	Quote(ctx context.Context, trainNo string, seg Segment, seatType models.SeatType, ticketType string) (float64, error)
}

// NoFareQuoter prices every line at zero
type NoFareQuoter struct{}

// Quote implements FareQuoter
func (NoFareQuoter) Quote(context.Context, string, Segment, models.SeatType, string) (float64, error) {
	return 0, nil
}
