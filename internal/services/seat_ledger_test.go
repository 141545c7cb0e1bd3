package services

import (
	"context"
	"testing"

	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatLedger_ReleaseSegment(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrain(t, "G1", testDate, fiveStops, 1)
	ctx := context.Background()
	repo := database.NewSeatLedgerRepository(env.db)

	seg, err := env.ledger.Resolve(ctx, nil, "G1", "A", "C")
	require.NoError(t, err)
	seats, err := env.ledger.AvailableSeats(ctx, nil, "G1", testDate, models.SeatTypeSecondClass, seg)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	seat := seats[0]

	require.NoError(t, env.ledger.MarkSegmentBooked(ctx, nil, "G1", testDate, seat, seg, "order-1", testStart))
	assert.Zero(t, env.available(t, "G1", testDate, "A", "B"))
	assert.Zero(t, env.available(t, "G1", testDate, "B", "C"))
	assert.Equal(t, 1, env.available(t, "G1", testDate, "C", "E"))

	records, err := repo.ListSegments(ctx, "G1", testDate, models.SeatTypeSecondClass)
	require.NoError(t, err)
	booked := 0
	for _, rec := range records {
		if rec.Status == models.SeatStatusBooked {
			booked++
			require.NotNil(t, rec.BookedBy)
			assert.Equal(t, "order-1", *rec.BookedBy)
		}
	}
	assert.Equal(t, 2, booked)

	// releasing twice is not an error
	for i := 0; i < 2; i++ {
		require.NoError(t, env.ledger.ReleaseSegment(ctx, nil, "G1", testDate, seat, seg))
	}

	assert.Equal(t, 1, env.available(t, "G1", testDate, "A", "E"))

	records, err = repo.ListSegments(ctx, "G1", testDate, models.SeatTypeSecondClass)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, models.SeatStatusAvailable, rec.Status)
		assert.Nil(t, rec.BookedBy, "%s->%s", rec.FromStation, rec.ToStation)
		assert.Nil(t, rec.BookedAt, "%s->%s", rec.FromStation, rec.ToStation)
	}
}
