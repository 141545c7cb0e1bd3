package services

import (
	"context"
	"testing"

	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSeatRecords(t *testing.T) {
	train := &models.Train{TrainNo: "G7", DepartureDate: testDate}
	layout := SeatLayout{
		models.SeatTypeSecondClass: 25,
		models.SeatTypeBusiness:    5,
	}

	records := buildSeatRecords(train, []string{"A", "B", "C"}, layout)
	require.Len(t, records, 30*2)

	// business class comes first and fills car 1
	assert.Equal(t, models.SeatTypeBusiness, records[0].SeatType)
	assert.Equal(t, 1, records[0].CarNo)
	assert.Equal(t, "01", records[0].SeatNo)
	assert.Equal(t, "A", records[0].FromStation)
	assert.Equal(t, "B", records[0].ToStation)
	assert.Equal(t, "B", records[1].FromStation)
	assert.Equal(t, "C", records[1].ToStation)

	cars := map[int]int{}
	for _, rec := range records {
		if rec.FromStation == "A" {
			cars[rec.CarNo]++
		}
		assert.Equal(t, models.SeatStatusAvailable, rec.Status)
	}
	assert.Equal(t, map[int]int{1: 5, 2: SeatsPerCar, 3: 5}, cars)

	last := records[len(records)-1]
	assert.Equal(t, 3, last.CarNo)
	assert.Equal(t, "05", last.SeatNo)
	assert.Equal(t, models.SeatTypeSecondClass, last.SeatType)
}

func TestSeedTrain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	n, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G1", DepartureDate: testDate}, fiveStops, nil)
	require.NoError(t, err)

	total := 0
	for _, count := range DefaultSeatLayout() {
		total += count
	}
	assert.Equal(t, int64(total*(len(fiveStops)-1)), n)

	train, err := database.NewTrainRepository(env.db).GetTrain(ctx, "G1", testDate)
	require.NoError(t, err)
	require.NotNil(t, train)
	assert.Equal(t, "A", train.Origin)
	assert.Equal(t, "E", train.Destination)

	summary, err := env.ledger.Summary(ctx, "G1", testDate, "A", "E")
	require.NoError(t, err)
	require.Len(t, summary, len(models.AllSeatTypes))
	for _, s := range summary {
		assert.Equal(t, s.Total, s.Available, "seat type %s", s.SeatType)
		assert.Equal(t, DefaultSeatLayout()[s.SeatType], s.Total)
	}

	t.Run("same date twice", func(t *testing.T) {
		_, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G1", DepartureDate: testDate}, fiveStops, nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("different stops", func(t *testing.T) {
		_, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G1", DepartureDate: "2025-12-05"}, []string{"A", "C", "E"}, nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("single station", func(t *testing.T) {
		_, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G2", DepartureDate: testDate}, []string{"A"}, nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("bad layout", func(t *testing.T) {
		_, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G2", DepartureDate: testDate}, fiveStops, SeatLayout{"站票": 10})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := env.materializer.SeedTrain(ctx, &models.Train{TrainNo: "G2", DepartureDate: "tomorrow"}, fiveStops, nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestMaterializeDate(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrain(t, "G1", testDate, fiveStops, 3)
	userID, passengers := env.newPassengers(t, 1)
	ctx := context.Background()

	// bookings on the template never leak into a new date
	bookOne(t, env, userID, passengers[0], "A", "E")

	copied, err := env.materializer.MaterializeDate(ctx, "G1", testDate, "2025-12-10")
	require.NoError(t, err)
	assert.Equal(t, int64(3*4), copied)
	assert.Equal(t, 3, env.available(t, "G1", "2025-12-10", "A", "E"))
	assert.Equal(t, 2, env.available(t, "G1", testDate, "A", "E"))

	train, err := database.NewTrainRepository(env.db).GetTrain(ctx, "G1", "2025-12-10")
	require.NoError(t, err)
	require.NotNil(t, train)

	again, err := env.materializer.MaterializeDate(ctx, "G1", testDate, "2025-12-10")
	require.NoError(t, err)
	assert.Zero(t, again)

	_, err = env.materializer.MaterializeDate(ctx, "G1", "2025-11-01", "2025-12-11")
	assert.ErrorIs(t, err, models.ErrTrainNotFound)

	_, err = env.materializer.MaterializeDate(ctx, "G1", testDate, "12/11")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestMaterializeAhead(t *testing.T) {
	env := newTestEnv(t)
	env.seedTrain(t, "G1", testDate, fiveStops, 2)
	env.seedTrain(t, "D5", testDate, []string{"X", "Y"}, 1)
	ctx := context.Background()

	total, err := env.materializer.MaterializeAhead(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2*4+1*1), total)

	assert.Equal(t, 2, env.available(t, "G1", "2025-12-04", "A", "E"))

	again, err := env.materializer.MaterializeAhead(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, again)
}
