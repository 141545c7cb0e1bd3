package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared by every service in a test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher keeps published events for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Event
	}
	return names
}

// testEnv wires the booking core against a throwaway sqlite file
type testEnv struct {
	db           *database.SQLDB
	clock        *fakeClock
	events       *recordingPublisher
	rules        BookingRules
	logger       *logrus.Logger
	logs         *test.Hook
	ledger       *SeatLedger
	booking      *BookingService
	lifecycle    *OrderLifecycleService
	materializer *SeatMaterializer
	cleanup      *CleanupService
}

// testStart is 2025-12-01 08:00 UTC
var testStart = time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	raw, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "rail.db"))
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { raw.Close() })

	db := &database.SQLDB{DB: raw}
	require.NoError(t, database.Migrate(context.Background(), db))

	logger, logs := test.NewNullLogger()
	clock := newFakeClock(testStart)
	events := &recordingPublisher{}

	rules := DefaultBookingRules()
	rules.Location = time.UTC
	rules.RetryBackoff = time.Millisecond

	opts := []Option{WithClock(clock.Now), WithEventPublisher(events)}

	ledger := NewSeatLedger(db, NewSegmentResolver())
	lifecycle := NewOrderLifecycleService(db, ledger, rules, logger, opts...)

	return &testEnv{
		db:           db,
		clock:        clock,
		events:       events,
		rules:        rules,
		logger:       logger,
		logs:         logs,
		ledger:       ledger,
		booking:      NewBookingService(db, ledger, rules, logger, opts...),
		lifecycle:    lifecycle,
		materializer: NewSeatMaterializer(db, time.UTC, logger, opts...),
		cleanup:      NewCleanupService(db, lifecycle, DefaultCleanupSchedule(), time.UTC, logger, opts...),
	}
}

// seedTrain creates a run of trainNo with the given second-class seat count
func (e *testEnv) seedTrain(t *testing.T, trainNo, date string, stations []string, secondClass int) {
	t.Helper()
	_, err := e.materializer.SeedTrain(context.Background(), &models.Train{
		TrainNo:       trainNo,
		DepartureDate: date,
		TrainType:     "G",
		DepartureTime: "08:00",
		ArrivalTime:   "13:00",
	}, stations, SeatLayout{models.SeatTypeSecondClass: secondClass})
	require.NoError(t, err)
}

// newPassengers registers n passenger profiles for a fresh user
func (e *testEnv) newPassengers(t *testing.T, n int) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	repo := database.NewPassengerRepository(e.db)
	ids := make([]uuid.UUID, n)
	for i := range ids {
		p := &models.Passenger{
			ID:           uuid.New(),
			UserID:       userID,
			Name:         "乘客" + string(rune('A'+i)),
			IDCardType:   "二代身份证",
			IDCardNumber: "11010119900101000" + string(rune('0'+i)),
		}
		require.NoError(t, repo.Create(context.Background(), p))
		ids[i] = p.ID
	}
	return userID, ids
}

func bookingRequest(trainNo, date, from, to string, passengers ...uuid.UUID) *models.CreateBookingRequest {
	req := &models.CreateBookingRequest{
		TrainNo:          trainNo,
		DepartureDate:    date,
		DepartureStation: from,
		ArrivalStation:   to,
		SeatType:         models.SeatTypeSecondClass,
	}
	for _, id := range passengers {
		req.Passengers = append(req.Passengers, models.BookingPassenger{PassengerID: id})
	}
	return req
}

func (e *testEnv) available(t *testing.T, trainNo, date, from, to string) int {
	t.Helper()
	n, err := e.ledger.QueryAvailability(context.Background(), trainNo, date, models.SeatTypeSecondClass, from, to)
	require.NoError(t, err)
	return n
}

func (e *testEnv) orderStatus(t *testing.T, id uuid.UUID) models.OrderStatus {
	t.Helper()
	order, err := database.NewOrderRepository(e.db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order.Status
}
