package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// SeatLedger is the single choke point for reading and mutating seat occupancy.
// Mutating calls take the caller's transaction so check and act share it.
type SeatLedger struct {
	db       database.DB
	seats    *database.SeatLedgerRepository
	trains   *database.TrainRepository
	resolver *SegmentResolver
}

// NewSeatLedger creates a new SeatLedger
func NewSeatLedger(db database.DB, resolver *SegmentResolver) *SeatLedger {
	return &SeatLedger{
		db:       db,
		seats:    database.NewSeatLedgerRepository(db),
		trains:   database.NewTrainRepository(db),
		resolver: resolver,
	}
}

func (l *SeatLedger) seatRepo(tx *sqlx.Tx) *database.SeatLedgerRepository {
	if tx == nil {
		return l.seats
	}
	return l.seats.WithTx(tx)
}

func (l *SeatLedger) trainRepo(tx *sqlx.Tx) *database.TrainRepository {
	if tx == nil {
		return l.trains
	}
	return l.trains.WithTx(tx)
}

// Resolve loads the train's stops and validates the requested segment
func (l *SeatLedger) Resolve(ctx context.Context, tx *sqlx.Tx, trainNo, from, to string) (Segment, error) {
	stops, err := l.trainRepo(tx).GetStops(ctx, trainNo)
	if err != nil {
		return Segment{}, err
	}
	if len(stops) == 0 {
		return Segment{}, models.ErrInvalidSegment.WithMessage("train %s has no published stops", trainNo)
	}
	return l.resolver.ResolveSegment(stops, from, to)
}

// QueryAvailability counts seats of a type free for the entire segment
func (l *SeatLedger) QueryAvailability(ctx context.Context, trainNo, date string, seatType models.SeatType, from, to string) (int, error) {
	seg, err := l.Resolve(ctx, nil, trainNo, from, to)
	if err != nil {
		return 0, err
	}
	seats, err := l.AvailableSeats(ctx, nil, trainNo, date, seatType, seg)
	if err != nil {
		return 0, err
	}
	return len(seats), nil
}

// Summary returns free and total seat counts per seat type for a segment
func (l *SeatLedger) Summary(ctx context.Context, trainNo, date, from, to string) ([]models.SeatTypeAvailability, error) {
	seg, err := l.Resolve(ctx, nil, trainNo, from, to)
	if err != nil {
		return nil, err
	}

	records, err := l.seats.ListSegments(ctx, trainNo, date, "")
	if err != nil {
		return nil, err
	}

	byType := make(map[models.SeatType][]models.SeatSegmentRecord)
	for _, rec := range records {
		byType[rec.SeatType] = append(byType[rec.SeatType], rec)
	}

	var summary []models.SeatTypeAvailability
	for _, seatType := range models.AllSeatTypes {
		recs, ok := byType[seatType]
		if !ok {
			continue
		}
		summary = append(summary, models.SeatTypeAvailability{
			SeatType:  seatType,
			Available: l.resolver.CountAvailable(recs, seg),
			Total:     countSeats(recs),
		})
	}
	return summary, nil
}

// AvailableSeats lists free seats of a type for the segment in first-fit order
func (l *SeatLedger) AvailableSeats(ctx context.Context, tx *sqlx.Tx, trainNo, date string, seatType models.SeatType, seg Segment) ([]models.SeatRef, error) {
	records, err := l.seatRepo(tx).ListSegments(ctx, trainNo, date, seatType)
	if err != nil {
		return nil, err
	}
	return l.resolver.AvailableSeats(records, seg), nil
}

// MarkSegmentBooked flips every leg of the segment on one seat to booked.
// If any leg is no longer available the whole call fails with ErrConflict;
// the caller must roll back its transaction.
func (l *SeatLedger) MarkSegmentBooked(ctx context.Context, tx *sqlx.Tx, trainNo, date string, seat models.SeatRef, seg Segment, orderID string, now time.Time) error {
	legs := seg.LegStarts()
	rows, err := l.seatRepo(tx).MarkBooked(ctx, trainNo, date, seat, legs, orderID, now)
	if err != nil {
		return database.MapError(err)
	}
	if rows != int64(len(legs)) {
		return models.ErrConflict.WithMessage("seat %s on %s %s changed during booking (%d of %d legs)",
			seat.Key(), trainNo, date, rows, len(legs))
	}
	return nil
}

// ReleaseSegment returns every leg of the segment on one seat to available
func (l *SeatLedger) ReleaseSegment(ctx context.Context, tx *sqlx.Tx, trainNo, date string, seat models.SeatRef, seg Segment) error {
	if _, err := l.seatRepo(tx).ReleaseSegment(ctx, trainNo, date, seat, seg.LegStarts()); err != nil {
		return database.MapError(err)
	}
	return nil
}

// ReleaseOrder returns every leg held by an order to available
func (l *SeatLedger) ReleaseOrder(ctx context.Context, tx *sqlx.Tx, orderID string) (int64, error) {
	rows, err := l.seatRepo(tx).ReleaseByOrder(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to release seats of order %s: %w", orderID, database.MapError(err))
	}
	return rows, nil
}

func countSeats(records []models.SeatSegmentRecord) int {
	seen := make(map[string]struct{})
	for _, rec := range records {
		ref := models.SeatRef{CarNo: rec.CarNo, SeatNo: rec.SeatNo}
		seen[ref.Key()] = struct{}{}
	}
	return len(seen)
}
