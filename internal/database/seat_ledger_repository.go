package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// SeatLedgerRepository is the only writer of seat_segments
type SeatLedgerRepository struct {
	db sqlx.ExtContext
}

// NewSeatLedgerRepository creates a new SeatLedgerRepository
func NewSeatLedgerRepository(db sqlx.ExtContext) *SeatLedgerRepository {
	return &SeatLedgerRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *SeatLedgerRepository) WithTx(tx *sqlx.Tx) *SeatLedgerRepository {
	return &SeatLedgerRepository{db: tx}
}

const seatSegmentColumns = `train_no, departure_date, car_no, seat_no, seat_type,
	from_station, to_station, status, booked_by, booked_at`

// ListSegments returns every leg record of a train/date, optionally narrowed to one seat type.
// Rows are ordered by car and seat so callers see seats grouped together.
func (r *SeatLedgerRepository) ListSegments(ctx context.Context, trainNo, date string, seatType models.SeatType) ([]models.SeatSegmentRecord, error) {
	query := `SELECT ` + seatSegmentColumns + ` FROM seat_segments
		WHERE train_no = ? AND departure_date = ?`
	args := []interface{}{trainNo, date}
	if seatType != "" {
		query += ` AND seat_type = ?`
		args = append(args, string(seatType))
	}
	query += ` ORDER BY car_no, seat_no, from_station`

	var records []models.SeatSegmentRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list seat segments: %w", err)
	}
	return records, nil
}

// MarkBooked flips the given legs of one seat from available to booked.
// Only legs that are still available are touched; the caller compares the
// returned count with len(fromStations) to detect a lost race.
func (r *SeatLedgerRepository) MarkBooked(ctx context.Context, trainNo, date string, seat models.SeatRef, fromStations []string, orderID string, now time.Time) (int64, error) {
	query, args, err := sqlx.In(`
		UPDATE seat_segments
		SET status = ?, booked_by = ?, booked_at = ?
		WHERE train_no = ? AND departure_date = ? AND car_no = ? AND seat_no = ?
		  AND from_station IN (?)
		  AND status = ?`,
		string(models.SeatStatusBooked), orderID, now,
		trainNo, date, seat.CarNo, seat.SeatNo,
		fromStations,
		string(models.SeatStatusAvailable),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build mark booked query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark seat booked: %w", err)
	}
	return result.RowsAffected()
}

// ReleaseSegment returns the given legs of one seat to available. Idempotent.
func (r *SeatLedgerRepository) ReleaseSegment(ctx context.Context, trainNo, date string, seat models.SeatRef, fromStations []string) (int64, error) {
	query, args, err := sqlx.In(`
		UPDATE seat_segments
		SET status = ?, booked_by = NULL, booked_at = NULL
		WHERE train_no = ? AND departure_date = ? AND car_no = ? AND seat_no = ?
		  AND from_station IN (?)`,
		string(models.SeatStatusAvailable),
		trainNo, date, seat.CarNo, seat.SeatNo,
		fromStations,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build release query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to release seat segment: %w", err)
	}
	return result.RowsAffected()
}

// ReleaseByOrder returns every leg booked by an order to available
func (r *SeatLedgerRepository) ReleaseByOrder(ctx context.Context, orderID string) (int64, error) {
	query := `
		UPDATE seat_segments
		SET status = ?, booked_by = NULL, booked_at = NULL
		WHERE booked_by = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), string(models.SeatStatusAvailable), orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to release order seats: %w", err)
	}
	return result.RowsAffected()
}

// CountBookedByOrder returns how many legs an order currently holds
func (r *SeatLedgerRepository) CountBookedByOrder(ctx context.Context, orderID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM seat_segments WHERE booked_by = ? AND status = ?`
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), orderID, string(models.SeatStatusBooked)); err != nil {
		return 0, fmt.Errorf("failed to count order seats: %w", err)
	}
	return count, nil
}

// CountForDate returns the number of leg records materialized for a train/date
func (r *SeatLedgerRepository) CountForDate(ctx context.Context, trainNo, date string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM seat_segments WHERE train_no = ? AND departure_date = ?`
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), trainNo, date); err != nil {
		return 0, fmt.Errorf("failed to count seat segments: %w", err)
	}
	return count, nil
}

// CopyFromTemplate materializes a new date by copying the template date's
// legs with every seat available
func (r *SeatLedgerRepository) CopyFromTemplate(ctx context.Context, trainNo, templateDate, targetDate string) (int64, error) {
	query := `
		INSERT INTO seat_segments (train_no, departure_date, car_no, seat_no, seat_type, from_station, to_station, status)
		SELECT train_no, ?, car_no, seat_no, seat_type, from_station, to_station, ?
		FROM seat_segments
		WHERE train_no = ? AND departure_date = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), targetDate, string(models.SeatStatusAvailable), trainNo, templateDate)
	if err != nil {
		return 0, fmt.Errorf("failed to copy seat segments from template: %w", err)
	}
	return result.RowsAffected()
}

// InsertSegments writes freshly generated leg records
func (r *SeatLedgerRepository) InsertSegments(ctx context.Context, records []models.SeatSegmentRecord) (int64, error) {
	query := `
		INSERT INTO seat_segments (train_no, departure_date, car_no, seat_no, seat_type, from_station, to_station, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	query = r.db.Rebind(query)

	var inserted int64
	for _, rec := range records {
		status := rec.Status
		if status == "" {
			status = models.SeatStatusAvailable
		}
		if _, err := r.db.ExecContext(ctx, query,
			rec.TrainNo, rec.DepartureDate, rec.CarNo, rec.SeatNo, string(rec.SeatType),
			rec.FromStation, rec.ToStation, string(status),
		); err != nil {
			return inserted, fmt.Errorf("failed to insert seat segment %d-%s %s-%s: %w",
				rec.CarNo, rec.SeatNo, rec.FromStation, rec.ToStation, err)
		}
		inserted++
	}
	return inserted, nil
}

// DeleteBeforeDate removes legs of trains that have already departed
func (r *SeatLedgerRepository) DeleteBeforeDate(ctx context.Context, date string) (int64, error) {
	query := `DELETE FROM seat_segments WHERE departure_date < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past seat segments: %w", err)
	}
	return result.RowsAffected()
}
