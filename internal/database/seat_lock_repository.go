package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// SeatLockRepository handles the soft holds taken while an order awaits payment
type SeatLockRepository struct {
	db sqlx.ExtContext
}

// NewSeatLockRepository creates a new SeatLockRepository
func NewSeatLockRepository(db sqlx.ExtContext) *SeatLockRepository {
	return &SeatLockRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *SeatLockRepository) WithTx(tx *sqlx.Tx) *SeatLockRepository {
	return &SeatLockRepository{db: tx}
}

// Create inserts seat locks
func (r *SeatLockRepository) Create(ctx context.Context, locks []models.SeatLock) error {
	query := r.db.Rebind(`
		INSERT INTO seat_locks (id, order_id, train_no, departure_date, seat_type, car_no, seat_no, locked_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, lock := range locks {
		_, err := r.db.ExecContext(ctx, query,
			lock.ID, lock.OrderID, lock.TrainNo, lock.DepartureDate, string(lock.SeatType),
			lock.CarNo, lock.SeatNo, lock.LockedAt, lock.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create seat lock: %w", err)
		}
	}
	return nil
}

// ListByOrder returns the locks held by an order
func (r *SeatLockRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SeatLock, error) {
	var locks []models.SeatLock
	query := `
		SELECT id, order_id, train_no, departure_date, seat_type, car_no, seat_no, locked_at, expires_at
		FROM seat_locks WHERE order_id = ? ORDER BY car_no, seat_no`

	if err := sqlx.SelectContext(ctx, r.db, &locks, r.db.Rebind(query), orderID.String()); err != nil {
		return nil, fmt.Errorf("failed to list seat locks: %w", err)
	}
	return locks, nil
}

// DeleteByOrder removes every lock held by an order
func (r *SeatLockRepository) DeleteByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	query := `DELETE FROM seat_locks WHERE order_id = ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), orderID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete order seat locks: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes locks whose expiry has passed
func (r *SeatLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM seat_locks WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired seat locks: %w", err)
	}
	return result.RowsAffected()
}

// DeleteBeforeDate removes locks on trains that have already departed
func (r *SeatLockRepository) DeleteBeforeDate(ctx context.Context, date string) (int64, error) {
	query := `DELETE FROM seat_locks WHERE departure_date < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past seat locks: %w", err)
	}
	return result.RowsAffected()
}
