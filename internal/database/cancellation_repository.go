package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// CancellationRepository tracks cancellations for the daily quota
type CancellationRepository struct {
	db sqlx.ExtContext
}

// NewCancellationRepository creates a new CancellationRepository
func NewCancellationRepository(db sqlx.ExtContext) *CancellationRepository {
	return &CancellationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *CancellationRepository) WithTx(tx *sqlx.Tx) *CancellationRepository {
	return &CancellationRepository{db: tx}
}

// CountForDate counts a user's cancellations on a calendar date
func (r *CancellationRepository) CountForDate(ctx context.Context, userID uuid.UUID, date string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM cancellation_records WHERE user_id = ? AND cancellation_date = ?`
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), userID.String(), date); err != nil {
		return 0, fmt.Errorf("failed to count cancellations: %w", err)
	}
	return count, nil
}

// Create records one cancellation
func (r *CancellationRepository) Create(ctx context.Context, record *models.CancellationRecord) error {
	query := `
		INSERT INTO cancellation_records (id, user_id, order_id, cancellation_date, cancelled_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		record.ID.String(), record.UserID.String(), record.OrderID.String(),
		record.CancellationDate, record.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

// DeleteBefore removes records dated before the given day
func (r *CancellationRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	query := `DELETE FROM cancellation_records WHERE cancellation_date < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past cancellation records: %w", err)
	}
	return result.RowsAffected()
}
