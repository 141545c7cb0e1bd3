package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// SQLSTATE codes PostgreSQL raises when concurrent writers collide
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// MapError converts driver-level concurrency failures into models.ErrConflict
// so the booking retry loop treats them like a lost conditional update.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsBookingError(err); ok {
		return err
	}
	if isConcurrencyFailure(err) {
		return models.ErrConflict.Wrap(err)
	}
	return err
}

func isConcurrencyFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}
