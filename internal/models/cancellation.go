package models

import (
	"time"

	"github.com/google/uuid"
)

// CancellationRecord counts one user cancellation against the daily quota
type CancellationRecord struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	OrderID          uuid.UUID `json:"order_id" db:"order_id"`
	CancellationDate string    `json:"cancellation_date" db:"cancellation_date"` // YYYY-MM-DD
	CancelledAt      time.Time `json:"cancelled_at" db:"cancelled_at"`
}

// CancellationQuota reports how much of today's quota a user has used
type CancellationQuota struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}
