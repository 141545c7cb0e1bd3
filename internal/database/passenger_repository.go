package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// PassengerRepository reads passenger profiles. Profiles are owned by the
// profile service; the booking core only reads them to snapshot into orders.
type PassengerRepository struct {
	db sqlx.ExtContext
}

// NewPassengerRepository creates a new PassengerRepository
func NewPassengerRepository(db sqlx.ExtContext) *PassengerRepository {
	return &PassengerRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PassengerRepository) WithTx(tx *sqlx.Tx) *PassengerRepository {
	return &PassengerRepository{db: tx}
}

// GetForUser returns the requested passengers that belong to the user
func (r *PassengerRepository) GetForUser(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Passenger, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	query, args, err := sqlx.In(`
		SELECT id, user_id, name, id_card_type, id_card_number, discount_type, phone
		FROM passengers
		WHERE user_id = ? AND id IN (?)`,
		userID.String(), idStrings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build passenger query: %w", err)
	}

	var passengers []models.Passenger
	if err := sqlx.SelectContext(ctx, r.db, &passengers, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}

// Create inserts a passenger profile
func (r *PassengerRepository) Create(ctx context.Context, p *models.Passenger) error {
	query := `
		INSERT INTO passengers (id, user_id, name, id_card_type, id_card_number, discount_type, phone)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		p.ID.String(), p.UserID.String(), p.Name, p.IDCardType, p.IDCardNumber, p.DiscountType, p.Phone,
	)
	if err != nil {
		return fmt.Errorf("failed to create passenger: %w", err)
	}
	return nil
}
