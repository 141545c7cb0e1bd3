package models

import "github.com/google/uuid"

// Passenger is a traveller profile owned by a user.
// Orders snapshot name and id card at booking time.
type Passenger struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	IDCardType   string    `json:"id_card_type" db:"id_card_type"`
	IDCardNumber string    `json:"id_card_number" db:"id_card_number"`
	DiscountType *string   `json:"discount_type,omitempty" db:"discount_type"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
}
