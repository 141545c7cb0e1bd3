package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// ORDER STATUS
// ============================================================================

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"          // Cart-like, no seats committed
	OrderStatusConfirmedUnpaid OrderStatus = "confirmed_unpaid" // Seats booked, awaiting payment
	OrderStatusPaid            OrderStatus = "paid"             // Terminal success
	OrderStatusCancelled       OrderStatus = "cancelled"        // Terminal, user or system initiated
	OrderStatusExpired         OrderStatus = "expired"          // Terminal, payment window elapsed
)

// DefaultTicketType is used when a passenger line names no ticket type
const DefaultTicketType = "成人票"

// allowedTransitions is the order state machine.
// paid is only left through a cancellation.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusConfirmedUnpaid},
	OrderStatusConfirmedUnpaid: {OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPaid:            {OrderStatusCancelled},
}

// CanTransitionTo reports whether the state machine permits from -> to
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusExpired
}

// HoldsSeats reports whether an order in this state owns booked ledger rows
func (s OrderStatus) HoldsSeats() bool {
	return s == OrderStatusConfirmedUnpaid || s == OrderStatusPaid
}

// ============================================================================
// ORDER AGGREGATE
// ============================================================================

// Order is what a customer purchased for one train/date/segment
type Order struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	OrderNumber      string      `json:"order_number" db:"order_number"`
	UserID           uuid.UUID   `json:"user_id" db:"user_id"`
	TrainNo          string      `json:"train_no" db:"train_no"`
	DepartureStation string      `json:"departure_station" db:"departure_station"`
	ArrivalStation   string      `json:"arrival_station" db:"arrival_station"`
	DepartureDate    string      `json:"departure_date" db:"departure_date"`
	DepartureTime    *string     `json:"departure_time,omitempty" db:"departure_time"`
	ArrivalTime      *string     `json:"arrival_time,omitempty" db:"arrival_time"`
	TotalPrice       float64     `json:"total_price" db:"total_price"`
	Status           OrderStatus `json:"status" db:"status"`
	PaymentExpiresAt *time.Time  `json:"payment_expires_at,omitempty" db:"payment_expires_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// IsPaymentExpired reports whether a confirmed_unpaid order is past its deadline
func (o *Order) IsPaymentExpired(now time.Time) bool {
	if o.Status != OrderStatusConfirmedUnpaid || o.PaymentExpiresAt == nil {
		return false
	}
	return now.After(*o.PaymentExpiresAt)
}

// TimeRemaining returns how long is left to pay; zero when nothing is payable
func (o *Order) TimeRemaining(now time.Time) time.Duration {
	if o.Status != OrderStatusConfirmedUnpaid || o.PaymentExpiresAt == nil {
		return 0
	}
	remaining := o.PaymentExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// OrderDetail is one passenger line of an order
type OrderDetail struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrderID        uuid.UUID `json:"order_id" db:"order_id"`
	PassengerID    uuid.UUID `json:"passenger_id" db:"passenger_id"`
	PassengerName  string    `json:"passenger_name" db:"passenger_name"`
	IDCardType     string    `json:"id_card_type" db:"id_card_type"`
	IDCardNumber   string    `json:"id_card_number" db:"id_card_number"`
	SeatType       SeatType  `json:"seat_type" db:"seat_type"`
	TicketType     string    `json:"ticket_type" db:"ticket_type"`
	Price          float64   `json:"price" db:"price"`
	SequenceNumber int       `json:"sequence_number" db:"sequence_number"`
	CarNumber      *int      `json:"car_number,omitempty" db:"car_number"`
	SeatNumber     *string   `json:"seat_number,omitempty" db:"seat_number"`
	SeatLabel      string    `json:"seat_label,omitempty" db:"-"`
}

// Seat returns the assigned seat, if any
func (d *OrderDetail) Seat() (SeatRef, bool) {
	if d.CarNumber == nil || d.SeatNumber == nil {
		return SeatRef{}, false
	}
	return SeatRef{CarNo: *d.CarNumber, SeatNo: *d.SeatNumber, Type: d.SeatType}, true
}

// OrderWithDetails bundles an order with its passenger lines
type OrderWithDetails struct {
	Order
	Details []OrderDetail `json:"details"`
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// BookingPassenger is one passenger line in a booking request
type BookingPassenger struct {
	PassengerID uuid.UUID `json:"passenger_id" binding:"required"`
	SeatType    SeatType  `json:"seat_type,omitempty"`
	TicketType  string    `json:"ticket_type,omitempty"`
}

// CreateBookingRequest books one segment for every listed passenger
type CreateBookingRequest struct {
	TrainNo          string             `json:"train_no" binding:"required"`
	DepartureDate    string             `json:"departure_date" binding:"required"`
	DepartureStation string             `json:"departure_station" binding:"required"`
	ArrivalStation   string             `json:"arrival_station" binding:"required"`
	SeatType         SeatType           `json:"seat_type,omitempty"`
	Passengers       []BookingPassenger `json:"passengers" binding:"required,min=1,dive"`
}

// BookingResult is returned once seats are committed for an order
type BookingResult struct {
	OrderID          uuid.UUID     `json:"order_id"`
	OrderNumber      string        `json:"order_number"`
	Status           OrderStatus   `json:"status"`
	PaymentExpiresAt *time.Time    `json:"payment_expires_at"`
	TotalPrice       float64       `json:"total_price"`
	Seats            []OrderDetail `json:"seats"`
}
