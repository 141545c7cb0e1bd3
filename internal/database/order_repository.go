package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// OrderRepository handles orders and their passenger lines
type OrderRepository struct {
	db sqlx.ExtContext
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OrderRepository) WithTx(tx *sqlx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

const orderColumns = `id, order_number, user_id, train_no, departure_station, arrival_station,
	departure_date, departure_time, arrival_time, total_price, status,
	payment_expires_at, created_at, updated_at`

const orderDetailColumns = `id, order_id, passenger_id, passenger_name, id_card_type, id_card_number,
	seat_type, ticket_type, price, sequence_number, car_number, seat_number`

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateOrderNumber creates a unique order number
// Format: EA + YYYYMMDD + 6 char alphanumeric
// Example: EA20251201K7M2QX
func (r *OrderRepository) GenerateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	dateStr := now.Format("20060102")

	for attempts := 0; attempts < 10; attempts++ {
		suffix := make([]byte, 6)
		for i := range suffix {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(orderNumberAlphabet))))
			if err != nil {
				return "", fmt.Errorf("failed to generate random order number: %w", err)
			}
			suffix[i] = orderNumberAlphabet[n.Int64()]
		}
		candidate := "EA" + dateStr + string(suffix)

		var count int
		query := `SELECT COUNT(*) FROM orders WHERE order_number = ?`
		if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query), candidate); err != nil {
			return "", fmt.Errorf("failed to check order number uniqueness: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique order number after 10 attempts")
}

// Create inserts a new order row
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		order.ID.String(),
		order.OrderNumber,
		order.UserID.String(),
		order.TrainNo,
		order.DepartureStation,
		order.ArrivalStation,
		order.DepartureDate,
		order.DepartureTime,
		order.ArrivalTime,
		order.TotalPrice,
		string(order.Status),
		order.PaymentExpiresAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// CreateDetails inserts passenger lines for an order
func (r *OrderRepository) CreateDetails(ctx context.Context, details []models.OrderDetail) error {
	query := r.db.Rebind(`
		INSERT INTO order_details (` + orderDetailColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, d := range details {
		_, err := r.db.ExecContext(ctx, query,
			d.ID.String(),
			d.OrderID.String(),
			d.PassengerID.String(),
			d.PassengerName,
			d.IDCardType,
			d.IDCardNumber,
			string(d.SeatType),
			d.TicketType,
			d.Price,
			d.SequenceNumber,
			d.CarNumber,
			d.SeatNumber,
		)
		if err != nil {
			return fmt.Errorf("failed to create order detail %d: %w", d.SequenceNumber, err)
		}
	}
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	err := sqlx.GetContext(ctx, r.db, &order, r.db.Rebind(query), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetDetails retrieves the passenger lines of an order in booking order
func (r *OrderRepository) GetDetails(ctx context.Context, orderID uuid.UUID) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	query := `SELECT ` + orderDetailColumns + ` FROM order_details WHERE order_id = ? ORDER BY sequence_number`

	if err := sqlx.SelectContext(ctx, r.db, &details, r.db.Rebind(query), orderID.String()); err != nil {
		return nil, fmt.Errorf("failed to get order details: %w", err)
	}
	return details, nil
}

// AssignSeat records the seat allocated to one passenger line
func (r *OrderRepository) AssignSeat(ctx context.Context, detailID uuid.UUID, seat models.SeatRef) error {
	query := `UPDATE order_details SET car_number = ?, seat_number = ?, seat_type = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), seat.CarNo, seat.SeatNo, string(seat.Type), detailID.String())
	if err != nil {
		return fmt.Errorf("failed to assign seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != 1 {
		return models.ErrConflict.WithMessage("order detail %s no longer exists", detailID)
	}
	return nil
}

// MarkConfirmedUnpaid moves a pending order to confirmed_unpaid.
// Returns false if the order was no longer pending.
func (r *OrderRepository) MarkConfirmedUnpaid(ctx context.Context, id uuid.UUID, totalPrice float64, expiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, total_price = ?, payment_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	return r.execConditional(ctx, query,
		string(models.OrderStatusConfirmedUnpaid), totalPrice, expiresAt, now,
		id.String(), string(models.OrderStatusPending),
	)
}

// MarkPaid moves a confirmed_unpaid order to paid, but only while its
// payment window is still open at commit time.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND (payment_expires_at IS NULL OR payment_expires_at >= ?)`

	return r.execConditional(ctx, query,
		string(models.OrderStatusPaid), now,
		id.String(), string(models.OrderStatusConfirmedUnpaid), now,
	)
}

// MarkExpired moves a confirmed_unpaid order to expired, but only if it is
// still unpaid and still past its deadline.
func (r *OrderRepository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_expires_at < ?`

	return r.execConditional(ctx, query,
		string(models.OrderStatusExpired), now,
		id.String(), string(models.OrderStatusConfirmedUnpaid), now,
	)
}

// MarkCancelled cancels a paid order, or an unpaid order whose payment
// window is still open.
func (r *OrderRepository) MarkCancelled(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, updated_at = ?
		WHERE id = ?
		  AND (status = ? OR (status = ? AND (payment_expires_at IS NULL OR payment_expires_at >= ?)))`

	return r.execConditional(ctx, query,
		string(models.OrderStatusCancelled), now,
		id.String(),
		string(models.OrderStatusPaid), string(models.OrderStatusConfirmedUnpaid), now,
	)
}

// ListActiveByUser returns a user's live orders, newest first.
// Unpaid orders past their deadline are filtered here, whether or not
// the cleanup sweep has expired them yet.
func (r *OrderRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = ?
		  AND status IN (?, ?, ?)
		  AND (status <> ? OR payment_expires_at IS NULL OR payment_expires_at >= ?)
		ORDER BY created_at DESC`

	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, r.db, &orders, r.db.Rebind(query),
		userID.String(),
		string(models.OrderStatusPending), string(models.OrderStatusConfirmedUnpaid), string(models.OrderStatusPaid),
		string(models.OrderStatusConfirmedUnpaid), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	return orders, nil
}

// HasActiveUnpaid reports whether the user has an unpaid order still inside its payment window
func (r *OrderRepository) HasActiveUnpaid(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM orders
		WHERE user_id = ? AND status = ? AND payment_expires_at >= ?`

	err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(query),
		userID.String(), string(models.OrderStatusConfirmedUnpaid), now)
	if err != nil {
		return false, fmt.Errorf("failed to check unpaid orders: %w", err)
	}
	return count > 0, nil
}

// ListOverdueUnpaid returns ids of unpaid orders whose payment window has closed
func (r *OrderRepository) ListOverdueUnpaid(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM orders
		WHERE status = ? AND payment_expires_at < ?
		ORDER BY payment_expires_at
		LIMIT ?`

	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, r.db, &ids, r.db.Rebind(query),
		string(models.OrderStatusConfirmedUnpaid), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue orders: %w", err)
	}
	return ids, nil
}

// DeleteStalePending removes pending orders created before cutoff, with their details
func (r *OrderRepository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	detailQuery := `
		DELETE FROM order_details
		WHERE order_id IN (SELECT id FROM orders WHERE status = ? AND created_at < ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(detailQuery), string(models.OrderStatusPending), cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete stale pending order details: %w", err)
	}

	orderQuery := `DELETE FROM orders WHERE status = ? AND created_at < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(orderQuery), string(models.OrderStatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale pending orders: %w", err)
	}
	return result.RowsAffected()
}

func (r *OrderRepository) execConditional(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
