package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/smarttransit/rail-booking-backend/internal/utils"
)

// cancelLockTTL bounds how long one user's cancellation may hold the per-user lock
const cancelLockTTL = 30 * time.Second

// OrderLifecycleService owns the order state machine after seats are committed
type OrderLifecycleService struct {
	db            database.DB
	ledger        *SeatLedger
	orders        *database.OrderRepository
	locks         *database.SeatLockRepository
	cancellations *database.CancellationRepository
	rules         BookingRules
	opts          options
	logger        *logrus.Logger
}

// NewOrderLifecycleService creates a new OrderLifecycleService
func NewOrderLifecycleService(db database.DB, ledger *SeatLedger, rules BookingRules, logger *logrus.Logger, opts ...Option) *OrderLifecycleService {
	return &OrderLifecycleService{
		db:            db,
		ledger:        ledger,
		orders:        database.NewOrderRepository(db),
		locks:         database.NewSeatLockRepository(db),
		cancellations: database.NewCancellationRepository(db),
		rules:         rules,
		opts:          applyOptions(opts),
		logger:        logger,
	}
}

// ============================================================================
// PAYMENT
// ============================================================================

// ConfirmPayment marks a confirmed_unpaid order as paid. Called when the
// payment provider reports success. Seat locks are cleared and the ledger
// rows stay booked. Paying an already-paid order returns it unchanged.
func (s *OrderLifecycleService) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}

	now := s.opts.clock()
	switch {
	case order.Status == models.OrderStatusPaid:
		return order, nil
	case order.Status != models.OrderStatusConfirmedUnpaid:
		return nil, models.ErrInvalidStateTransition.WithMessage("cannot pay order %s in status %s", order.OrderNumber, order.Status)
	case order.IsPaymentExpired(now):
		return nil, s.expireDetected(ctx, order)
	}

	var paid bool
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.orders.WithTx(tx).MarkPaid(ctx, orderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		paid = true
		_, err = s.locks.WithTx(tx).DeleteByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !paid {
		// Lost a race with cancellation, expiry or a concurrent payment
		current, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == models.OrderStatusPaid {
			return current, nil
		}
		if current != nil && current.IsPaymentExpired(now) {
			return nil, s.expireDetected(ctx, current)
		}
		return nil, models.ErrInvalidStateTransition.WithMessage("order %s changed status during payment", order.OrderNumber)
	}

	order.Status = models.OrderStatusPaid
	order.UpdatedAt = now

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
	}).Info("Order paid")

	publishAfterCommit(ctx, s.opts.events, s.logger, newOrderEvent(EventOrderPaid, order, order.Status, now))
	return order, nil
}

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelOrder cancels an unpaid or paid order, releases its seats and records
// one cancellation against the user's daily quota. Once the quota is used up
// the call fails with ErrQuotaExceeded and nothing is changed.
func (s *OrderLifecycleService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	unlock, ok, err := s.opts.locker.TryLock(ctx, "rail:cancel:"+userID.String(), cancelLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrConflict.WithMessage("another cancellation for this user is in progress")
	}
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}

	now := s.opts.clock()
	if !order.Status.CanTransitionTo(models.OrderStatusCancelled) {
		return nil, models.ErrInvalidStateTransition.WithMessage("cannot cancel order %s in status %s", order.OrderNumber, order.Status)
	}
	if order.IsPaymentExpired(now) {
		return nil, s.expireDetected(ctx, order)
	}

	today := calendarDate(now, s.rules.Location)
	used, err := s.cancellations.CountForDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if used >= s.rules.DailyCancellationLimit {
		s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": orderID,
			"used":     used,
			"limit":    s.rules.DailyCancellationLimit,
		}).Info("Cancellation rejected: daily quota reached")
		return nil, models.ErrQuotaExceeded.WithMessage("%d of %d cancellations used on %s", used, s.rules.DailyCancellationLimit, today)
	}

	var released int64
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.orders.WithTx(tx).MarkCancelled(ctx, orderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrInvalidStateTransition.WithMessage("order %s changed status during cancellation", order.OrderNumber)
		}

		released, err = s.ledger.ReleaseOrder(ctx, tx, orderID.String())
		if err != nil {
			return err
		}
		if _, err := s.locks.WithTx(tx).DeleteByOrder(ctx, orderID); err != nil {
			return err
		}

		return s.cancellations.WithTx(tx).Create(ctx, &models.CancellationRecord{
			ID:               uuid.New(),
			UserID:           userID,
			OrderID:          orderID,
			CancellationDate: today,
			CancelledAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now

	s.logger.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"order_number":  order.OrderNumber,
		"user_id":       userID,
		"from_status":   previous,
		"released_legs": released,
		"cancellations": used + 1,
	}).Info("Order cancelled")

	publishAfterCommit(ctx, s.opts.events, s.logger, newOrderEvent(EventOrderCancelled, order, order.Status, now))
	return order, nil
}

// CancellationsToday reports the user's quota usage for the current day
func (s *OrderLifecycleService) CancellationsToday(ctx context.Context, userID uuid.UUID) (*models.CancellationQuota, error) {
	today := calendarDate(s.opts.clock(), s.rules.Location)
	used, err := s.cancellations.CountForDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	remaining := s.rules.DailyCancellationLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.CancellationQuota{
		Date:      today,
		Used:      used,
		Limit:     s.rules.DailyCancellationLimit,
		Remaining: remaining,
	}, nil
}

// ============================================================================
// EXPIRY
// ============================================================================

// ExpireOrder moves a confirmed_unpaid order past its deadline to expired and
// releases its seats. It reports false when the order was not eligible at
// commit time (paid, cancelled, already expired or still inside its window).
func (s *OrderLifecycleService) ExpireOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	now := s.opts.clock()

	var (
		expired  bool
		released int64
	)
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.orders.WithTx(tx).MarkExpired(ctx, orderID, now)
		if err != nil || !ok {
			return err
		}
		expired = true

		released, err = s.ledger.ReleaseOrder(ctx, tx, orderID.String())
		if err != nil {
			return err
		}
		_, err = s.locks.WithTx(tx).DeleteByOrder(ctx, orderID)
		return err
	})
	if err != nil || !expired {
		return false, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Expired order could not be reloaded for event")
		return true, nil
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":      orderID,
		"released_legs": released,
	}).Info("Order expired")

	if order != nil {
		publishAfterCommit(ctx, s.opts.events, s.logger, newOrderEvent(EventOrderExpired, order, models.OrderStatusExpired, now))
	}
	return true, nil
}

// ExpireOverdue expires up to limit overdue unpaid orders. Per-order failures
// are logged and skipped so one bad row cannot stall the sweep.
func (s *OrderLifecycleService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.orders.ListOverdueUnpaid(ctx, s.opts.clock(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.ExpireOrder(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", id).Error("Failed to expire order")
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// expireDetected expires an order found past its deadline and returns the
// error to surface to the caller
func (s *OrderLifecycleService) expireDetected(ctx context.Context, order *models.Order) error {
	if _, err := s.ExpireOrder(ctx, order.ID); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to expire overdue order on access")
	}
	return models.ErrOrderExpired.WithMessage("order %s payment window closed at %s",
		order.OrderNumber, order.PaymentExpiresAt.Format(time.RFC3339))
}

// ============================================================================
// QUERIES
// ============================================================================

// ListActiveOrders returns the user's pending, unpaid and paid orders.
// Unpaid orders past their deadline are excluded at read time.
func (s *OrderLifecycleService) ListActiveOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.orders.ListActiveByUser(ctx, userID, s.opts.clock())
}

// GetOrder returns one of the user's orders with its passenger lines
func (s *OrderLifecycleService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.OrderWithDetails, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}

	details, err := s.orders.GetDetails(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if seat, ok := details[i].Seat(); ok {
			details[i].SeatLabel = utils.FormatFullSeatLabel(seat.CarNo, seat.SeatNo, string(seat.Type))
		}
	}

	// Present stale unpaid orders the way listings do
	if order.IsPaymentExpired(s.opts.clock()) {
		order.Status = models.OrderStatusExpired
	}

	return &models.OrderWithDetails{Order: *order, Details: details}, nil
}

// TimeRemaining returns how long the user has left to pay
func (s *OrderLifecycleService) TimeRemaining(ctx context.Context, userID, orderID uuid.UUID) (time.Duration, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if order == nil || order.UserID != userID {
		return 0, models.ErrOrderNotFound
	}
	return order.TimeRemaining(s.opts.clock()), nil
}

// HasActiveUnpaidOrder reports whether the user still owes payment on an order
func (s *OrderLifecycleService) HasActiveUnpaidOrder(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.orders.HasActiveUnpaid(ctx, userID, s.opts.clock())
}
