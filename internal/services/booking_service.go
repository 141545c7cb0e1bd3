package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/config"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/smarttransit/rail-booking-backend/pkg/validator"
)

var trainNumbers = validator.NewTrainNumberValidator()

// BookingRules holds the tunables shared by booking and the order lifecycle
type BookingRules struct {
	PaymentTimeout            time.Duration  // How long seats stay committed without payment
	DailyCancellationLimit    int            // Cancellations allowed per user per calendar day
	MaxConflictRetries        int            // Extra attempts after losing a seat race
	RetryBackoff              time.Duration  // Linear backoff unit between attempts
	RestrictBookingAfterQuota bool           // Refuse new bookings once the cancellation quota is used up
	Location                  *time.Location // Calendar used for the cancellation day
}

// DefaultBookingRules returns sensible defaults
func DefaultBookingRules() BookingRules {
	return BookingRules{
		PaymentTimeout:            15 * time.Minute,
		DailyCancellationLimit:    5,
		MaxConflictRetries:        3,
		RetryBackoff:              20 * time.Millisecond,
		RestrictBookingAfterQuota: true,
		Location:                  time.Local,
	}
}

// BookingRulesFromConfig builds rules from environment configuration
func BookingRulesFromConfig(cfg config.BookingConfig) (BookingRules, error) {
	loc, err := cfg.Location()
	if err != nil {
		return BookingRules{}, err
	}
	rules := DefaultBookingRules()
	rules.PaymentTimeout = cfg.PaymentTimeout
	rules.DailyCancellationLimit = cfg.DailyCancellationLimit
	rules.MaxConflictRetries = cfg.MaxConflictRetries
	rules.RestrictBookingAfterQuota = cfg.RestrictBookingAfterQuota
	rules.Location = loc
	return rules, nil
}

// BookingService is the booking transactor: it commits seats for every
// passenger of an order in one transaction, or none at all
type BookingService struct {
	db            database.DB
	ledger        *SeatLedger
	resolver      *SegmentResolver
	orders        *database.OrderRepository
	locks         *database.SeatLockRepository
	passengers    *database.PassengerRepository
	trains        *database.TrainRepository
	cancellations *database.CancellationRepository
	rules         BookingRules
	opts          options
	logger        *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(db database.DB, ledger *SeatLedger, rules BookingRules, logger *logrus.Logger, opts ...Option) *BookingService {
	return &BookingService{
		db:            db,
		ledger:        ledger,
		resolver:      ledger.resolver,
		orders:        database.NewOrderRepository(db),
		locks:         database.NewSeatLockRepository(db),
		passengers:    database.NewPassengerRepository(db),
		trains:        database.NewTrainRepository(db),
		cancellations: database.NewCancellationRepository(db),
		rules:         rules,
		opts:          applyOptions(opts),
		logger:        logger,
	}
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

// CreateBooking books the segment for every passenger and returns a
// confirmed_unpaid order. Lost seat races are retried up to
// MaxConflictRetries times before ErrConflict is surfaced.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.BookingResult, error) {
	draft, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		details []models.OrderDetail
	)
	err = s.withConflictRetry(ctx, draft.order.TrainNo, func() error {
		now := s.opts.clock()
		return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
			o, d, err := s.newPendingOrder(ctx, tx, userID, draft, now)
			if err != nil {
				return err
			}
			if err := s.commitSeats(ctx, tx, o, d, draft.segment, now); err != nil {
				return err
			}
			order, details = o, d
			return nil
		})
	})
	if err != nil {
		s.logBookingFailure(userID, &draft.order, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      userID,
		"train_no":     order.TrainNo,
		"date":         order.DepartureDate,
		"segment":      order.DepartureStation + "->" + order.ArrivalStation,
		"passengers":   len(details),
		"expires_at":   order.PaymentExpiresAt,
	}).Info("Booking committed")

	publishAfterCommit(ctx, s.opts.events, s.logger, newOrderEvent(EventOrderConfirmedUnpaid, order, order.Status, order.UpdatedAt))

	return bookingResult(order, details), nil
}

// ============================================================================
// TWO-STEP FLOW: PENDING ORDER, THEN SEAT ASSIGNMENT
// ============================================================================

// CreatePendingOrder stores a cart-like order with passenger lines but no seats.
// Pending orders that are never confirmed are purged by the cleanup sweep.
func (s *BookingService) CreatePendingOrder(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.OrderWithDetails, error) {
	draft, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	var result *models.OrderWithDetails
	now := s.opts.clock()
	err = database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		order, details, err := s.newPendingOrder(ctx, tx, userID, draft, now)
		if err != nil {
			return err
		}
		result = &models.OrderWithDetails{Order: *order, Details: details}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": result.ID,
		"user_id":  userID,
		"train_no": result.TrainNo,
	}).Info("Pending order created")

	return result, nil
}

// ConfirmPendingOrder assigns seats to an existing pending order
func (s *BookingService) ConfirmPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.BookingResult, error) {
	existing, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UserID != userID {
		return nil, models.ErrOrderNotFound
	}
	if existing.Status != models.OrderStatusPending {
		return nil, models.ErrInvalidStateTransition.WithMessage("order %s is %s, only pending orders can be confirmed", existing.OrderNumber, existing.Status)
	}

	if err := s.checkBookingQuota(ctx, userID); err != nil {
		return nil, err
	}

	seg, err := s.ledger.Resolve(ctx, nil, existing.TrainNo, existing.DepartureStation, existing.ArrivalStation)
	if err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		details []models.OrderDetail
	)
	err = s.withConflictRetry(ctx, existing.TrainNo, func() error {
		now := s.opts.clock()
		return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
			orderRepo := s.orders.WithTx(tx)
			o, err := orderRepo.GetByID(ctx, orderID)
			if err != nil {
				return err
			}
			if o == nil {
				return models.ErrOrderNotFound
			}
			d, err := orderRepo.GetDetails(ctx, orderID)
			if err != nil {
				return err
			}
			if len(d) == 0 {
				return models.ErrValidation.WithMessage("order %s has no passengers", o.OrderNumber)
			}
			if err := s.commitSeats(ctx, tx, o, d, seg, now); err != nil {
				return err
			}
			order, details = o, d
			return nil
		})
	})
	if err != nil {
		s.logBookingFailure(userID, existing, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  userID,
		"seats":    len(details),
	}).Info("Pending order confirmed")

	publishAfterCommit(ctx, s.opts.events, s.logger, newOrderEvent(EventOrderConfirmedUnpaid, order, order.Status, order.UpdatedAt))

	return bookingResult(order, details), nil
}

// ============================================================================
// INTERNAL
// ============================================================================

// bookingDraft is a validated request, ready to be written
type bookingDraft struct {
	order      models.Order
	segment    Segment
	passengers []models.Passenger
	lines      []models.BookingPassenger
	prices     []float64
}

func (s *BookingService) prepare(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*bookingDraft, error) {
	if req == nil || len(req.Passengers) == 0 {
		return nil, models.ErrValidation.WithMessage("at least one passenger is required")
	}
	if _, err := time.Parse("2006-01-02", req.DepartureDate); err != nil {
		return nil, models.ErrValidation.WithMessage("departure_date must be YYYY-MM-DD")
	}

	trainNo, err := trainNumbers.Validate(req.TrainNo)
	if err != nil {
		return nil, models.ErrValidation.WithMessage("%v", err)
	}

	train, err := s.trains.GetTrain(ctx, trainNo, req.DepartureDate)
	if err != nil {
		return nil, err
	}
	if train == nil {
		return nil, models.ErrTrainNotFound.WithMessage("train %s does not run on %s", trainNo, req.DepartureDate)
	}

	seg, err := s.ledger.Resolve(ctx, nil, trainNo, req.DepartureStation, req.ArrivalStation)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Passengers))
	seen := make(map[uuid.UUID]bool, len(req.Passengers))
	for _, p := range req.Passengers {
		if seen[p.PassengerID] {
			return nil, models.ErrValidation.WithMessage("passenger %s is listed twice", p.PassengerID)
		}
		seen[p.PassengerID] = true
		ids = append(ids, p.PassengerID)
	}

	found, err := s.passengers.GetForUser(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Passenger, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	draft := &bookingDraft{
		order: models.Order{
			UserID:           userID,
			TrainNo:          train.TrainNo,
			DepartureStation: seg.From,
			ArrivalStation:   seg.To,
			DepartureDate:    train.DepartureDate,
			DepartureTime:    stringPtr(train.DepartureTime),
			ArrivalTime:      stringPtr(train.ArrivalTime),
		},
		segment: seg,
	}

	for _, line := range req.Passengers {
		passenger, ok := byID[line.PassengerID]
		if !ok {
			return nil, models.ErrValidation.WithMessage("passenger %s not found", line.PassengerID)
		}

		seatType := line.SeatType
		if seatType == "" {
			seatType = req.SeatType
		}
		if seatType == "" {
			seatType = models.DefaultSeatType(train.TrainNo)
		}
		if !seatType.IsValid() {
			return nil, models.ErrValidation.WithMessage("unknown seat type %q", seatType)
		}
		line.SeatType = seatType
		if line.TicketType == "" {
			line.TicketType = models.DefaultTicketType
		}

		price, err := s.opts.fares.Quote(ctx, train.TrainNo, seg, seatType, line.TicketType)
		if err != nil {
			return nil, fmt.Errorf("failed to quote fare: %w", err)
		}

		draft.passengers = append(draft.passengers, passenger)
		draft.lines = append(draft.lines, line)
		draft.prices = append(draft.prices, price)
	}

	if err := s.checkBookingQuota(ctx, userID); err != nil {
		return nil, err
	}

	return draft, nil
}

// checkBookingQuota refuses new bookings once today's cancellation quota is used
func (s *BookingService) checkBookingQuota(ctx context.Context, userID uuid.UUID) error {
	if !s.rules.RestrictBookingAfterQuota {
		return nil
	}
	today := calendarDate(s.opts.clock(), s.rules.Location)
	used, err := s.cancellations.CountForDate(ctx, userID, today)
	if err != nil {
		return err
	}
	if used >= s.rules.DailyCancellationLimit {
		return models.ErrQuotaExceeded.WithMessage("%d cancellations today, booking is blocked until tomorrow", used)
	}
	return nil
}

// newPendingOrder writes the order row and its passenger snapshot
func (s *BookingService) newPendingOrder(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, draft *bookingDraft, now time.Time) (*models.Order, []models.OrderDetail, error) {
	orderRepo := s.orders.WithTx(tx)

	number, err := orderRepo.GenerateOrderNumber(ctx, now)
	if err != nil {
		return nil, nil, err
	}

	order := draft.order
	order.ID = uuid.New()
	order.OrderNumber = number
	order.UserID = userID
	order.Status = models.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	details := make([]models.OrderDetail, len(draft.lines))
	for i, line := range draft.lines {
		passenger := draft.passengers[i]
		details[i] = models.OrderDetail{
			ID:             uuid.New(),
			OrderID:        order.ID,
			PassengerID:    passenger.ID,
			PassengerName:  passenger.Name,
			IDCardType:     passenger.IDCardType,
			IDCardNumber:   passenger.IDCardNumber,
			SeatType:       line.SeatType,
			TicketType:     line.TicketType,
			Price:          draft.prices[i],
			SequenceNumber: i + 1,
		}
		order.TotalPrice += draft.prices[i]
	}

	if err := orderRepo.Create(ctx, &order); err != nil {
		return nil, nil, err
	}
	if err := orderRepo.CreateDetails(ctx, details); err != nil {
		return nil, nil, err
	}
	return &order, details, nil
}

// commitSeats assigns one seat per passenger line, sequentially, marks the
// ledger, takes seat locks and moves the order to confirmed_unpaid. Any error
// aborts the surrounding transaction.
func (s *BookingService) commitSeats(ctx context.Context, tx *sqlx.Tx, order *models.Order, details []models.OrderDetail, seg Segment, now time.Time) error {
	orderRepo := s.orders.WithTx(tx)
	expiresAt := now.Add(s.rules.PaymentTimeout)

	candidates := make(map[models.SeatType][]models.SeatRef)
	claimed := make(map[string]bool, len(details))
	locks := make([]models.SeatLock, 0, len(details))
	var total float64

	for i := range details {
		detail := &details[i]

		free, ok := candidates[detail.SeatType]
		if !ok {
			var err error
			free, err = s.ledger.AvailableSeats(ctx, tx, order.TrainNo, order.DepartureDate, detail.SeatType, seg)
			if err != nil {
				return err
			}
			candidates[detail.SeatType] = free
		}

		seat, ok := s.resolver.NextSeat(free, claimed)
		if !ok {
			return models.ErrInsufficientSeats.WithMessage("no %s seat left on %s %s for %s->%s",
				detail.SeatType, order.TrainNo, order.DepartureDate, seg.From, seg.To)
		}
		claimed[seat.Key()] = true

		if err := s.ledger.MarkSegmentBooked(ctx, tx, order.TrainNo, order.DepartureDate, seat, seg, order.ID.String(), now); err != nil {
			return err
		}
		if err := orderRepo.AssignSeat(ctx, detail.ID, seat); err != nil {
			return err
		}

		carNo, seatNo := seat.CarNo, seat.SeatNo
		detail.CarNumber = &carNo
		detail.SeatNumber = &seatNo
		total += detail.Price

		locks = append(locks, models.SeatLock{
			ID:            uuid.NewString(),
			OrderID:       order.ID.String(),
			TrainNo:       order.TrainNo,
			DepartureDate: order.DepartureDate,
			SeatType:      seat.Type,
			CarNo:         seat.CarNo,
			SeatNo:        seat.SeatNo,
			LockedAt:      now,
			ExpiresAt:     expiresAt,
		})
	}

	if err := s.locks.WithTx(tx).Create(ctx, locks); err != nil {
		return err
	}

	ok, err := orderRepo.MarkConfirmedUnpaid(ctx, order.ID, total, expiresAt, now)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidStateTransition.WithMessage("order %s is no longer pending", order.OrderNumber)
	}

	order.Status = models.OrderStatusConfirmedUnpaid
	order.TotalPrice = total
	order.PaymentExpiresAt = &expiresAt
	order.UpdatedAt = now
	return nil
}

// withConflictRetry reruns fn while it fails with ErrConflict
func (s *BookingService) withConflictRetry(ctx context.Context, trainNo string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.rules.MaxConflictRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(logrus.Fields{
				"train_no": trainNo,
				"attempt":  attempt,
			}).Debug("Retrying booking after seat conflict")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.rules.RetryBackoff):
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, models.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BookingService) logBookingFailure(userID uuid.UUID, order *models.Order, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"train_no": order.TrainNo,
		"date":     order.DepartureDate,
		"segment":  order.DepartureStation + "->" + order.ArrivalStation,
	})
	if be, ok := models.AsBookingError(err); ok {
		entry.WithField("code", be.Code).Info("Booking rejected")
		return
	}
	entry.WithError(err).Error("Booking failed")
}

func bookingResult(order *models.Order, details []models.OrderDetail) *models.BookingResult {
	return &models.BookingResult{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		PaymentExpiresAt: order.PaymentExpiresAt,
		TotalPrice:       order.TotalPrice,
		Seats:            details,
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
