package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/config"
	"github.com/smarttransit/rail-booking-backend/internal/database"
)

// sweepLockKey guards the daily sweep across instances
const sweepLockKey = "rail:cleanup:sweep"

// CleanupSchedule controls when and how much the sweep does
type CleanupSchedule struct {
	Cron                 string        // Daily sweep, seconds precision ("0 0 1 * * *" = 01:00 every day)
	PendingOrderTTL      time.Duration // Pending orders older than this are purged
	PendingSweepInterval time.Duration // How often the pending purge runs on its own
	BatchSize            int           // Overdue orders expired per round; a sweep runs rounds until none are left
	LockTTL              time.Duration // Upper bound on one sweep holding the distributed lock
}

// DefaultCleanupSchedule returns sensible defaults
func DefaultCleanupSchedule() CleanupSchedule {
	return CleanupSchedule{
		Cron:                 "0 0 1 * * *",
		PendingOrderTTL:      10 * time.Minute,
		PendingSweepInterval: time.Minute,
		BatchSize:            100,
		LockTTL:              5 * time.Minute,
	}
}

// CleanupScheduleFromConfig builds a schedule from environment configuration
func CleanupScheduleFromConfig(cfg config.CleanupConfig) CleanupSchedule {
	return CleanupSchedule{
		Cron:                 cfg.Cron,
		PendingOrderTTL:      cfg.PendingOrderTTL,
		PendingSweepInterval: cfg.PendingSweepInterval,
		BatchSize:            cfg.BatchSize,
		LockTTL:              cfg.LockTTL,
	}
}

// SweepReport summarizes one cleanup run
type SweepReport struct {
	StartedAt           time.Time `json:"started_at"`
	Duration            string    `json:"duration"`
	Skipped             bool      `json:"skipped"`
	ExpiredOrders       int       `json:"expired_orders"`
	ExpiredSeatLocks    int64     `json:"expired_seat_locks"`
	CancellationRecords int64     `json:"cancellation_records"`
	SeatSegments        int64     `json:"seat_segments"`
	PastSeatLocks       int64     `json:"past_seat_locks"`
	Trains              int64     `json:"trains"`
	PendingOrders       int64     `json:"pending_orders"`
	MaterializedRows    int64     `json:"materialized_rows"`
	Errors              []string  `json:"errors,omitempty"`
}

// CleanupService releases expired reservations and purges stale rows.
// Every step acts only on rows already past their deadline, so a sweep can
// run alongside live bookings and can be repeated safely.
type CleanupService struct {
	db            database.DB
	lifecycle     *OrderLifecycleService
	orders        *database.OrderRepository
	locks         *database.SeatLockRepository
	cancellations *database.CancellationRepository
	seats         *database.SeatLedgerRepository
	trains        *database.TrainRepository
	schedule      CleanupSchedule
	location      *time.Location
	materializer  *SeatMaterializer
	aheadDays     int
	opts          options
	logger        *logrus.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	lastRun *SweepReport
}

// NewCleanupService creates a new CleanupService
func NewCleanupService(db database.DB, lifecycle *OrderLifecycleService, schedule CleanupSchedule, location *time.Location, logger *logrus.Logger, opts ...Option) *CleanupService {
	if location == nil {
		location = time.Local
	}
	return &CleanupService{
		db:            db,
		lifecycle:     lifecycle,
		orders:        database.NewOrderRepository(db),
		locks:         database.NewSeatLockRepository(db),
		cancellations: database.NewCancellationRepository(db),
		seats:         database.NewSeatLedgerRepository(db),
		trains:        database.NewTrainRepository(db),
		schedule:      schedule,
		location:      location,
		opts:          applyOptions(opts),
		logger:        logger,
		cron:          cron.New(cron.WithSeconds()),
	}
}

// KeepMaterialized makes every sweep extend seat inventory to days ahead of
// today, so a long-running server keeps publishing new dates
func (s *CleanupService) KeepMaterialized(materializer *SeatMaterializer, days int) {
	s.materializer = materializer
	s.aheadDays = days
}

// Start runs a sweep immediately, then schedules the daily sweep and the
// frequent pending-order purge
func (s *CleanupService) Start() error {
	s.logger.Info("Starting cleanup scheduler...")

	if _, err := s.cron.AddFunc(s.schedule.Cron, s.sweepJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup sweep: %w", err)
	}
	s.logger.WithField("cron", s.schedule.Cron).Info("Scheduled: daily cleanup sweep")

	if s.schedule.PendingSweepInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.schedule.PendingSweepInterval)
		if _, err := s.cron.AddFunc(spec, s.pendingJob); err != nil {
			return fmt.Errorf("failed to schedule pending order purge: %w", err)
		}
		s.logger.WithField("every", s.schedule.PendingSweepInterval.String()).Info("Scheduled: pending order purge")
	}

	go s.sweepJob()

	s.cron.Start()
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *CleanupService) Stop() {
	s.logger.Info("Stopping cleanup scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cleanup scheduler stopped")
}

// LastRun returns the report of the most recent sweep, if any
func (s *CleanupService) LastRun() *SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *CleanupService) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.schedule.LockTTL)
	defer cancel()
	s.RunOnce(ctx)
}

func (s *CleanupService) pendingJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.PurgeStalePending(ctx); err != nil {
		s.logger.WithError(err).Error("Pending order purge failed")
	}
}

// RunOnce performs one full sweep. A failing step is logged and recorded in
// the report; the remaining steps still run.
func (s *CleanupService) RunOnce(ctx context.Context) *SweepReport {
	report := &SweepReport{StartedAt: s.opts.clock()}
	start := time.Now()

	unlock, ok, err := s.opts.locker.TryLock(ctx, sweepLockKey, s.schedule.LockTTL)
	if err != nil {
		s.logger.WithError(err).Error("Cleanup sweep could not take its lock")
		report.Errors = append(report.Errors, err.Error())
		return s.finish(report, start)
	}
	if !ok {
		s.logger.Info("Cleanup sweep skipped: another instance is running it")
		report.Skipped = true
		return s.finish(report, start)
	}
	defer unlock()

	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			s.logger.WithError(err).WithField("step", name).Error("Cleanup step failed")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
		}
	}

	step("expire_unpaid_orders", func() error {
		n, err := s.expireAllOverdue(ctx)
		report.ExpiredOrders = n
		return err
	})

	step("expired_seat_locks", func() error {
		n, err := s.locks.DeleteExpired(ctx, s.opts.clock())
		report.ExpiredSeatLocks = n
		return err
	})

	step("cancellation_records", func() error {
		n, err := s.PurgeCancellationRecords(ctx)
		report.CancellationRecords = n
		return err
	})

	step("departed_trains", func() error {
		return s.purgeDepartedTrains(ctx, report)
	})

	step("pending_orders", func() error {
		n, err := s.PurgeStalePending(ctx)
		report.PendingOrders = n
		return err
	})

	if s.materializer != nil && s.aheadDays > 0 {
		step("materialize_ahead", func() error {
			n, err := s.materializer.MaterializeAhead(ctx, s.aheadDays)
			report.MaterializedRows = n
			return err
		})
	}

	return s.finish(report, start)
}

// expireAllOverdue expires overdue orders in rounds of BatchSize. A short
// round means nothing expirable is left; rows that failed are retried by the
// next sweep.
func (s *CleanupService) expireAllOverdue(ctx context.Context) (int, error) {
	batch := s.schedule.BatchSize
	if batch <= 0 {
		batch = DefaultCleanupSchedule().BatchSize
	}

	total := 0
	for {
		n, err := s.lifecycle.ExpireOverdue(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < batch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// PurgeCancellationRecords deletes quota records from previous days
func (s *CleanupService) PurgeCancellationRecords(ctx context.Context) (int64, error) {
	today := calendarDate(s.opts.clock(), s.location)
	return s.cancellations.DeleteBefore(ctx, today)
}

// PurgeStalePending deletes pending orders that were never confirmed
func (s *CleanupService) PurgeStalePending(ctx context.Context) (int64, error) {
	cutoff := s.opts.clock().Add(-s.schedule.PendingOrderTTL)

	var deleted int64
	err := database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		n, err := s.orders.WithTx(tx).DeleteStalePending(ctx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.WithField("count", deleted).Info("Purged stale pending orders")
	}
	return deleted, nil
}

// purgeDepartedTrains removes seat rows, locks and train runs dated before today
func (s *CleanupService) purgeDepartedTrains(ctx context.Context, report *SweepReport) error {
	today := calendarDate(s.opts.clock(), s.location)

	return database.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if report.SeatSegments, err = s.seats.WithTx(tx).DeleteBeforeDate(ctx, today); err != nil {
			return err
		}
		if report.PastSeatLocks, err = s.locks.WithTx(tx).DeleteBeforeDate(ctx, today); err != nil {
			return err
		}
		report.Trains, err = s.trains.WithTx(tx).DeleteBeforeDate(ctx, today)
		return err
	})
}

func (s *CleanupService) finish(report *SweepReport, start time.Time) *SweepReport {
	report.Duration = time.Since(start).String()

	if !report.Skipped {
		s.logger.WithFields(logrus.Fields{
			"expired_orders":       report.ExpiredOrders,
			"expired_seat_locks":   report.ExpiredSeatLocks,
			"cancellation_records": report.CancellationRecords,
			"seat_segments":        report.SeatSegments,
			"trains":               report.Trains,
			"pending_orders":       report.PendingOrders,
			"errors":               len(report.Errors),
			"duration":             report.Duration,
		}).Info("Cleanup sweep finished")
	}

	s.mu.Lock()
	s.lastRun = report
	s.mu.Unlock()
	return report
}
