package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// SeatsPerCar is the number of seats generated for each car
const SeatsPerCar = 20

// SeatLayout is the number of seats of each type carried by a train
type SeatLayout map[models.SeatType]int

// DefaultSeatLayout returns the standard consist
func DefaultSeatLayout() SeatLayout {
	return SeatLayout{
		models.SeatTypeBusiness:    10,
		models.SeatTypeFirstClass:  40,
		models.SeatTypeSecondClass: 80,
		models.SeatTypeSoftSleeper: 30,
		models.SeatTypeHardSleeper: 60,
	}
}

// SeatMaterializer creates the per-date seat ledger for train runs
type SeatMaterializer struct {
	db       database.DB
	seats    *database.SeatLedgerRepository
	trains   *database.TrainRepository
	location *time.Location
	opts     options
	logger   *logrus.Logger
}

// NewSeatMaterializer creates a new SeatMaterializer
func NewSeatMaterializer(db database.DB, location *time.Location, logger *logrus.Logger, opts ...Option) *SeatMaterializer {
	if location == nil {
		location = time.Local
	}
	return &SeatMaterializer{
		db:       db,
		seats:    database.NewSeatLedgerRepository(db),
		trains:   database.NewTrainRepository(db),
		location: location,
		opts:     applyOptions(opts),
		logger:   logger,
	}
}

// MaterializeDate copies a template run of the train onto targetDate with
// every seat free. A date that already has seat rows is left untouched.
func (m *SeatMaterializer) MaterializeDate(ctx context.Context, trainNo, templateDate, targetDate string) (int64, error) {
	if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		return 0, models.ErrValidation.WithMessage("invalid date %q, expected YYYY-MM-DD", targetDate)
	}

	var copied int64
	err := database.RunInTx(ctx, m.db, func(tx *sqlx.Tx) error {
		seats := m.seats.WithTx(tx)
		trains := m.trains.WithTx(tx)

		existing, err := seats.CountForDate(ctx, trainNo, targetDate)
		if err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		template, err := trains.GetTrain(ctx, trainNo, templateDate)
		if err != nil {
			return err
		}
		if template == nil {
			return models.ErrTrainNotFound.WithMessage("train %s has no run on %s", trainNo, templateDate)
		}

		run, err := trains.GetTrain(ctx, trainNo, targetDate)
		if err != nil {
			return err
		}
		if run == nil {
			next := *template
			next.DepartureDate = targetDate
			if err := trains.CreateTrain(ctx, &next); err != nil {
				return err
			}
		}

		copied, err = seats.CopyFromTemplate(ctx, trainNo, templateDate, targetDate)
		return err
	})
	if err != nil {
		return 0, err
	}

	if copied > 0 {
		m.logger.WithFields(logrus.Fields{
			"train_no": trainNo,
			"template": templateDate,
			"date":     targetDate,
			"rows":     copied,
		}).Info("Materialized seat ledger")
	}
	return copied, nil
}

// MaterializeAhead materializes today+days for every known train, using each
// train's earliest run as the template. Failures are logged per train.
func (m *SeatMaterializer) MaterializeAhead(ctx context.Context, days int) (int64, error) {
	templates, err := m.trains.ListTemplates(ctx)
	if err != nil {
		return 0, err
	}

	target := m.opts.clock().In(m.location).AddDate(0, 0, days).Format("2006-01-02")

	var total int64
	for _, t := range templates {
		n, err := m.MaterializeDate(ctx, t.TrainNo, t.DepartureDate, target)
		if err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"train_no": t.TrainNo,
				"date":     target,
			}).Error("Failed to materialize train")
			continue
		}
		total += n
	}
	return total, nil
}

// SeedTrain creates a fresh train run with its stops and one free record per
// adjacent leg per seat. Existing stops must match the given sequence.
func (m *SeatMaterializer) SeedTrain(ctx context.Context, train *models.Train, stations []string, layout SeatLayout) (int64, error) {
	trainNo, err := trainNumbers.Validate(train.TrainNo)
	if err != nil {
		return 0, models.ErrValidation.WithMessage("%v", err)
	}
	train.TrainNo = trainNo
	if len(stations) < 2 {
		return 0, models.ErrValidation.WithMessage("a train needs at least two stations")
	}
	if _, err := time.Parse("2006-01-02", train.DepartureDate); err != nil {
		return 0, models.ErrValidation.WithMessage("invalid date %q, expected YYYY-MM-DD", train.DepartureDate)
	}
	if layout == nil {
		layout = DefaultSeatLayout()
	}
	for seatType, count := range layout {
		if !seatType.IsValid() || count < 0 {
			return 0, models.ErrValidation.WithMessage("invalid seat layout entry %s=%d", seatType, count)
		}
	}
	if train.Origin == "" {
		train.Origin = stations[0]
	}
	if train.Destination == "" {
		train.Destination = stations[len(stations)-1]
	}

	var inserted int64
	err = database.RunInTx(ctx, m.db, func(tx *sqlx.Tx) error {
		trains := m.trains.WithTx(tx)

		stops, err := trains.GetStops(ctx, train.TrainNo)
		if err != nil {
			return err
		}
		if len(stops) == 0 {
			newStops := make([]models.TrainStop, len(stations))
			for i, station := range stations {
				newStops[i] = models.TrainStop{TrainNo: train.TrainNo, Seq: i + 1, Station: station}
			}
			if err := trains.CreateStops(ctx, newStops); err != nil {
				return err
			}
		} else if !sameStations(stops, stations) {
			return models.ErrValidation.WithMessage("train %s already has a different stop sequence", train.TrainNo)
		}

		existing, err := trains.GetTrain(ctx, train.TrainNo, train.DepartureDate)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.ErrValidation.WithMessage("train %s already runs on %s", train.TrainNo, train.DepartureDate)
		}
		if err := trains.CreateTrain(ctx, train); err != nil {
			return err
		}

		inserted, err = m.seats.WithTx(tx).InsertSegments(ctx, buildSeatRecords(train, stations, layout))
		return err
	})
	if err != nil {
		return 0, err
	}

	m.logger.WithFields(logrus.Fields{
		"train_no": train.TrainNo,
		"date":     train.DepartureDate,
		"rows":     inserted,
	}).Info("Seeded train")
	return inserted, nil
}

// buildSeatRecords lays seat types out car by car in display order
func buildSeatRecords(train *models.Train, stations []string, layout SeatLayout) []models.SeatSegmentRecord {
	var records []models.SeatSegmentRecord
	car := 0

	for _, seatType := range orderedSeatTypes(layout) {
		count := layout[seatType]
		for i := 0; i < count; i++ {
			if i%SeatsPerCar == 0 {
				car++
			}
			seatNo := fmt.Sprintf("%02d", i%SeatsPerCar+1)
			for leg := 0; leg < len(stations)-1; leg++ {
				records = append(records, models.SeatSegmentRecord{
					TrainNo:       train.TrainNo,
					DepartureDate: train.DepartureDate,
					CarNo:         car,
					SeatNo:        seatNo,
					SeatType:      seatType,
					FromStation:   stations[leg],
					ToStation:     stations[leg+1],
					Status:        models.SeatStatusAvailable,
				})
			}
		}
	}
	return records
}

func orderedSeatTypes(layout SeatLayout) []models.SeatType {
	var types []models.SeatType
	for _, t := range models.AllSeatTypes {
		if layout[t] > 0 {
			types = append(types, t)
		}
	}
	return types
}

func sameStations(stops []models.TrainStop, stations []string) bool {
	if len(stops) != len(stations) {
		return false
	}
	sorted := make([]models.TrainStop, len(stops))
	copy(sorted, stops)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	for i, stop := range sorted {
		if stop.Station != stations[i] {
			return false
		}
	}
	return true
}
