package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/rail-booking-backend/internal/models"
)

// TrainRepository reads train runs and their station topology
type TrainRepository struct {
	db sqlx.ExtContext
}

// NewTrainRepository creates a new TrainRepository
func NewTrainRepository(db sqlx.ExtContext) *TrainRepository {
	return &TrainRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *TrainRepository) WithTx(tx *sqlx.Tx) *TrainRepository {
	return &TrainRepository{db: tx}
}

const trainColumns = `train_no, departure_date, train_type, origin, destination, departure_time, arrival_time`

// GetTrain retrieves one run of a train
func (r *TrainRepository) GetTrain(ctx context.Context, trainNo, date string) (*models.Train, error) {
	var train models.Train
	query := `SELECT ` + trainColumns + ` FROM trains WHERE train_no = ? AND departure_date = ?`

	err := sqlx.GetContext(ctx, r.db, &train, r.db.Rebind(query), trainNo, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get train: %w", err)
	}
	return &train, nil
}

// GetStops returns the train's stations in travel order
func (r *TrainRepository) GetStops(ctx context.Context, trainNo string) ([]models.TrainStop, error) {
	var stops []models.TrainStop
	query := `SELECT train_no, seq, station, arrive_time, depart_time FROM train_stops WHERE train_no = ? ORDER BY seq`

	if err := sqlx.SelectContext(ctx, r.db, &stops, r.db.Rebind(query), trainNo); err != nil {
		return nil, fmt.Errorf("failed to get train stops: %w", err)
	}
	return stops, nil
}

// ListTemplates returns, per train number, the earliest scheduled run
func (r *TrainRepository) ListTemplates(ctx context.Context) ([]models.Train, error) {
	var trains []models.Train
	query := `
		SELECT ` + trainColumns + ` FROM trains t
		WHERE departure_date = (SELECT MIN(departure_date) FROM trains m WHERE m.train_no = t.train_no)
		ORDER BY train_no`

	if err := sqlx.SelectContext(ctx, r.db, &trains, query); err != nil {
		return nil, fmt.Errorf("failed to list template trains: %w", err)
	}
	return trains, nil
}

// CreateTrain inserts a train run
func (r *TrainRepository) CreateTrain(ctx context.Context, train *models.Train) error {
	query := `INSERT INTO trains (` + trainColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		train.TrainNo, train.DepartureDate, train.TrainType, train.Origin,
		train.Destination, train.DepartureTime, train.ArrivalTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create train: %w", err)
	}
	return nil
}

// CreateStops inserts a train's station sequence
func (r *TrainRepository) CreateStops(ctx context.Context, stops []models.TrainStop) error {
	query := r.db.Rebind(`INSERT INTO train_stops (train_no, seq, station, arrive_time, depart_time) VALUES (?, ?, ?, ?, ?)`)
	for _, stop := range stops {
		if _, err := r.db.ExecContext(ctx, query, stop.TrainNo, stop.Seq, stop.Station, stop.ArriveTime, stop.DepartTime); err != nil {
			return fmt.Errorf("failed to create train stop %s: %w", stop.Station, err)
		}
	}
	return nil
}

// DeleteBeforeDate removes train runs that have already departed
func (r *TrainRepository) DeleteBeforeDate(ctx context.Context, date string) (int64, error) {
	query := `DELETE FROM trains WHERE departure_date < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete past trains: %w", err)
	}
	return result.RowsAffected()
}
