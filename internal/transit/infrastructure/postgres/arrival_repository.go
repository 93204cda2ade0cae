package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

const defaultArrivalsTable = "arrival_predictions"

// ArrivalRepository is a Postgres implementation for arrival predictions.
type ArrivalRepository struct {
	db    DBTX
	table string
}

// NewArrivalRepository constructs a repository.
func NewArrivalRepository(db DBTX, opts ...ArrivalOption) *ArrivalRepository {
	repo := &ArrivalRepository{db: db, table: defaultArrivalsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ArrivalOption configures the repository.
type ArrivalOption func(*ArrivalRepository)

// WithArrivalTable overrides the default table name.
func WithArrivalTable(table string) ArrivalOption {
	return func(repo *ArrivalRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends predictions.
func (r *ArrivalRepository) Insert(ctx context.Context, predictions []transit.ArrivalPrediction) error {
	if r == nil || r.db == nil {
		return errors.New("arrival repo: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, route_id, stop_id, minutes, remaining_stops, congestion, plate_number, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table)

	for _, p := range predictions {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(
			ctx,
			query,
			p.ID,
			p.RouteID,
			p.StopID,
			p.Minutes,
			p.RemainingStops,
			p.Congestion,
			p.PlateNumber,
			p.UpdatedAt.UTC(),
		); err != nil {
			return err
		}
	}
	return nil
}

// ByStop returns predictions for a stop, newest first.
func (r *ArrivalRepository) ByStop(ctx context.Context, stopID string) ([]transit.ArrivalPrediction, error) {
	if stopID == "" {
		return nil, errors.New("arrival repo: empty stop id")
	}
	query := fmt.Sprintf(`
SELECT id, route_id, stop_id, minutes, remaining_stops, congestion, plate_number, updated_at
FROM %s
WHERE stop_id = $1
ORDER BY updated_at DESC, minutes`, r.table)
	return r.queryArrivals(ctx, query, stopID)
}

// ByRoute returns predictions for a route, newest first.
func (r *ArrivalRepository) ByRoute(ctx context.Context, routeID string) ([]transit.ArrivalPrediction, error) {
	if routeID == "" {
		return nil, errors.New("arrival repo: empty route id")
	}
	query := fmt.Sprintf(`
SELECT id, route_id, stop_id, minutes, remaining_stops, congestion, plate_number, updated_at
FROM %s
WHERE route_id = $1
ORDER BY updated_at DESC, minutes`, r.table)
	return r.queryArrivals(ctx, query, routeID)
}

// DeleteOlderThan removes predictions last updated before the cutoff and
// returns the number of rows removed.
func (r *ArrivalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("arrival repo: nil db")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ArrivalRepository) queryArrivals(ctx context.Context, query string, args ...any) ([]transit.ArrivalPrediction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("arrival repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []transit.ArrivalPrediction
	for rows.Next() {
		var p transit.ArrivalPrediction
		if err := rows.Scan(
			&p.ID,
			&p.RouteID,
			&p.StopID,
			&p.Minutes,
			&p.RemainingStops,
			&p.Congestion,
			&p.PlateNumber,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.UpdatedAt = p.UpdatedAt.UTC()
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
