package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

const defaultObservationsTable = "vehicle_observations"

// ObservationRepository is a Postgres implementation of the append-only
// observation store. The bigserial id column doubles as the insertion-order
// tie-break for the latest-per-vehicle query.
type ObservationRepository struct {
	db    DBTX
	table string
}

// NewObservationRepository constructs a repository.
func NewObservationRepository(db DBTX, opts ...ObservationOption) *ObservationRepository {
	repo := &ObservationRepository{db: db, table: defaultObservationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ObservationOption configures the repository.
type ObservationOption func(*ObservationRepository)

// WithObservationTable overrides the default table name.
func WithObservationTable(table string) ObservationOption {
	return func(repo *ObservationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends observations. Rows are never updated.
func (r *ObservationRepository) Insert(ctx context.Context, obs []transit.VehicleObservation) error {
	if r == nil || r.db == nil {
		return errors.New("observation repo: nil db")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (vehicle_id, route_id, latitude, longitude, speed_kmh, congestion, next_stop_id, eta_minutes, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, r.table)

	for _, o := range obs {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, err := r.db.ExecContext(
			ctx,
			query,
			o.VehicleID,
			o.RouteID,
			o.Latitude,
			o.Longitude,
			o.SpeedKMH,
			o.Congestion,
			o.NextStopID,
			o.ETAMinutes,
			o.ObservedAt.UTC(),
		); err != nil {
			return err
		}
	}
	return nil
}

// LatestByRoute returns the newest observation per vehicle on the route.
// Ties on observed_at resolve to the later-inserted row.
func (r *ObservationRepository) LatestByRoute(ctx context.Context, routeID string) ([]transit.VehicleObservation, error) {
	if routeID == "" {
		return nil, errors.New("observation repo: empty route id")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT ON (vehicle_id)
	id, vehicle_id, route_id, latitude, longitude, speed_kmh, congestion, next_stop_id, eta_minutes, observed_at
FROM %s
WHERE route_id = $1
ORDER BY vehicle_id, observed_at DESC, id DESC`, r.table)

	return r.queryObservations(ctx, query, routeID)
}

// LatestByVehicle returns the newest observation for one vehicle, or nil.
func (r *ObservationRepository) LatestByVehicle(ctx context.Context, vehicleID string) (*transit.VehicleObservation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}
	if vehicleID == "" {
		return nil, errors.New("observation repo: empty vehicle id")
	}

	query := fmt.Sprintf(`
SELECT id, vehicle_id, route_id, latitude, longitude, speed_kmh, congestion, next_stop_id, eta_minutes, observed_at
FROM %s
WHERE vehicle_id = $1
ORDER BY observed_at DESC, id DESC
LIMIT 1`, r.table)

	obs, err := r.queryObservations(ctx, query, vehicleID)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, nil
	}
	return &obs[0], nil
}

// ByRouteSince returns observations on the route at or after the given time.
func (r *ObservationRepository) ByRouteSince(ctx context.Context, routeID string, since time.Time) ([]transit.VehicleObservation, error) {
	if routeID == "" {
		return nil, errors.New("observation repo: empty route id")
	}

	query := fmt.Sprintf(`
SELECT id, vehicle_id, route_id, latitude, longitude, speed_kmh, congestion, next_stop_id, eta_minutes, observed_at
FROM %s
WHERE route_id = $1 AND observed_at >= $2
ORDER BY observed_at, id`, r.table)

	return r.queryObservations(ctx, query, routeID, since.UTC())
}

func (r *ObservationRepository) queryObservations(ctx context.Context, query string, args ...any) ([]transit.VehicleObservation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("observation repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []transit.VehicleObservation
	for rows.Next() {
		var o transit.VehicleObservation
		var lat, lon, speed sql.NullFloat64
		if err := rows.Scan(
			&o.ID,
			&o.VehicleID,
			&o.RouteID,
			&lat,
			&lon,
			&speed,
			&o.Congestion,
			&o.NextStopID,
			&o.ETAMinutes,
			&o.ObservedAt,
		); err != nil {
			return nil, err
		}
		if lat.Valid {
			o.Latitude = &lat.Float64
		}
		if lon.Valid {
			o.Longitude = &lon.Float64
		}
		if speed.Valid {
			o.SpeedKMH = &speed.Float64
		}
		o.ObservedAt = o.ObservedAt.UTC()
		obs = append(obs, o)
	}
	return obs, rows.Err()
}
