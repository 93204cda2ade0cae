package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

const defaultStopsTable = "bus_stops"

// StopRepository is a Postgres implementation for stops.
type StopRepository struct {
	db    DBTX
	table string
}

// NewStopRepository constructs a repository.
func NewStopRepository(db DBTX, opts ...StopOption) *StopRepository {
	repo := &StopRepository{db: db, table: defaultStopsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StopOption configures the repository.
type StopOption func(*StopRepository)

// WithStopTable overrides the default table name.
func WithStopTable(table string) StopOption {
	return func(repo *StopRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a stop by id.
func (r *StopRepository) Get(ctx context.Context, id string) (*transit.Stop, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stop repo: nil db")
	}
	if id == "" {
		return nil, errors.New("stop repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, latitude, longitude, direction, district, route_id
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	stop, err := scanStop(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return stop, nil
}

// List returns all stops ordered by id.
func (r *StopRepository) List(ctx context.Context) ([]transit.Stop, error) {
	query := fmt.Sprintf(`
SELECT id, name, latitude, longitude, direction, district, route_id
FROM %s
ORDER BY id`, r.table)
	return r.queryStops(ctx, query)
}

// SearchByName returns stops whose name contains the given text.
func (r *StopRepository) SearchByName(ctx context.Context, name string) ([]transit.Stop, error) {
	query := fmt.Sprintf(`
SELECT id, name, latitude, longitude, direction, district, route_id
FROM %s
WHERE name LIKE '%%' || $1 || '%%'
ORDER BY id`, r.table)
	return r.queryStops(ctx, query, name)
}

// ByDistrict returns stops in an administrative district.
func (r *StopRepository) ByDistrict(ctx context.Context, district string) ([]transit.Stop, error) {
	query := fmt.Sprintf(`
SELECT id, name, latitude, longitude, direction, district, route_id
FROM %s
WHERE district = $1
ORDER BY id`, r.table)
	return r.queryStops(ctx, query, district)
}

// Save upserts a stop by id.
func (r *StopRepository) Save(ctx context.Context, stop *transit.Stop) error {
	if r == nil || r.db == nil {
		return errors.New("stop repo: nil db")
	}
	if stop == nil {
		return errors.New("stop repo: nil stop")
	}
	if err := stop.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, name, latitude, longitude, direction, district, route_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	direction = EXCLUDED.direction,
	district = EXCLUDED.district,
	route_id = EXCLUDED.route_id`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		stop.ID,
		stop.Name,
		stop.Latitude,
		stop.Longitude,
		stop.Direction,
		stop.District,
		stop.RouteID,
	)
	return err
}

func (r *StopRepository) queryStops(ctx context.Context, query string, args ...any) ([]transit.Stop, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("stop repo: nil db")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []transit.Stop
	for rows.Next() {
		var stop transit.Stop
		var lat, lon sql.NullFloat64
		if err := rows.Scan(
			&stop.ID,
			&stop.Name,
			&lat,
			&lon,
			&stop.Direction,
			&stop.District,
			&stop.RouteID,
		); err != nil {
			return nil, err
		}
		if lat.Valid {
			stop.Latitude = &lat.Float64
		}
		if lon.Valid {
			stop.Longitude = &lon.Float64
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

func scanStop(row *sql.Row) (*transit.Stop, error) {
	var stop transit.Stop
	var lat, lon sql.NullFloat64
	if err := row.Scan(
		&stop.ID,
		&stop.Name,
		&lat,
		&lon,
		&stop.Direction,
		&stop.District,
		&stop.RouteID,
	); err != nil {
		return nil, err
	}
	if lat.Valid {
		stop.Latitude = &lat.Float64
	}
	if lon.Valid {
		stop.Longitude = &lon.Float64
	}
	return &stop, nil
}
