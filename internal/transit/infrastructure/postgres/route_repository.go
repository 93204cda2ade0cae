package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

const defaultRoutesTable = "bus_routes"

// RouteRepository is a Postgres implementation for routes.
type RouteRepository struct {
	db    DBTX
	table string
}

// NewRouteRepository constructs a repository.
func NewRouteRepository(db DBTX, opts ...RouteOption) *RouteRepository {
	repo := &RouteRepository{db: db, table: defaultRoutesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RouteOption configures the repository.
type RouteOption func(*RouteRepository)

// WithRouteTable overrides the default table name.
func WithRouteTable(table string) RouteOption {
	return func(repo *RouteRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a route by id.
func (r *RouteRepository) Get(ctx context.Context, id string) (*transit.Route, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("route repo: nil db")
	}
	if id == "" {
		return nil, errors.New("route repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, category, direction, start_stop, end_stop
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var route transit.Route
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&route.ID,
		&route.Name,
		&route.Category,
		&route.Direction,
		&route.StartStop,
		&route.EndStop,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &route, nil
}

// List returns all routes ordered by id.
func (r *RouteRepository) List(ctx context.Context) ([]transit.Route, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("route repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, category, direction, start_stop, end_stop
FROM %s
ORDER BY id`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []transit.Route
	for rows.Next() {
		var route transit.Route
		if err := rows.Scan(
			&route.ID,
			&route.Name,
			&route.Category,
			&route.Direction,
			&route.StartStop,
			&route.EndStop,
		); err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// Save upserts a route.
func (r *RouteRepository) Save(ctx context.Context, route *transit.Route) error {
	if r == nil || r.db == nil {
		return errors.New("route repo: nil db")
	}
	if route == nil {
		return errors.New("route repo: nil route")
	}
	if err := route.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, name, category, direction, start_stop, end_stop)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	direction = EXCLUDED.direction,
	start_stop = EXCLUDED.start_stop,
	end_stop = EXCLUDED.end_stop`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		route.ID,
		route.Name,
		route.Category,
		route.Direction,
		route.StartStop,
		route.EndStop,
	)
	return err
}
