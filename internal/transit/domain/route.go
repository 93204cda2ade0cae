package transit

import (
	"context"
	"errors"
)

// RouteCategory is the service tier of a bus route.
type RouteCategory string

const (
	CategoryExpress  RouteCategory = "EXPRESS"
	CategoryTrunk    RouteCategory = "TRUNK"
	CategoryBranch   RouteCategory = "BRANCH"
	CategoryCircular RouteCategory = "CIRCULAR"
	CategoryWide     RouteCategory = "WIDE"
)

// Valid reports whether the category is one of the known tiers.
func (c RouteCategory) Valid() bool {
	switch c {
	case CategoryExpress, CategoryTrunk, CategoryBranch, CategoryCircular, CategoryWide:
		return true
	}
	return false
}

// Route is immutable reference data describing a bus line. Routes are
// written only by master-data sync and the seed tool, never by the live
// pipeline.
type Route struct {
	ID        string
	Name      string
	Category  RouteCategory
	Direction string
	StartStop string
	EndStop   string
}

// Validate checks route invariants.
func (r Route) Validate() error {
	if r.ID == "" {
		return errors.New("route: empty id")
	}
	if r.Name == "" {
		return errors.New("route: empty name")
	}
	if !r.Category.Valid() {
		return errors.New("route: unknown category")
	}
	return nil
}

// RouteRepository manages route persistence.
type RouteRepository interface {
	Get(ctx context.Context, id string) (*Route, error)
	List(ctx context.Context) ([]Route, error)
	Save(ctx context.Context, route *Route) error
}
