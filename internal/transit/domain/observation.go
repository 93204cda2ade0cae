package transit

import (
	"context"
	"errors"
	"time"
)

// Congestion is the ordinal passenger-load level reported per vehicle.
type Congestion string

const (
	CongestionLow    Congestion = "LOW"
	CongestionMedium Congestion = "MEDIUM"
	CongestionHigh   Congestion = "HIGH"
)

// VehicleObservation is one time-stamped position fact for a vehicle on a
// route. Observations are append-only: every sync pass inserts new rows and
// the current position of a vehicle is a derived latest-per-vehicle query,
// never a mutated field.
type VehicleObservation struct {
	ID         int64
	VehicleID  string
	RouteID    string
	Latitude   *float64
	Longitude  *float64
	SpeedKMH   *float64
	Congestion Congestion
	NextStopID string
	ETAMinutes int
	ObservedAt time.Time
}

// Validate checks observation invariants.
func (o VehicleObservation) Validate() error {
	if o.VehicleID == "" {
		return errors.New("observation: empty vehicle id")
	}
	if o.RouteID == "" {
		return errors.New("observation: empty route id")
	}
	if o.ObservedAt.IsZero() {
		return errors.New("observation: zero observed_at")
	}
	return nil
}

// ObservationRepository persists vehicle observations and serves the
// latest-per-key read paths used by both the sync pipeline and the read API.
type ObservationRepository interface {
	Insert(ctx context.Context, obs []VehicleObservation) error
	// LatestByRoute returns the most recent observation per vehicle on the
	// route; ties on observed_at resolve by insertion order.
	LatestByRoute(ctx context.Context, routeID string) ([]VehicleObservation, error)
	LatestByVehicle(ctx context.Context, vehicleID string) (*VehicleObservation, error)
	ByRouteSince(ctx context.Context, routeID string, since time.Time) ([]VehicleObservation, error)
}
