package transit

import (
	"context"
	"errors"
	"math"
)

// Stop is a bus stop upserted from the station master-data sync. Latitude
// and longitude are pointers because the upstream feed routinely ships
// malformed coordinates; a stop without a fix is still a valid stop.
type Stop struct {
	ID        string
	Name      string
	Latitude  *float64
	Longitude *float64
	Direction string
	District  string
	RouteID   string
}

// Validate checks stop invariants.
func (s Stop) Validate() error {
	if s.ID == "" {
		return errors.New("stop: empty id")
	}
	if s.Name == "" {
		return errors.New("stop: empty name")
	}
	return nil
}

// HasPosition reports whether both coordinates are set.
func (s Stop) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil
}

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance from the stop to the given
// point, or +Inf when the stop has no coordinates.
func (s Stop) DistanceKm(lat, lon float64) float64 {
	if !s.HasPosition() {
		return math.Inf(1)
	}
	latDist := toRadians(*s.Latitude - lat)
	lonDist := toRadians(*s.Longitude - lon)
	a := math.Sin(latDist/2)*math.Sin(latDist/2) +
		math.Cos(toRadians(lat))*math.Cos(toRadians(*s.Latitude))*
			math.Sin(lonDist/2)*math.Sin(lonDist/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// StopRepository manages stop persistence.
type StopRepository interface {
	Get(ctx context.Context, id string) (*Stop, error)
	List(ctx context.Context) ([]Stop, error)
	SearchByName(ctx context.Context, name string) ([]Stop, error)
	ByDistrict(ctx context.Context, district string) ([]Stop, error)
	Save(ctx context.Context, stop *Stop) error
}
