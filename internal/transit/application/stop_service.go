package application

import (
	"context"
	"errors"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// StopService serves stop master-data queries.
type StopService struct {
	stops transit.StopRepository
}

// NewStopService constructs the service.
func NewStopService(stops transit.StopRepository) (*StopService, error) {
	if stops == nil {
		return nil, errors.New("stops: nil repository")
	}
	return &StopService{stops: stops}, nil
}

// Get returns one stop by id, or nil.
func (s *StopService) Get(ctx context.Context, id string) (*transit.Stop, error) {
	return s.stops.Get(ctx, id)
}

// SearchByName returns stops whose name contains the keyword.
func (s *StopService) SearchByName(ctx context.Context, name string) ([]transit.Stop, error) {
	return s.stops.SearchByName(ctx, name)
}

// ByDistrict returns stops in an administrative district.
func (s *StopService) ByDistrict(ctx context.Context, district string) ([]transit.Stop, error) {
	return s.stops.ByDistrict(ctx, district)
}

// Nearby returns stops within radiusKm of the point. A linear scan over the
// master data is enough at this fleet size; stops without a coordinate fix
// never match.
func (s *StopService) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]transit.Stop, error) {
	if radiusKm <= 0 {
		radiusKm = 1
	}
	all, err := s.stops.List(ctx)
	if err != nil {
		return nil, err
	}
	var nearby []transit.Stop
	for _, stop := range all {
		if stop.DistanceKm(lat, lon) <= radiusKm {
			nearby = append(nearby, stop)
		}
	}
	return nearby, nil
}
