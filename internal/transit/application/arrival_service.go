package application

import (
	"context"
	"errors"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// ArrivalService serves arrival prediction queries.
type ArrivalService struct {
	arrivals transit.ArrivalRepository
}

// NewArrivalService constructs the service.
func NewArrivalService(arrivals transit.ArrivalRepository) (*ArrivalService, error) {
	if arrivals == nil {
		return nil, errors.New("arrivals: nil repository")
	}
	return &ArrivalService{arrivals: arrivals}, nil
}

// ByStop returns predictions for a stop, newest first.
func (s *ArrivalService) ByStop(ctx context.Context, stopID string) ([]transit.ArrivalPrediction, error) {
	return s.arrivals.ByStop(ctx, stopID)
}

// ByRoute returns predictions for a route, newest first.
func (s *ArrivalService) ByRoute(ctx context.Context, routeID string) ([]transit.ArrivalPrediction, error) {
	return s.arrivals.ByRoute(ctx, routeID)
}
