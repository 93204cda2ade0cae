package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

const latestCacheTTL = 25 * time.Second

// LocationService serves the derived position read paths. When a Redis
// client is present, latest-per-route snapshots are cached just under the
// position sync cadence; the service works identically without one.
type LocationService struct {
	observations transit.ObservationRepository
	cache        *redis.Client
	logger       *log.Logger
}

// NewLocationService constructs the service. cache may be nil.
func NewLocationService(observations transit.ObservationRepository, cache *redis.Client, logger *log.Logger) (*LocationService, error) {
	if observations == nil {
		return nil, errors.New("locations: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LocationService{observations: observations, cache: cache, logger: logger}, nil
}

// LatestByRoute returns the newest observation per vehicle on the route.
func (s *LocationService) LatestByRoute(ctx context.Context, routeID string) ([]transit.VehicleObservation, error) {
	key := "bustrackr:latest:" + routeID
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
			var obs []transit.VehicleObservation
			if err := json.Unmarshal([]byte(cached), &obs); err == nil {
				return obs, nil
			}
		}
	}

	obs, err := s.observations.LatestByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(obs) > 0 {
		if data, err := json.Marshal(obs); err == nil {
			if err := s.cache.Set(ctx, key, data, latestCacheTTL).Err(); err != nil {
				s.logger.Printf("locations: cache set failed: route=%s err=%v", routeID, err)
			}
		}
	}
	return obs, nil
}

// RecentByRoute returns observations from the last minutesAgo minutes.
func (s *LocationService) RecentByRoute(ctx context.Context, routeID string, minutesAgo int) ([]transit.VehicleObservation, error) {
	if minutesAgo <= 0 {
		minutesAgo = 5
	}
	since := time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute)
	return s.observations.ByRouteSince(ctx, routeID, since)
}

// LatestByVehicle returns the newest observation for one vehicle, or nil.
func (s *LocationService) LatestByVehicle(ctx context.Context, vehicleID string) (*transit.VehicleObservation, error) {
	return s.observations.LatestByVehicle(ctx, vehicleID)
}

// InvalidateRoute drops the cached snapshot for a route.
func (s *LocationService) InvalidateRoute(ctx context.Context, routeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, "bustrackr:latest:"+routeID).Err(); err != nil {
		s.logger.Printf("locations: cache invalidate failed: route=%s err=%v", routeID, err)
	}
}
