package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/EILE23/BusTrackr/internal/observability/metrics"
	"github.com/EILE23/BusTrackr/internal/provider"
	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// ProviderAPI is the upstream surface the sync pipeline consumes. A failed
// call and an empty result are both an empty slice; pass-level failure
// handling is therefore "zero work until the next tick".
type ProviderAPI interface {
	StationsByName(ctx context.Context, name string) []provider.StationInfo
	PositionsByRoute(ctx context.Context, routeID string) []provider.PositionInfo
	ArrivalsByStation(ctx context.Context, stationID string) []provider.ArrivalInfo
}

const (
	kindStations  = "stations"
	kindPositions = "positions"
	kindArrivals  = "arrivals"
)

// SyncService runs one fetch-normalize-persist pass per entity kind. Every
// item is processed inside its own failure boundary: one bad record is
// logged and counted, and its siblings still land.
type SyncService struct {
	api          ProviderAPI
	stops        transit.StopRepository
	observations transit.ObservationRepository
	arrivals     transit.ArrivalRepository
	logger       *log.Logger
	now          func() time.Time
	newID        func() string
}

// NewSyncService constructs the orchestrator.
func NewSyncService(
	api ProviderAPI,
	stops transit.StopRepository,
	observations transit.ObservationRepository,
	arrivals transit.ArrivalRepository,
	logger *log.Logger,
	opts ...SyncOption,
) (*SyncService, error) {
	if api == nil {
		return nil, errors.New("sync: nil provider api")
	}
	if stops == nil || observations == nil || arrivals == nil {
		return nil, errors.New("sync: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &SyncService{
		api:          api,
		stops:        stops,
		observations: observations,
		arrivals:     arrivals,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SyncOption configures the service.
type SyncOption func(*SyncService)

// WithClock overrides the observation clock.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDFactory overrides prediction id generation.
func WithIDFactory(newID func() string) SyncOption {
	return func(s *SyncService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// SyncStations upserts every station whose name matches the area term.
// Station identity is stable across polls, so an existing row is loaded and
// mutated in place rather than blindly inserted.
func (s *SyncService) SyncStations(ctx context.Context, area string) int {
	stations := s.api.StationsByName(ctx, area)
	if len(stations) == 0 {
		metrics.ObserveSyncPass(kindStations, metrics.ResultError)
		return 0
	}

	stored, failed := 0, 0
	for _, info := range stations {
		if err := s.syncStation(ctx, info); err != nil {
			failed++
			s.logger.Printf("sync: station failed: id=%s err=%v", info.StID, err)
			continue
		}
		stored++
	}

	metrics.ObserveSyncPass(kindStations, metrics.ResultSuccess)
	metrics.AddSyncItems(kindStations, metrics.ResultSuccess, stored)
	metrics.AddSyncItems(kindStations, metrics.ResultError, failed)
	s.logger.Printf("sync: stations done: area=%s stored=%d failed=%d", area, stored, failed)
	return stored
}

func (s *SyncService) syncStation(ctx context.Context, info provider.StationInfo) error {
	if info.StID == "" {
		return errors.New("sync: station without id")
	}

	stop, err := s.stops.Get(ctx, info.StID)
	if err != nil {
		return err
	}
	if stop == nil {
		stop = &transit.Stop{ID: info.StID}
	}

	stop.Name = info.StNm
	stop.Direction = info.Direction
	if lon, ok := provider.ParseCoordinate(info.PosX); ok {
		if lat, ok := provider.ParseCoordinate(info.PosY); ok {
			stop.Longitude = &lon
			stop.Latitude = &lat
		}
	}

	return s.stops.Save(ctx, stop)
}

// SyncPositions appends one observation per live vehicle on the route.
func (s *SyncService) SyncPositions(ctx context.Context, routeID string) int {
	positions := s.api.PositionsByRoute(ctx, routeID)
	if len(positions) == 0 {
		metrics.ObserveSyncPass(kindPositions, metrics.ResultError)
		return 0
	}

	observedAt := s.now()
	stored, failed := 0, 0
	for _, info := range positions {
		obs := s.buildObservation(info, routeID, observedAt)
		if err := s.observations.Insert(ctx, []transit.VehicleObservation{obs}); err != nil {
			failed++
			s.logger.Printf("sync: position failed: vehicle=%s route=%s err=%v", info.PlateNo, routeID, err)
			continue
		}
		stored++
	}

	metrics.ObserveSyncPass(kindPositions, metrics.ResultSuccess)
	metrics.AddSyncItems(kindPositions, metrics.ResultSuccess, stored)
	metrics.AddSyncItems(kindPositions, metrics.ResultError, failed)
	return stored
}

func (s *SyncService) buildObservation(info provider.PositionInfo, routeID string, observedAt time.Time) transit.VehicleObservation {
	obs := transit.VehicleObservation{
		VehicleID:  info.PlateNo,
		RouteID:    info.BusRouteID,
		Congestion: provider.ClassifyCongestion(info.Congestion),
		NextStopID: info.StationID,
		ObservedAt: observedAt,
	}
	if obs.RouteID == "" {
		obs.RouteID = routeID
	}
	// A bad coordinate drops only the fix, never the observation.
	if lon, ok := provider.ParseCoordinate(info.PosX); ok {
		if lat, ok := provider.ParseCoordinate(info.PosY); ok {
			obs.Longitude = &lon
			obs.Latitude = &lat
		}
	}
	return obs
}

// SyncArrivals appends up to two predictions per arrival record for the
// stop. The stop must already exist; predictions for unknown stops are
// dropped with the pass.
func (s *SyncService) SyncArrivals(ctx context.Context, stationID string) int {
	stop, err := s.stops.Get(ctx, stationID)
	if err != nil {
		s.logger.Printf("sync: arrival stop lookup failed: station=%s err=%v", stationID, err)
		metrics.ObserveSyncPass(kindArrivals, metrics.ResultError)
		return 0
	}
	if stop == nil {
		s.logger.Printf("sync: arrivals skipped, unknown stop: station=%s", stationID)
		metrics.ObserveSyncPass(kindArrivals, metrics.ResultError)
		return 0
	}

	records := s.api.ArrivalsByStation(ctx, stationID)
	if len(records) == 0 {
		metrics.ObserveSyncPass(kindArrivals, metrics.ResultError)
		return 0
	}

	updatedAt := s.now()
	stored, failed := 0, 0
	for _, info := range records {
		for _, prediction := range s.buildPredictions(info, stop.ID, updatedAt) {
			if err := s.arrivals.Insert(ctx, []transit.ArrivalPrediction{prediction}); err != nil {
				failed++
				s.logger.Printf("sync: arrival failed: stop=%s route=%s err=%v", stop.ID, info.BusRouteID, err)
				continue
			}
			stored++
		}
	}

	metrics.ObserveSyncPass(kindArrivals, metrics.ResultSuccess)
	metrics.AddSyncItems(kindArrivals, metrics.ResultSuccess, stored)
	metrics.AddSyncItems(kindArrivals, metrics.ResultError, failed)
	return stored
}

// buildPredictions flattens the feed's numbered first/second-bus fields. A
// record with no arrmsgSec for a slot has no bus approaching in that slot.
func (s *SyncService) buildPredictions(info provider.ArrivalInfo, stopID string, updatedAt time.Time) []transit.ArrivalPrediction {
	var predictions []transit.ArrivalPrediction
	if info.ArrSec1 != "" {
		predictions = append(predictions, transit.ArrivalPrediction{
			ID:             s.newID(),
			RouteID:        info.BusRouteID,
			StopID:         stopID,
			Minutes:        provider.SecondsToMinutes(info.ArrSec1),
			RemainingStops: provider.ParseStopCount(info.Remain1),
			Congestion:     transit.CongestionLow,
			PlateNumber:    info.PlateNo1,
			UpdatedAt:      updatedAt,
		})
	}
	if info.ArrSec2 != "" {
		predictions = append(predictions, transit.ArrivalPrediction{
			ID:             s.newID(),
			RouteID:        info.BusRouteID,
			StopID:         stopID,
			Minutes:        provider.SecondsToMinutes(info.ArrSec2),
			RemainingStops: provider.ParseStopCount(info.Remain2),
			Congestion:     transit.CongestionLow,
			PlateNumber:    info.PlateNo2,
			UpdatedAt:      updatedAt,
		})
	}
	return predictions
}
