package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/EILE23/BusTrackr/internal/broadcast"
	"github.com/EILE23/BusTrackr/internal/config"
	"github.com/EILE23/BusTrackr/internal/observability/metrics"
	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// Syncer runs one reconciliation pass per entity kind.
type Syncer interface {
	SyncStations(ctx context.Context, area string) int
	SyncPositions(ctx context.Context, routeID string) int
	SyncArrivals(ctx context.Context, stationID string) int
}

// Health reports upstream liveness.
type Health interface {
	Healthy(ctx context.Context) bool
}

// RouteLister loads the active route set a position tick fans out over.
type RouteLister interface {
	List(ctx context.Context) ([]transit.Route, error)
}

// PositionReader re-queries the freshly synced latest view for a route.
type PositionReader interface {
	LatestByRoute(ctx context.Context, routeID string) ([]transit.VehicleObservation, error)
	InvalidateRoute(ctx context.Context, routeID string)
}

// ArrivalStore reads back fresh predictions and expires superseded ones.
type ArrivalStore interface {
	ByStop(ctx context.Context, stopID string) ([]transit.ArrivalPrediction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler drives the four periodic jobs, each on its own clock. A job
// never overlaps itself: ticks run synchronously in the job's loop, so a
// slow tick delays the next firing instead of racing it.
type Scheduler struct {
	sync      Syncer
	health    Health
	routes    RouteLister
	positions PositionReader
	arrivals  ArrivalStore
	publisher broadcast.Publisher
	watch     config.Watch
	logger    *log.Logger
	now       func() time.Time
}

// New constructs a scheduler.
func New(
	syncer Syncer,
	health Health,
	routes RouteLister,
	positions PositionReader,
	arrivals ArrivalStore,
	publisher broadcast.Publisher,
	watch config.Watch,
	logger *log.Logger,
) (*Scheduler, error) {
	if syncer == nil || health == nil {
		return nil, errors.New("scheduler: nil syncer or health probe")
	}
	if routes == nil || positions == nil || arrivals == nil {
		return nil, errors.New("scheduler: nil reader")
	}
	if publisher == nil {
		return nil, errors.New("scheduler: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		sync:      syncer,
		health:    health,
		routes:    routes,
		positions: positions,
		arrivals:  arrivals,
		publisher: publisher,
		watch:     watch,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start runs all four job loops until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	jobs := []struct {
		name     string
		delay    time.Duration
		interval time.Duration
		tick     func(context.Context)
	}{
		{"positions", s.watch.PositionDelay, s.watch.PositionInterval, s.positionsTick},
		{"arrivals", s.watch.ArrivalDelay, s.watch.ArrivalInterval, s.arrivalsTick},
		{"stations", s.watch.StationDelay, s.watch.StationInterval, s.stationsTick},
		{"health", 0, s.watch.HealthInterval, s.healthTick},
	}

	for _, job := range jobs {
		wg.Add(1)
		go func(name string, delay, interval time.Duration, tick func(context.Context)) {
			defer wg.Done()
			s.runJob(ctx, name, delay, interval, tick)
		}(job.name, job.delay, job.interval, job.tick)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, name string, delay, interval time.Duration, tick func(context.Context)) {
	if delay > 0 {
		if !sleepCtx(ctx, delay) {
			return
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		started := s.now()
		tick(ctx)
		metrics.ObserveTick(name, s.now().Sub(started))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// positionsTick fans out over every known route concurrently and joins all
// units before the tick counts as done. One route's failure never cancels
// its siblings.
func (s *Scheduler) positionsTick(ctx context.Context) {
	if !s.health.Healthy(ctx) {
		s.logger.Printf("scheduler: upstream unhealthy, skipping position tick")
		return
	}

	routes, err := s.routes.List(ctx)
	if err != nil {
		s.logger.Printf("scheduler: route list failed: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, route := range routes {
		wg.Add(1)
		go func(routeID string) {
			defer wg.Done()
			s.syncAndBroadcastPositions(ctx, routeID)
		}(route.ID)
	}
	wg.Wait()
	s.logger.Printf("scheduler: position tick done: routes=%d", len(routes))
}

func (s *Scheduler) syncAndBroadcastPositions(ctx context.Context, routeID string) {
	s.sync.SyncPositions(ctx, routeID)

	s.positions.InvalidateRoute(ctx, routeID)
	latest, err := s.positions.LatestByRoute(ctx, routeID)
	if err != nil {
		s.logger.Printf("scheduler: latest query failed: route=%s err=%v", routeID, err)
		return
	}
	if len(latest) == 0 {
		return
	}

	if err := s.publisher.Publish(ctx, broadcast.PositionTopic(routeID), latest); err != nil {
		metrics.IncBroadcast("positions", metrics.ResultError)
		s.logger.Printf("scheduler: position broadcast failed: route=%s err=%v", routeID, err)
		return
	}
	metrics.IncBroadcast("positions", metrics.ResultSuccess)
}

// arrivalsTick fans out over the watched station set, then expires
// predictions past the retention window.
func (s *Scheduler) arrivalsTick(ctx context.Context) {
	if !s.health.Healthy(ctx) {
		s.logger.Printf("scheduler: upstream unhealthy, skipping arrival tick")
		return
	}

	var wg sync.WaitGroup
	for _, stationID := range s.watch.Stations {
		wg.Add(1)
		go func(stationID string) {
			defer wg.Done()
			s.syncAndBroadcastArrivals(ctx, stationID)
		}(stationID)
	}
	wg.Wait()

	cutoff := s.now().Add(-s.watch.ArrivalRetention)
	removed, err := s.arrivals.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Printf("scheduler: arrival retention sweep failed: %v", err)
	} else if removed > 0 {
		s.logger.Printf("scheduler: arrival retention sweep removed=%d", removed)
	}
}

func (s *Scheduler) syncAndBroadcastArrivals(ctx context.Context, stationID string) {
	s.sync.SyncArrivals(ctx, stationID)

	arrivals, err := s.arrivals.ByStop(ctx, stationID)
	if err != nil {
		s.logger.Printf("scheduler: arrival query failed: station=%s err=%v", stationID, err)
		return
	}
	if len(arrivals) == 0 {
		return
	}

	if err := s.publisher.Publish(ctx, broadcast.ArrivalTopic(stationID), arrivals); err != nil {
		metrics.IncBroadcast("arrivals", metrics.ResultError)
		s.logger.Printf("scheduler: arrival broadcast failed: station=%s err=%v", stationID, err)
		return
	}
	metrics.IncBroadcast("arrivals", metrics.ResultSuccess)
}

// stationsTick walks the configured areas strictly one at a time with a
// fixed pause, trading latency for upstream rate-limit compliance.
func (s *Scheduler) stationsTick(ctx context.Context) {
	if !s.health.Healthy(ctx) {
		s.logger.Printf("scheduler: upstream unhealthy, skipping station tick")
		return
	}

	for i, area := range s.watch.Areas {
		if i > 0 && !sleepCtx(ctx, s.watch.AreaPause) {
			return
		}
		s.sync.SyncStations(ctx, area)
	}
	s.logger.Printf("scheduler: station tick done: areas=%d", len(s.watch.Areas))
}

// SystemStatus is the payload of the system status topic.
type SystemStatus struct {
	UpstreamHealthy bool      `json:"upstreamHealthy"`
	CheckedAt       time.Time `json:"checkedAt"`
}

func (s *Scheduler) healthTick(ctx context.Context) {
	healthy := s.health.Healthy(ctx)
	metrics.SetUpstreamHealthy(healthy)
	if !healthy {
		s.logger.Printf("scheduler: upstream health check failed")
	}

	status := SystemStatus{UpstreamHealthy: healthy, CheckedAt: s.now()}
	if err := s.publisher.Publish(ctx, broadcast.TopicStatus, status); err != nil {
		metrics.IncBroadcast("status", metrics.ResultError)
		s.logger.Printf("scheduler: status broadcast failed: %v", err)
		return
	}
	metrics.IncBroadcast("status", metrics.ResultSuccess)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
