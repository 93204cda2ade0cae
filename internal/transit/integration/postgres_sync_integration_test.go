package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
	transitpostgres "github.com/EILE23/BusTrackr/internal/transit/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestStopUpsertAndObservationLog_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "bus_stops") || !tableExists(db, "vehicle_observations") {
		t.Skip("transit tables missing; run migrations")
	}

	ctx := context.Background()
	stopID := "it-23001"
	routeID := "it-472"
	vehicleID := "it-서울70사1234"

	_, _ = db.ExecContext(ctx, "DELETE FROM bus_stops WHERE id = $1", stopID)
	_, _ = db.ExecContext(ctx, "DELETE FROM vehicle_observations WHERE route_id = $1", routeID)

	stops := transitpostgres.NewStopRepository(db)
	observations := transitpostgres.NewObservationRepository(db)

	lat, lon := 37.5172, 127.0473
	stop := &transit.Stop{ID: stopID, Name: "강남구청", Latitude: &lat, Longitude: &lon, District: "강남구"}
	if err := stops.Save(ctx, stop); err != nil {
		t.Fatalf("save stop: %v", err)
	}

	// Saving the same id again must rewrite the row, not add one.
	stop.Name = "강남구청.중앙차로"
	if err := stops.Save(ctx, stop); err != nil {
		t.Fatalf("re-save stop: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bus_stops WHERE id = $1", stopID).Scan(&count); err != nil {
		t.Fatalf("count stops: %v", err)
	}
	if count != 1 {
		t.Fatalf("stop rows = %d, want 1 after upsert", count)
	}
	got, err := stops.Get(ctx, stopID)
	if err != nil {
		t.Fatalf("get stop: %v", err)
	}
	if got == nil || got.Name != "강남구청.중앙차로" {
		t.Fatalf("stop after upsert = %v", got)
	}

	// Observations are an append-only log: same vehicle, two rows.
	base := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	obs := []transit.VehicleObservation{
		{VehicleID: vehicleID, RouteID: routeID, Latitude: &lat, Longitude: &lon, Congestion: transit.CongestionLow, ObservedAt: base},
	}
	if err := observations.Insert(ctx, obs); err != nil {
		t.Fatalf("insert first observation: %v", err)
	}
	obs[0].ObservedAt = base.Add(30 * time.Second)
	obs[0].Congestion = transit.CongestionHigh
	if err := observations.Insert(ctx, obs); err != nil {
		t.Fatalf("insert second observation: %v", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicle_observations WHERE route_id = $1", routeID).Scan(&count); err != nil {
		t.Fatalf("count observations: %v", err)
	}
	if count != 2 {
		t.Fatalf("observation rows = %d, want 2 (append-only)", count)
	}

	latest, err := observations.LatestByRoute(ctx, routeID)
	if err != nil {
		t.Fatalf("latest by route: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("latest rows = %d, want 1 per vehicle", len(latest))
	}
	if latest[0].Congestion != transit.CongestionHigh {
		t.Fatalf("latest congestion = %s, want the newer row", latest[0].Congestion)
	}
}

func TestLatestTieBreak_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "vehicle_observations") {
		t.Skip("vehicle_observations missing; run migrations")
	}

	ctx := context.Background()
	routeID := "it-tie-472"
	vehicleID := "it-tie-vehicle"
	_, _ = db.ExecContext(ctx, "DELETE FROM vehicle_observations WHERE route_id = $1", routeID)

	observations := transitpostgres.NewObservationRepository(db)

	// Two rows at the identical timestamp: the later insert must win.
	ts := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	first := []transit.VehicleObservation{{VehicleID: vehicleID, RouteID: routeID, Congestion: transit.CongestionLow, ObservedAt: ts}}
	if err := observations.Insert(ctx, first); err != nil {
		t.Fatalf("insert first: %v", err)
	}
	second := []transit.VehicleObservation{{VehicleID: vehicleID, RouteID: routeID, Congestion: transit.CongestionMedium, ObservedAt: ts}}
	if err := observations.Insert(ctx, second); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	latest, err := observations.LatestByRoute(ctx, routeID)
	if err != nil {
		t.Fatalf("latest by route: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("latest rows = %d, want 1", len(latest))
	}
	if latest[0].Congestion != transit.CongestionMedium {
		t.Fatalf("tie-break picked congestion = %s, want the later insert", latest[0].Congestion)
	}
}

func TestArrivalRetention_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "arrival_predictions") {
		t.Skip("arrival_predictions missing; run migrations")
	}

	ctx := context.Background()
	stopID := "it-ret-23001"
	_, _ = db.ExecContext(ctx, "DELETE FROM arrival_predictions WHERE stop_id = $1", stopID)

	arrivals := transitpostgres.NewArrivalRepository(db)

	now := time.Now().UTC()
	predictions := []transit.ArrivalPrediction{
		{ID: "it-ret-old", RouteID: "472", StopID: stopID, Minutes: 3, Congestion: transit.CongestionLow, UpdatedAt: now.Add(-8 * time.Hour)},
		{ID: "it-ret-new", RouteID: "472", StopID: stopID, Minutes: 5, Congestion: transit.CongestionLow, UpdatedAt: now},
	}
	if err := arrivals.Insert(ctx, predictions); err != nil {
		t.Fatalf("insert predictions: %v", err)
	}

	removed, err := arrivals.DeleteOlderThan(ctx, now.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("retention sweep: %v", err)
	}
	if removed < 1 {
		t.Fatalf("removed = %d, want at least the stale row", removed)
	}

	remaining, err := arrivals.ByStop(ctx, stopID)
	if err != nil {
		t.Fatalf("by stop: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "it-ret-new" {
		t.Fatalf("remaining = %v, want only the fresh prediction", remaining)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
