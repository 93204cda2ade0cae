// Seed loads demo routes, stops, and a little recent traffic into the
// database so the read API and the websocket stream have something to show
// before the first upstream sync completes.
//
//	go run ./tools/seed -dsn "$DATABASE_URL"
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
	transitpostgres "github.com/EILE23/BusTrackr/internal/transit/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dsn := flag.String("dsn", envDefault("DATABASE_URL", os.Getenv("PG_DSN")), "postgres dsn")
	withTraffic := flag.Bool("traffic", true, "also seed sample observations and arrivals")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("-dsn, DATABASE_URL, or PG_DSN is required")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	routes := transitpostgres.NewRouteRepository(db)
	stops := transitpostgres.NewStopRepository(db)
	observations := transitpostgres.NewObservationRepository(db)
	arrivals := transitpostgres.NewArrivalRepository(db)

	for _, route := range seedRoutes() {
		if err := routes.Save(ctx, &route); err != nil {
			log.Fatalf("save route %s: %v", route.ID, err)
		}
	}
	log.Printf("seeded %d routes", len(seedRoutes()))

	for _, stop := range seedStops() {
		if err := stops.Save(ctx, &stop); err != nil {
			log.Fatalf("save stop %s: %v", stop.ID, err)
		}
	}
	log.Printf("seeded %d stops", len(seedStops()))

	if !*withTraffic {
		return
	}

	now := time.Now().UTC()
	obs := seedObservations(now)
	if err := observations.Insert(ctx, obs); err != nil {
		log.Fatalf("insert observations: %v", err)
	}
	log.Printf("seeded %d observations", len(obs))

	predictions := seedArrivals(now)
	if err := arrivals.Insert(ctx, predictions); err != nil {
		log.Fatalf("insert arrivals: %v", err)
	}
	log.Printf("seeded %d arrival predictions", len(predictions))
}

func seedRoutes() []transit.Route {
	return []transit.Route{
		{ID: "472", Name: "472번", Category: transit.CategoryBranch, Direction: "강남 → 시청", StartStop: "강남구청", EndStop: "시청역"},
		{ID: "143", Name: "143번", Category: transit.CategoryTrunk, Direction: "역삼 → 광화문", StartStop: "역삼역", EndStop: "광화문"},
	}
}

func seedStops() []transit.Stop {
	return []transit.Stop{
		stop("23001", "강남구청", 37.5172, 127.0473, "강남구", "472"),
		stop("23002", "시청역", 37.5658, 126.9779, "중구", "472"),
		stop("23003", "역삼역", 37.5006, 127.0366, "강남구", "143"),
		stop("23004", "광화문", 37.5720, 126.9769, "종로구", "143"),
	}
}

func stop(id, name string, lat, lon float64, district, routeID string) transit.Stop {
	return transit.Stop{ID: id, Name: name, Latitude: &lat, Longitude: &lon, District: district, RouteID: routeID}
}

func seedObservations(now time.Time) []transit.VehicleObservation {
	lat1, lon1 := 37.5190, 127.0410
	lat2, lon2 := 37.5102, 127.0388
	speed1, speed2 := 24.5, 31.0
	return []transit.VehicleObservation{
		{
			VehicleID: "서울70사1234", RouteID: "472",
			Latitude: &lat1, Longitude: &lon1, SpeedKMH: &speed1,
			Congestion: transit.CongestionMedium, NextStopID: "23002", ETAMinutes: 4,
			ObservedAt: now.Add(-30 * time.Second),
		},
		{
			VehicleID: "서울70사5678", RouteID: "143",
			Latitude: &lat2, Longitude: &lon2, SpeedKMH: &speed2,
			Congestion: transit.CongestionLow, NextStopID: "23004", ETAMinutes: 9,
			ObservedAt: now.Add(-45 * time.Second),
		},
	}
}

func seedArrivals(now time.Time) []transit.ArrivalPrediction {
	return []transit.ArrivalPrediction{
		{
			ID: uuid.NewString(), RouteID: "472", StopID: "23002",
			Minutes: 4, RemainingStops: 3, Congestion: transit.CongestionMedium,
			PlateNumber: "서울70사1234", UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), RouteID: "143", StopID: "23004",
			Minutes: 9, RemainingStops: 6, Congestion: transit.CongestionLow,
			PlateNumber: "서울70사5678", UpdatedAt: now,
		},
	}
}

func envDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
