package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EILE23/BusTrackr/internal/transit/application"
	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

type memRouteRepo struct {
	routes map[string]transit.Route
}

func (r *memRouteRepo) Get(_ context.Context, id string) (*transit.Route, error) {
	route, ok := r.routes[id]
	if !ok {
		return nil, nil
	}
	return &route, nil
}

func (r *memRouteRepo) List(context.Context) ([]transit.Route, error) {
	out := make([]transit.Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRouteRepo) Save(_ context.Context, route *transit.Route) error {
	r.routes[route.ID] = *route
	return nil
}

type memStopRepo struct {
	stops map[string]transit.Stop
}

func (r *memStopRepo) Get(_ context.Context, id string) (*transit.Stop, error) {
	stop, ok := r.stops[id]
	if !ok {
		return nil, nil
	}
	return &stop, nil
}

func (r *memStopRepo) List(context.Context) ([]transit.Stop, error) {
	out := make([]transit.Stop, 0, len(r.stops))
	for _, stop := range r.stops {
		out = append(out, stop)
	}
	return out, nil
}

func (r *memStopRepo) SearchByName(_ context.Context, name string) ([]transit.Stop, error) {
	var out []transit.Stop
	for _, stop := range r.stops {
		if strings.Contains(stop.Name, name) {
			out = append(out, stop)
		}
	}
	return out, nil
}

func (r *memStopRepo) ByDistrict(_ context.Context, district string) ([]transit.Stop, error) {
	var out []transit.Stop
	for _, stop := range r.stops {
		if stop.District == district {
			out = append(out, stop)
		}
	}
	return out, nil
}

func (r *memStopRepo) Save(_ context.Context, stop *transit.Stop) error {
	r.stops[stop.ID] = *stop
	return nil
}

type memObservationRepo struct {
	obs []transit.VehicleObservation
}

func (r *memObservationRepo) Insert(_ context.Context, obs []transit.VehicleObservation) error {
	r.obs = append(r.obs, obs...)
	return nil
}

func (r *memObservationRepo) LatestByRoute(_ context.Context, routeID string) ([]transit.VehicleObservation, error) {
	latest := map[string]transit.VehicleObservation{}
	for _, o := range r.obs {
		if o.RouteID != routeID {
			continue
		}
		prev, ok := latest[o.VehicleID]
		if !ok || o.ObservedAt.After(prev.ObservedAt) {
			latest[o.VehicleID] = o
		}
	}
	out := make([]transit.VehicleObservation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	return out, nil
}

func (r *memObservationRepo) LatestByVehicle(_ context.Context, vehicleID string) (*transit.VehicleObservation, error) {
	var found *transit.VehicleObservation
	for i := range r.obs {
		o := r.obs[i]
		if o.VehicleID != vehicleID {
			continue
		}
		if found == nil || o.ObservedAt.After(found.ObservedAt) {
			found = &o
		}
	}
	return found, nil
}

func (r *memObservationRepo) ByRouteSince(_ context.Context, routeID string, since time.Time) ([]transit.VehicleObservation, error) {
	var out []transit.VehicleObservation
	for _, o := range r.obs {
		if o.RouteID == routeID && !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

type memArrivalRepo struct {
	predictions []transit.ArrivalPrediction
}

func (r *memArrivalRepo) Insert(_ context.Context, predictions []transit.ArrivalPrediction) error {
	r.predictions = append(r.predictions, predictions...)
	return nil
}

func (r *memArrivalRepo) ByStop(_ context.Context, stopID string) ([]transit.ArrivalPrediction, error) {
	var out []transit.ArrivalPrediction
	for _, p := range r.predictions {
		if p.StopID == stopID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memArrivalRepo) ByRoute(_ context.Context, routeID string) ([]transit.ArrivalPrediction, error) {
	var out []transit.ArrivalPrediction
	for _, p := range r.predictions {
		if p.RouteID == routeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memArrivalRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []transit.ArrivalPrediction
	var removed int64
	for _, p := range r.predictions {
		if p.UpdatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	r.predictions = kept
	return removed, nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*httptest.Server, *memRouteRepo, *memStopRepo, *memObservationRepo, *memArrivalRepo) {
	t.Helper()
	routes := &memRouteRepo{routes: map[string]transit.Route{}}
	stops := &memStopRepo{stops: map[string]transit.Stop{}}
	observations := &memObservationRepo{}
	arrivals := &memArrivalRepo{}

	locations, err := application.NewLocationService(observations, nil, nil)
	if err != nil {
		t.Fatalf("NewLocationService: %v", err)
	}
	stopService, err := application.NewStopService(stops)
	if err != nil {
		t.Fatalf("NewStopService: %v", err)
	}
	arrivalService, err := application.NewArrivalService(arrivals)
	if err != nil {
		t.Fatalf("NewArrivalService: %v", err)
	}
	handler, err := NewHandler(routes, locations, stopService, arrivalService)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	router := chi.NewRouter()
	handler.Mount(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, routes, stops, observations, arrivals
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestListAndGetRoutes(t *testing.T) {
	server, routes, _, _, _ := newTestServer(t)
	routes.routes["472"] = transit.Route{ID: "472", Name: "472번", Category: transit.CategoryBranch}
	routes.routes["143"] = transit.Route{ID: "143", Name: "143번", Category: transit.CategoryTrunk}

	var list []transit.Route
	if status := getJSON(t, server.URL+"/api/routes", &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list) != 2 || list[0].ID != "143" {
		t.Fatalf("list = %v", list)
	}

	var route transit.Route
	if status := getJSON(t, server.URL+"/api/routes/472", &route); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if route.Name != "472번" {
		t.Fatalf("route = %v", route)
	}

	if status := getJSON(t, server.URL+"/api/routes/999", nil); status != http.StatusNotFound {
		t.Fatalf("missing route status = %d, want 404", status)
	}
}

func TestLatestPositionsKeepsNewestPerVehicle(t *testing.T) {
	server, _, _, observations, _ := newTestServer(t)
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	observations.obs = []transit.VehicleObservation{
		{VehicleID: "서울70사1234", RouteID: "472", ObservedAt: base},
		{VehicleID: "서울70사1234", RouteID: "472", ObservedAt: base.Add(30 * time.Second), ETAMinutes: 2},
		{VehicleID: "서울70사5678", RouteID: "472", ObservedAt: base},
	}

	var latest []transit.VehicleObservation
	if status := getJSON(t, server.URL+"/api/routes/472/positions/latest", &latest); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(latest) != 2 {
		t.Fatalf("latest = %v, want one row per vehicle", latest)
	}
	for _, o := range latest {
		if o.VehicleID == "서울70사1234" && o.ETAMinutes != 2 {
			t.Fatalf("stale observation won: %v", o)
		}
	}
}

func TestRecentPositionsRejectsBadMinutes(t *testing.T) {
	server, _, _, _, _ := newTestServer(t)
	if status := getJSON(t, server.URL+"/api/routes/472/positions/recent?minutes=abc", nil); status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestVehiclePosition(t *testing.T) {
	server, _, _, observations, _ := newTestServer(t)
	observations.obs = []transit.VehicleObservation{
		{VehicleID: "서울70사1234", RouteID: "472", ObservedAt: time.Now().UTC()},
	}

	var obs transit.VehicleObservation
	if status := getJSON(t, server.URL+"/api/vehicles/서울70사1234/position", &obs); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if obs.RouteID != "472" {
		t.Fatalf("observation = %v", obs)
	}

	if status := getJSON(t, server.URL+"/api/vehicles/unknown/position", nil); status != http.StatusNotFound {
		t.Fatalf("missing vehicle status = %d, want 404", status)
	}
}

func TestStopSearchAndNearby(t *testing.T) {
	server, _, stops, _, _ := newTestServer(t)
	stops.stops["23001"] = transit.Stop{
		ID: "23001", Name: "강남구청", District: "강남구",
		Latitude: floatPtr(37.5172), Longitude: floatPtr(127.0473),
	}
	stops.stops["23004"] = transit.Stop{
		ID: "23004", Name: "광화문", District: "종로구",
		Latitude: floatPtr(37.5720), Longitude: floatPtr(126.9769),
	}

	var found []transit.Stop
	if status := getJSON(t, server.URL+"/api/stops/search?name=강남", &found); status != http.StatusOK {
		t.Fatalf("search status = %d", status)
	}
	if len(found) != 1 || found[0].ID != "23001" {
		t.Fatalf("search = %v", found)
	}

	if status := getJSON(t, server.URL+"/api/stops/search", nil); status != http.StatusBadRequest {
		t.Fatalf("missing name status = %d, want 400", status)
	}

	var nearby []transit.Stop
	url := server.URL + "/api/stops/nearby?lat=37.5170&lon=127.0470&radius_km=1"
	if status := getJSON(t, url, &nearby); status != http.StatusOK {
		t.Fatalf("nearby status = %d", status)
	}
	if len(nearby) != 1 || nearby[0].ID != "23001" {
		t.Fatalf("nearby = %v, want only the Gangnam stop", nearby)
	}

	if status := getJSON(t, server.URL+"/api/stops/nearby?lat=37.5", nil); status != http.StatusBadRequest {
		t.Fatalf("missing lon status = %d, want 400", status)
	}

	var district []transit.Stop
	if status := getJSON(t, server.URL+"/api/stops/district/종로구", &district); status != http.StatusOK {
		t.Fatalf("district status = %d", status)
	}
	if len(district) != 1 || district[0].ID != "23004" {
		t.Fatalf("district = %v", district)
	}
}

func TestArrivalsByStopAndRoute(t *testing.T) {
	server, _, _, _, arrivals := newTestServer(t)
	now := time.Now().UTC()
	arrivals.predictions = []transit.ArrivalPrediction{
		{ID: "a1", RouteID: "472", StopID: "23001", Minutes: 3, UpdatedAt: now},
		{ID: "a2", RouteID: "143", StopID: "23001", Minutes: 7, UpdatedAt: now},
		{ID: "a3", RouteID: "472", StopID: "23002", Minutes: 12, UpdatedAt: now},
	}

	var byStop []transit.ArrivalPrediction
	if status := getJSON(t, server.URL+"/api/stops/23001/arrivals", &byStop); status != http.StatusOK {
		t.Fatalf("stop status = %d", status)
	}
	if len(byStop) != 2 {
		t.Fatalf("byStop = %v", byStop)
	}

	var byRoute []transit.ArrivalPrediction
	if status := getJSON(t, server.URL+"/api/routes/472/arrivals", &byRoute); status != http.StatusOK {
		t.Fatalf("route status = %d", status)
	}
	if len(byRoute) != 2 {
		t.Fatalf("byRoute = %v", byRoute)
	}
}
