package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/EILE23/BusTrackr/internal/transit/application"
	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// Handler provides the read-side HTTP endpoints over synced transit data.
type Handler struct {
	routes    transit.RouteRepository
	locations *application.LocationService
	stops     *application.StopService
	arrivals  *application.ArrivalService
}

// NewHandler constructs a handler.
func NewHandler(
	routes transit.RouteRepository,
	locations *application.LocationService,
	stops *application.StopService,
	arrivals *application.ArrivalService,
) (*Handler, error) {
	if routes == nil {
		return nil, errors.New("transit handler: nil route repository")
	}
	if locations == nil || stops == nil || arrivals == nil {
		return nil, errors.New("transit handler: nil service")
	}
	return &Handler{routes: routes, locations: locations, stops: stops, arrivals: arrivals}, nil
}

// Mount registers all transit routes on the given router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/routes", h.listRoutes)
		r.Get("/routes/{routeID}", h.getRoute)
		r.Get("/routes/{routeID}/positions/latest", h.latestPositions)
		r.Get("/routes/{routeID}/positions/recent", h.recentPositions)
		r.Get("/routes/{routeID}/arrivals", h.arrivalsByRoute)
		r.Get("/vehicles/{vehicleID}/position", h.vehiclePosition)
		r.Get("/stops/search", h.searchStops)
		r.Get("/stops/nearby", h.nearbyStops)
		r.Get("/stops/district/{district}", h.stopsByDistrict)
		r.Get("/stops/{stopID}", h.getStop)
		r.Get("/stops/{stopID}/arrivals", h.arrivalsByStop)
	})
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routes.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, routes)
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.routes.Get(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if route == nil {
		http.Error(w, "route not found", http.StatusNotFound)
		return
	}
	writeJSON(w, route)
}

func (h *Handler) latestPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.locations.LatestByRoute(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, positions)
}

func (h *Handler) recentPositions(w http.ResponseWriter, r *http.Request) {
	minutes := 0
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "minutes must be a non-negative integer", http.StatusBadRequest)
			return
		}
		minutes = parsed
	}
	positions, err := h.locations.RecentByRoute(r.Context(), chi.URLParam(r, "routeID"), minutes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, positions)
}

func (h *Handler) vehiclePosition(w http.ResponseWriter, r *http.Request) {
	observation, err := h.locations.LatestByVehicle(r.Context(), chi.URLParam(r, "vehicleID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if observation == nil {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, observation)
}

func (h *Handler) searchStops(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	stops, err := h.stops.SearchByName(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stops)
}

func (h *Handler) nearbyStops(w http.ResponseWriter, r *http.Request) {
	lat, err := parseFloatQuery(r, "lat")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := parseFloatQuery(r, "lon")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	radiusKm := 0.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKm < 0 {
			http.Error(w, "radius_km must be a non-negative number", http.StatusBadRequest)
			return
		}
	}
	stops, err := h.stops.Nearby(r.Context(), lat, lon, radiusKm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stops)
}

func (h *Handler) stopsByDistrict(w http.ResponseWriter, r *http.Request) {
	stops, err := h.stops.ByDistrict(r.Context(), chi.URLParam(r, "district"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stops)
}

func (h *Handler) getStop(w http.ResponseWriter, r *http.Request) {
	stop, err := h.stops.Get(r.Context(), chi.URLParam(r, "stopID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stop == nil {
		http.Error(w, "stop not found", http.StatusNotFound)
		return
	}
	writeJSON(w, stop)
}

func (h *Handler) arrivalsByStop(w http.ResponseWriter, r *http.Request) {
	arrivals, err := h.arrivals.ByStop(r.Context(), chi.URLParam(r, "stopID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, arrivals)
}

func (h *Handler) arrivalsByRoute(w http.ResponseWriter, r *http.Request) {
	arrivals, err := h.arrivals.ByRoute(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, arrivals)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func parseFloatQuery(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, errors.New(key + " is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return value, nil
}
