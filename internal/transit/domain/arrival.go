package transit

import (
	"context"
	"errors"
	"time"
)

// ArrivalPrediction is one upstream estimate of when a bus reaches a stop.
// Predictions are owned by the stop they apply to and are appended per sync
// pass; superseded rows are removed by a retention sweep, not by upsert.
type ArrivalPrediction struct {
	ID             string
	RouteID        string
	StopID         string
	Minutes        int
	RemainingStops int
	Congestion     Congestion
	PlateNumber    string
	UpdatedAt      time.Time
}

// Validate checks prediction invariants.
func (p ArrivalPrediction) Validate() error {
	if p.ID == "" {
		return errors.New("arrival: empty id")
	}
	if p.RouteID == "" {
		return errors.New("arrival: empty route id")
	}
	if p.StopID == "" {
		return errors.New("arrival: empty stop id")
	}
	return nil
}

// ArrivalRepository persists arrival predictions.
type ArrivalRepository interface {
	Insert(ctx context.Context, predictions []ArrivalPrediction) error
	ByStop(ctx context.Context, stopID string) ([]ArrivalPrediction, error)
	ByRoute(ctx context.Context, routeID string) ([]ArrivalPrediction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
