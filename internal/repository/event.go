package repository

import (
	"context"

	"ridehail/internal/domain"
)

// RideEventRepository is the append-only audit log for ride transitions.
// Events are never updated or deleted.
type RideEventRepository interface {
	// Append stores a new ride event.
	Append(ctx context.Context, event *domain.RideEvent) error

	// ListByRide returns a ride's events in append order.
	ListByRide(ctx context.Context, rideID string) ([]*domain.RideEvent, error)
}
