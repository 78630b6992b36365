package repository

import (
	"context"

	"ridehail/internal/domain"
)

// LocationRepository holds the last known position of each driver.
// Latest value only; upserts overwrite and no history is kept.
type LocationRepository interface {
	// Upsert overwrites a driver's last known location.
	Upsert(ctx context.Context, loc domain.DriverLocation) error

	// Get returns a driver's last known location, or ErrNotFound if the
	// driver never reported one.
	Get(ctx context.Context, driverID string) (*domain.DriverLocation, error)

	// Remove drops a driver's location, e.g. when they go offline.
	Remove(ctx context.Context, driverID string) error
}
