package redis

import (
	"context"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// NearbySearcher finds driver positions within a radius of a point.
type NearbySearcher interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DriverLocation, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ repository.LocationRepository = (*LocationStore)(nil)
	_ NearbySearcher                = (*LocationStore)(nil)
	_ LockStoreInterface            = (*LockStore)(nil)
)
