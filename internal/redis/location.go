package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

const (
	driverLocationKey     = "drivers:locations"
	driverLocationSeenKey = "drivers:locations:seen"
)

// LocationStore keeps driver positions in a Redis geo index. It backs
// repository.LocationRepository and additionally supports radius
// queries for dispatch.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// Upsert stores a driver's position using GEOADD and records the
// update time in a companion hash.
func (s *LocationStore) Upsert(ctx context.Context, loc domain.DriverLocation) error {
	pipe := s.client.Pipeline()
	pipe.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      loc.DriverID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	})
	pipe.HSet(ctx, driverLocationSeenKey, loc.DriverID, loc.UpdatedAt.UnixMilli())
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns a driver's last known position.
func (s *LocationStore) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	positions, err := s.client.GeoPos(ctx, driverLocationKey, driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, repository.ErrNotFound
	}

	loc := &domain.DriverLocation{
		DriverID: driverID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}

	seen, err := s.client.HGet(ctx, driverLocationSeenKey, driverID).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if err == nil {
		ms, parseErr := strconv.ParseInt(seen, 10, 64)
		if parseErr == nil {
			loc.UpdatedAt = time.UnixMilli(ms)
		}
	}

	return loc, nil
}

// Remove deletes a driver's position from the geo index.
func (s *LocationStore) Remove(ctx context.Context, driverID string) error {
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, driverLocationKey, driverID)
	pipe.HDel(ctx, driverLocationSeenKey, driverID)
	_, err := pipe.Exec(ctx)
	return err
}

// Nearby returns driver positions within radiusKm of the given point,
// sorted by ascending distance. Each position carries its seen-at time
// so callers can discard entries that stopped updating.
func (s *LocationStore) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DriverLocation, error) {
	results, err := s.client.GeoRadius(ctx, driverLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Name
	}
	seen, err := s.client.HMGet(ctx, driverLocationSeenKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]domain.DriverLocation, 0, len(results))
	for i, r := range results {
		loc := domain.DriverLocation{
			DriverID: r.Name,
			Lat:      r.Latitude,
			Lng:      r.Longitude,
		}
		if i < len(seen) {
			if raw, ok := seen[i].(string); ok {
				if ms, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
					loc.UpdatedAt = time.UnixMilli(ms)
				}
			}
		}
		locations = append(locations, loc)
	}

	return locations, nil
}
