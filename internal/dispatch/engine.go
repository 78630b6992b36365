// Package dispatch selects candidate drivers for a ride and schedules
// re-match attempts when nobody claims it.
package dispatch

import (
	"context"
	"sort"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/geo"
	"ridehail/internal/repository"
)

// NearbySearcher finds driver positions within a radius of a point,
// sorted by ascending distance. The Redis geo index implements it.
type NearbySearcher interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DriverLocation, error)
}

// Candidate is a driver eligible for an offer.
type Candidate struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// Engine ranks online drivers by distance to a pickup point.
type Engine struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	searcher  NearbySearcher
	staleTTL  time.Duration
	now       func() time.Time
}

// NewEngine creates an Engine. searcher may be nil; the engine then
// scans stored locations directly.
func NewEngine(users repository.UserRepository, locations repository.LocationRepository, searcher NearbySearcher, staleTTL time.Duration) *Engine {
	return &Engine{
		users:     users,
		locations: locations,
		searcher:  searcher,
		staleTTL:  staleTTL,
		now:       time.Now,
	}
}

// FindNearbyDrivers returns up to limit online drivers within radiusKm
// of the pickup point, closest first. Drivers without a known position
// or with a stale one are skipped.
func (e *Engine) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]Candidate, error) {
	online, err := e.users.GetOnlineDrivers(ctx)
	if err != nil {
		return nil, err
	}
	if len(online) == 0 {
		return nil, nil
	}

	onlineSet := make(map[string]struct{}, len(online))
	for _, d := range online {
		onlineSet[d.ID] = struct{}{}
	}

	var candidates []Candidate
	if e.searcher != nil {
		candidates, err = e.fromGeoIndex(ctx, lat, lng, radiusKm, onlineSet)
	} else {
		candidates, err = e.fromStoredLocations(ctx, lat, lng, radiusKm, onlineSet)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (e *Engine) fromGeoIndex(ctx context.Context, lat, lng, radiusKm float64, onlineSet map[string]struct{}) ([]Candidate, error) {
	locations, err := e.searcher.Nearby(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}

	cutoff := e.now().Add(-e.staleTTL)
	candidates := make([]Candidate, 0, len(locations))
	for _, loc := range locations {
		if _, ok := onlineSet[loc.DriverID]; !ok {
			continue
		}
		if e.staleTTL > 0 && !loc.UpdatedAt.IsZero() && loc.UpdatedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   loc.DriverID,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			DistanceKm: geo.HaversineKm(lat, lng, loc.Lat, loc.Lng),
		})
	}
	return candidates, nil
}

func (e *Engine) fromStoredLocations(ctx context.Context, lat, lng, radiusKm float64, onlineSet map[string]struct{}) ([]Candidate, error) {
	cutoff := e.now().Add(-e.staleTTL)

	candidates := make([]Candidate, 0, len(onlineSet))
	for driverID := range onlineSet {
		loc, err := e.locations.Get(ctx, driverID)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if e.staleTTL > 0 && !loc.UpdatedAt.IsZero() && loc.UpdatedAt.Before(cutoff) {
			continue
		}

		dist := geo.HaversineKm(lat, lng, loc.Lat, loc.Lng)
		if dist > radiusKm {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   driverID,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			DistanceKm: dist,
		})
	}
	return candidates, nil
}
