// Package memory provides in-memory implementations of the repository
// interfaces. They are selected explicitly at startup when no database
// is configured; domain logic never falls back to them silently.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// RideRepository is an in-memory implementation of
// repository.RideRepository. All conditional updates happen under one
// mutex, which gives the same claim semantics as the SQL implementation.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride
}

// NewRideRepository creates an empty in-memory ride repository.
func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[string]*domain.Ride)}
}

var _ repository.RideRepository = (*RideRepository)(nil)

func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ride
	r.rides[ride.ID] = &cp
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ride
	return &cp, nil
}

func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	if ride.Status != from {
		return repository.ErrConflict
	}

	ride.Status = to
	switch to {
	case domain.RideStatusAccepted:
		ride.AcceptedAt = at
	case domain.RideStatusInProgress:
		ride.StartedAt = at
	case domain.RideStatusCompleted:
		ride.CompletedAt = at
	case domain.RideStatusCancelled:
		ride.CancelledAt = at
	}
	return nil
}

func (r *RideRepository) AssignDriver(ctx context.Context, rideID, driverID string, at time.Time) (domain.RideStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[rideID]
	if !ok {
		return "", repository.ErrNotFound
	}
	if ride.DriverID != "" {
		return "", repository.ErrConflict
	}

	claimable := false
	for _, s := range domain.ClaimableStatuses() {
		if ride.Status == s {
			claimable = true
			break
		}
	}
	if !claimable {
		return "", repository.ErrConflict
	}

	from := ride.Status
	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	ride.AcceptedAt = at
	return from, nil
}

func (r *RideRepository) SetFinalFare(ctx context.Context, id string, finalPrice float64, breakdown string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, ok := r.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	ride.FinalPrice = finalPrice
	ride.FareBreakdown = breakdown
	return nil
}

func (r *RideRepository) GetActiveForPassenger(ctx context.Context, passengerID string) (*domain.Ride, error) {
	return r.findActive(func(ride *domain.Ride) bool {
		return ride.PassengerID == passengerID
	})
}

func (r *RideRepository) GetActiveForDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	return r.findActive(func(ride *domain.Ride) bool {
		return ride.DriverID == driverID
	})
}

func (r *RideRepository) findActive(match func(*domain.Ride) bool) (*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Ride
	for _, ride := range r.rides {
		if !match(ride) || domain.IsTerminalState(ride.Status) {
			continue
		}
		if found == nil || ride.CreatedAt.Before(found.CreatedAt) {
			found = ride
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *RideRepository) GetForMatching(ctx context.Context) ([]*domain.Ride, error) {
	return r.collect(func(ride *domain.Ride) bool {
		return ride.Status == domain.RideStatusMatching && ride.DriverID == ""
	}, false), nil
}

func (r *RideRepository) GetAvailable(ctx context.Context) ([]*domain.Ride, error) {
	return r.collect(func(ride *domain.Ride) bool {
		if ride.DriverID != "" {
			return false
		}
		for _, s := range domain.ClaimableStatuses() {
			if ride.Status == s {
				return true
			}
		}
		return false
	}, false), nil
}

func (r *RideRepository) GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error) {
	return r.collect(func(ride *domain.Ride) bool {
		return ride.PassengerID == passengerID
	}, true), nil
}

func (r *RideRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return r.collect(func(ride *domain.Ride) bool {
		return ride.DriverID == driverID
	}, true), nil
}

func (r *RideRepository) collect(match func(*domain.Ride) bool, newestFirst bool) []*domain.Ride {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Ride
	for _, ride := range r.rides {
		if match(ride) {
			cp := *ride
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UserRepository is an in-memory implementation of
// repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.User)}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Phone == phone {
			cp := *user
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) UpdateDriverStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.Role != domain.RoleDriver {
		return repository.ErrNotFound
	}
	user.DriverStatus = status
	return nil
}

func (r *UserRepository) GetOnlineDrivers(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var drivers []*domain.User
	for _, user := range r.users {
		if user.Role == domain.RoleDriver && user.DriverStatus == domain.DriverStatusOnline {
			cp := *user
			drivers = append(drivers, &cp)
		}
	}
	return drivers, nil
}

// RideEventRepository is an in-memory implementation of
// repository.RideEventRepository.
type RideEventRepository struct {
	mu     sync.RWMutex
	events map[string][]*domain.RideEvent // keyed by ride id, append order
}

// NewRideEventRepository creates an empty in-memory event repository.
func NewRideEventRepository() *RideEventRepository {
	return &RideEventRepository{events: make(map[string][]*domain.RideEvent)}
}

var _ repository.RideEventRepository = (*RideEventRepository)(nil)

func (r *RideEventRepository) Append(ctx context.Context, event *domain.RideEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.events[event.RideID] = append(r.events[event.RideID], &cp)
	return nil
}

func (r *RideEventRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.RideEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := r.events[rideID]
	out := make([]*domain.RideEvent, len(events))
	for i, event := range events {
		cp := *event
		out[i] = &cp
	}
	return out, nil
}

// LocationRepository is an in-memory implementation of
// repository.LocationRepository.
type LocationRepository struct {
	mu        sync.RWMutex
	locations map[string]domain.DriverLocation
}

// NewLocationRepository creates an empty in-memory location repository.
func NewLocationRepository() *LocationRepository {
	return &LocationRepository{locations: make(map[string]domain.DriverLocation)}
}

var _ repository.LocationRepository = (*LocationRepository)(nil)

func (r *LocationRepository) Upsert(ctx context.Context, loc domain.DriverLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[loc.DriverID] = loc
	return nil
}

func (r *LocationRepository) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[driverID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &loc, nil
}

func (r *LocationRepository) Remove(ctx context.Context, driverID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locations, driverID)
	return nil
}

// RatingRepository is an in-memory implementation of
// repository.RatingRepository.
type RatingRepository struct {
	mu      sync.RWMutex
	ratings map[string]map[domain.RatingType]*domain.Rating // ride id -> type -> rating
}

// NewRatingRepository creates an empty in-memory rating repository.
func NewRatingRepository() *RatingRepository {
	return &RatingRepository{ratings: make(map[string]map[domain.RatingType]*domain.Rating)}
}

var _ repository.RatingRepository = (*RatingRepository)(nil)

func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byType, ok := r.ratings[rating.RideID]
	if !ok {
		byType = make(map[domain.RatingType]*domain.Rating)
		r.ratings[rating.RideID] = byType
	}
	if _, exists := byType[rating.Type]; exists {
		return repository.ErrConflict
	}

	cp := *rating
	byType[rating.Type] = &cp
	return nil
}

func (r *RatingRepository) GetByRide(ctx context.Context, rideID string) ([]*domain.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Rating
	for _, rating := range r.ratings[rideID] {
		cp := *rating
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
