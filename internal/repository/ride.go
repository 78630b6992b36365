package repository

import (
	"context"
	"time"

	"ridehail/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// UpdateStatus moves a ride from one status to another. The write is
	// conditional on the ride still being in the from status; a stale
	// from returns ErrConflict and changes nothing. The lifecycle
	// timestamp for the new status is set to at.
	UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) error

	// AssignDriver is the claim compare-and-swap: it sets the driver and
	// moves the ride to accepted only if the status is still one of the
	// claimable statuses and no driver is assigned. Exactly one
	// concurrent caller succeeds and receives the status the ride was
	// claimed from; the rest get ErrConflict.
	AssignDriver(ctx context.Context, rideID, driverID string, at time.Time) (domain.RideStatus, error)

	// SetFinalFare stores the final price and serialized fare breakdown.
	SetFinalFare(ctx context.Context, id string, finalPrice float64, breakdown string) error

	// GetActiveForPassenger returns the passenger's ride in a
	// non-terminal status, or ErrNotFound.
	GetActiveForPassenger(ctx context.Context, passengerID string) (*domain.Ride, error)

	// GetActiveForDriver returns the driver's ride in a non-terminal
	// status, or ErrNotFound.
	GetActiveForDriver(ctx context.Context, driverID string) (*domain.Ride, error)

	// GetForMatching returns unassigned rides in the matching status,
	// oldest first.
	GetForMatching(ctx context.Context) ([]*domain.Ride, error)

	// GetAvailable returns unassigned rides in a claimable status
	// (requested or offered), oldest first.
	GetAvailable(ctx context.Context) ([]*domain.Ride, error)

	// GetByPassenger returns the passenger's ride history, newest first.
	GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error)

	// GetByDriver returns the driver's ride history, newest first.
	GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)
}
