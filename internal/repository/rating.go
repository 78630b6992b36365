package repository

import (
	"context"

	"ridehail/internal/domain"
)

// RatingRepository defines the persistence operations for ratings.
type RatingRepository interface {
	// Create stores a rating. A second rating for the same (ride, type)
	// pair returns ErrConflict.
	Create(ctx context.Context, rating *domain.Rating) error

	// GetByRide returns the ratings recorded for a ride.
	GetByRide(ctx context.Context, rideID string) ([]*domain.Rating, error)
}
