package service

import (
	"context"

	"github.com/google/uuid"

	"ridehail/internal/domain"
	"ridehail/internal/pricing"
	"ridehail/internal/repository"
)

// RatingService handles post-ride ratings.
type RatingService struct {
	ratings repository.RatingRepository
	rides   repository.RideRepository
	clock   pricing.Clock
}

// NewRatingService creates a RatingService.
func NewRatingService(ratings repository.RatingRepository, rides repository.RideRepository, clock pricing.Clock) *RatingService {
	return &RatingService{ratings: ratings, rides: rides, clock: clock}
}

// RateRequest contains the parameters for rating a completed ride.
type RateRequest struct {
	RideID  string
	RaterID string
	Score   int
	Comment string
}

// Rate records a rating. Each side of a ride can rate exactly once.
func (s *RatingService) Rate(ctx context.Context, req RateRequest) (*domain.Rating, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Score < 1 || req.Score > 5 {
		return nil, ErrInvalidRating
	}

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	var ratingType domain.RatingType
	var toUserID string
	switch req.RaterID {
	case ride.PassengerID:
		ratingType = domain.RatingPassengerToDriver
		toUserID = ride.DriverID
	case ride.DriverID:
		ratingType = domain.RatingDriverToPassenger
		toUserID = ride.PassengerID
	default:
		return nil, ErrNotRideParticipant
	}

	rating := &domain.Rating{
		ID:         uuid.New().String(),
		RideID:     req.RideID,
		FromUserID: req.RaterID,
		ToUserID:   toUserID,
		Type:       ratingType,
		Score:      req.Score,
		Comment:    req.Comment,
		CreatedAt:  s.clock.Now(),
	}

	if err := s.ratings.Create(ctx, rating); err != nil {
		if err == repository.ErrConflict {
			return nil, ErrRatingExists
		}
		return nil, err
	}
	return rating, nil
}

// ListByRide returns the ratings recorded for a ride.
func (s *RatingService) ListByRide(ctx context.Context, rideID string) ([]*domain.Rating, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.ratings.GetByRide(ctx, rideID)
}
