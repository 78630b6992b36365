package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// RatingRepository is a PostgreSQL implementation of
// repository.RatingRepository. The (ride_id, type) unique constraint
// enforces one rating per direction.
type RatingRepository struct {
	q Querier
}

// NewRatingRepository creates a new PostgreSQL rating repository.
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{q: db}
}

// Create stores a rating. Duplicate (ride, type) pairs surface as
// ErrConflict via the unique constraint.
func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	query := `
		INSERT INTO ratings (id, ride_id, from_user_id, to_user_id, type, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var comment sql.NullString
	if rating.Comment != "" {
		comment = sql.NullString{String: rating.Comment, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		rating.ID, rating.RideID, rating.FromUserID, rating.ToUserID,
		rating.Type, rating.Score, comment, rating.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return repository.ErrConflict
		}
		return err
	}

	return nil
}

// GetByRide returns the ratings recorded for a ride.
func (r *RatingRepository) GetByRide(ctx context.Context, rideID string) ([]*domain.Rating, error) {
	query := `
		SELECT id, ride_id, from_user_id, to_user_id, type, score, COALESCE(comment, ''), created_at
		FROM ratings WHERE ride_id = $1 ORDER BY created_at
	`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []*domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID, &rating.RideID, &rating.FromUserID, &rating.ToUserID,
			&rating.Type, &rating.Score, &rating.Comment, &rating.CreatedAt,
		); err != nil {
			return nil, err
		}
		ratings = append(ratings, &rating)
	}
	return ratings, rows.Err()
}
