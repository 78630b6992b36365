package postgres

import (
	"context"
	"database/sql"

	"ridehail/internal/domain"
)

// RideEventRepository is a PostgreSQL implementation of
// repository.RideEventRepository. Rows are insert-only; there is no
// update or delete path.
type RideEventRepository struct {
	q Querier
}

// NewRideEventRepository creates a new PostgreSQL ride event repository.
func NewRideEventRepository(db *sql.DB) *RideEventRepository {
	return &RideEventRepository{q: db}
}

// NewRideEventRepositoryWithTx creates a ride event repository using a
// transaction.
func NewRideEventRepositoryWithTx(tx *sql.Tx) *RideEventRepository {
	return &RideEventRepository{q: tx}
}

// Append stores a new ride event.
func (r *RideEventRepository) Append(ctx context.Context, event *domain.RideEvent) error {
	query := `
		INSERT INTO ride_events (id, ride_id, event_type, from_status, to_status, actor_id, lat, lng, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var fromStatus sql.NullString
	if event.FromStatus != "" {
		fromStatus = sql.NullString{String: string(event.FromStatus), Valid: true}
	}

	var lat, lng sql.NullFloat64
	if event.HasLocation {
		lat = sql.NullFloat64{Float64: event.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: event.Lng, Valid: true}
	}

	var metadata sql.NullString
	if event.Metadata != "" {
		metadata = sql.NullString{String: event.Metadata, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		event.ID, event.RideID, event.Type, fromStatus, event.ToStatus, event.ActorID,
		lat, lng, metadata, event.CreatedAt)
	return err
}

// ListByRide returns a ride's events in append order.
func (r *RideEventRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.RideEvent, error) {
	query := `
		SELECT id, ride_id, event_type, from_status, to_status, actor_id, lat, lng, metadata, created_at
		FROM ride_events WHERE ride_id = $1 ORDER BY created_at, id
	`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.RideEvent
	for rows.Next() {
		var event domain.RideEvent
		var fromStatus, metadata sql.NullString
		var lat, lng sql.NullFloat64

		if err := rows.Scan(
			&event.ID, &event.RideID, &event.Type, &fromStatus, &event.ToStatus, &event.ActorID,
			&lat, &lng, &metadata, &event.CreatedAt,
		); err != nil {
			return nil, err
		}

		if fromStatus.Valid {
			event.FromStatus = domain.RideStatus(fromStatus.String)
		}
		if lat.Valid && lng.Valid {
			event.Lat = lat.Float64
			event.Lng = lng.Float64
			event.HasLocation = true
		}
		if metadata.Valid {
			event.Metadata = metadata.String
		}

		events = append(events, &event)
	}
	return events, rows.Err()
}
