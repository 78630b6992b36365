package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of
// repository.LocationRepository. One row per driver, overwritten on
// every update.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// Upsert overwrites a driver's last known location.
func (r *LocationRepository) Upsert(ctx context.Context, loc domain.DriverLocation) error {
	query := `
		INSERT INTO driver_locations (driver_id, lat, lng, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (driver_id) DO UPDATE
		SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.ExecContext(ctx, query, loc.DriverID, loc.Lat, loc.Lng, loc.UpdatedAt)
	return err
}

// Get returns a driver's last known location.
func (r *LocationRepository) Get(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	query := `SELECT driver_id, lat, lng, updated_at FROM driver_locations WHERE driver_id = $1`

	var loc domain.DriverLocation
	err := r.q.QueryRowContext(ctx, query, driverID).Scan(&loc.DriverID, &loc.Lat, &loc.Lng, &loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &loc, nil
}

// Remove drops a driver's location row.
func (r *LocationRepository) Remove(ctx context.Context, driverID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM driver_locations WHERE driver_id = $1`, driverID)
	return err
}

// Ensure LocationRepository implements repository.LocationRepository.
var _ repository.LocationRepository = (*LocationRepository)(nil)
