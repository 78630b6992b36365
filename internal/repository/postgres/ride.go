package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, passenger_id, driver_id, status,
		origin_address, origin_lat, origin_lng,
		destination_address, destination_lat, destination_lng,
		distance_km, duration_minutes, price_estimate, final_price, fare_breakdown,
		is_scheduled, scheduled_at,
		created_at, accepted_at, started_at, completed_at, cancelled_at`

const activeStatusList = `('requested', 'matching', 'offered', 'accepted', 'driver_en_route', 'driver_arrived', 'in_progress')`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, passenger_id, driver_id, status,
			origin_address, origin_lat, origin_lng,
			destination_address, destination_lat, destination_lng,
			distance_km, duration_minutes, price_estimate, final_price, fare_breakdown,
			is_scheduled, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var driverID sql.NullString
	if ride.DriverID != "" {
		driverID = sql.NullString{String: ride.DriverID, Valid: true}
	}

	var scheduledAt sql.NullTime
	if !ride.ScheduledAt.IsZero() {
		scheduledAt = sql.NullTime{Time: ride.ScheduledAt, Valid: true}
	}

	var breakdown sql.NullString
	if ride.FareBreakdown != "" {
		breakdown = sql.NullString{String: ride.FareBreakdown, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.PassengerID,
		driverID,
		ride.Status,
		ride.OriginAddress,
		ride.OriginLat,
		ride.OriginLng,
		ride.DestinationAddress,
		ride.DestinationLat,
		ride.DestinationLng,
		ride.DistanceKm,
		ride.DurationMinutes,
		ride.PriceEstimate,
		ride.FinalPrice,
		breakdown,
		ride.IsScheduled,
		scheduledAt,
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// UpdateStatus moves a ride to a new status only if it is still in the
// expected current status. A stale expectation returns ErrConflict so the
// caller never clobbers a concurrent transition.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) error {
	query := `UPDATE rides SET status = $3` + statusTimestampClause(to, 4) + ` WHERE id = $1 AND status = $2`

	args := []any{id, from, to}
	if statusTimestampColumn(to) != "" {
		args = append(args, at)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return r.conflictOrNotFound(ctx, id)
	}

	return nil
}

// AssignDriver claims a ride for a driver. The conditional update commits
// only when the ride is still claimable and unassigned, so exactly one of
// any number of concurrent claims succeeds. The winner gets back the
// status the row held before the update.
func (r *RideRepository) AssignDriver(ctx context.Context, rideID, driverID string, at time.Time) (domain.RideStatus, error) {
	query := `
		WITH prev AS (
			SELECT id, status FROM rides
			WHERE id = $1 AND status IN ('requested', 'offered') AND driver_id IS NULL
			FOR UPDATE
		)
		UPDATE rides
		SET driver_id = $2, status = 'accepted', accepted_at = $3
		FROM prev
		WHERE rides.id = prev.id
		RETURNING prev.status
	`

	var from domain.RideStatus
	err := r.q.QueryRowContext(ctx, query, rideID, driverID, at).Scan(&from)
	if err == sql.ErrNoRows {
		return "", r.conflictOrNotFound(ctx, rideID)
	}
	if err != nil {
		return "", err
	}

	return from, nil
}

// SetFinalFare stores the final price and serialized fare breakdown.
func (r *RideRepository) SetFinalFare(ctx context.Context, id string, finalPrice float64, breakdown string) error {
	query := `UPDATE rides SET final_price = $2, fare_breakdown = $3 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, finalPrice, breakdown)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetActiveForPassenger returns the passenger's non-terminal ride.
func (r *RideRepository) GetActiveForPassenger(ctx context.Context, passengerID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE passenger_id = $1 AND status IN ` + activeStatusList + `
		ORDER BY created_at LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, passengerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetActiveForDriver returns the driver's non-terminal ride.
func (r *RideRepository) GetActiveForDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE driver_id = $1 AND status IN ` + activeStatusList + `
		ORDER BY created_at LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetForMatching returns unassigned rides in the matching status.
func (r *RideRepository) GetForMatching(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE status = 'matching' AND driver_id IS NULL
		ORDER BY created_at`

	return r.queryRides(ctx, query)
}

// GetAvailable returns unassigned rides a driver could claim. Only the
// claimable statuses appear; matching rides are mid-dispatch and cannot
// win the claim compare-and-swap yet.
func (r *RideRepository) GetAvailable(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE status IN ('requested', 'offered') AND driver_id IS NULL
		ORDER BY created_at`

	return r.queryRides(ctx, query)
}

// GetByPassenger returns the passenger's ride history, newest first.
func (r *RideRepository) GetByPassenger(ctx context.Context, passengerID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE passenger_id = $1 ORDER BY created_at DESC LIMIT 100`

	return r.queryRides(ctx, query, passengerID)
}

// GetByDriver returns the driver's ride history, newest first.
func (r *RideRepository) GetByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE driver_id = $1 ORDER BY created_at DESC LIMIT 100`

	return r.queryRides(ctx, query, driverID)
}

func (r *RideRepository) queryRides(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// conflictOrNotFound disambiguates a zero-row conditional update: the
// ride either does not exist, or it exists and lost the race.
func (r *RideRepository) conflictOrNotFound(ctx context.Context, id string) error {
	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// statusTimestampColumn maps a status to the lifecycle timestamp column
// set when a ride enters it.
func statusTimestampColumn(to domain.RideStatus) string {
	switch to {
	case domain.RideStatusAccepted:
		return "accepted_at"
	case domain.RideStatusInProgress:
		return "started_at"
	case domain.RideStatusCompleted:
		return "completed_at"
	case domain.RideStatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

func statusTimestampClause(to domain.RideStatus, arg int) string {
	col := statusTimestampColumn(to)
	if col == "" {
		return ""
	}
	return ", " + col + " = $" + strconv.Itoa(arg)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, breakdown sql.NullString
	var scheduledAt, acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&driverID,
		&ride.Status,
		&ride.OriginAddress,
		&ride.OriginLat,
		&ride.OriginLng,
		&ride.DestinationAddress,
		&ride.DestinationLat,
		&ride.DestinationLng,
		&ride.DistanceKm,
		&ride.DurationMinutes,
		&ride.PriceEstimate,
		&ride.FinalPrice,
		&breakdown,
		&ride.IsScheduled,
		&scheduledAt,
		&ride.CreatedAt,
		&acceptedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if breakdown.Valid {
		ride.FareBreakdown = breakdown.String
	}
	if scheduledAt.Valid {
		ride.ScheduledAt = scheduledAt.Time
	}
	if acceptedAt.Valid {
		ride.AcceptedAt = acceptedAt.Time
	}
	if startedAt.Valid {
		ride.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}

	return &ride, nil
}

// Ensure RideRepository implements repository.RideRepository.
var _ repository.RideRepository = (*RideRepository)(nil)
