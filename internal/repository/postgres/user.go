package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridehail/internal/domain"
	"ridehail/internal/repository"
)

// UserRepository is a PostgreSQL implementation of repository.UserRepository.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, phone, role, driver_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Name, user.Phone, user.Role, user.DriverStatus, user.CreatedAt)
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), role, driver_status, created_at
		FROM users WHERE id = $1`

	var user domain.User
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Phone, &user.Role, &user.DriverStatus, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), role, driver_status, created_at
		FROM users WHERE phone = $1`

	var user domain.User
	err := r.q.QueryRowContext(ctx, query, phone).Scan(
		&user.ID, &user.Name, &user.Phone, &user.Role, &user.DriverStatus, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

// UpdateDriverStatus updates a driver's availability.
func (r *UserRepository) UpdateDriverStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE users SET driver_status = $1 WHERE id = $2 AND role = 'driver'`

	result, err := r.q.ExecContext(ctx, query, status, id)
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

// GetOnlineDrivers returns all users with role driver and status online.
func (r *UserRepository) GetOnlineDrivers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(phone, ''), role, driver_status, created_at
		FROM users WHERE role = 'driver' AND driver_status = 'online'`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Phone, &user.Role, &user.DriverStatus, &user.CreatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, &user)
	}
	return drivers, rows.Err()
}
