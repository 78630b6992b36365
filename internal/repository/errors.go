package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional write loses its race,
	// e.g. a claim on a ride that is no longer claimable or a duplicate
	// rating for the same ride.
	ErrConflict = errors.New("conflicting concurrent update")
)
