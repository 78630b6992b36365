package domain

import "time"

// Role represents the role of a user in the system.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RolePassenger || r == RoleDriver || r == RoleAdmin
}

// DriverStatus represents the availability of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "online"
	DriverStatusOffline DriverStatus = "offline"
)

// User represents a passenger, driver, or admin.
type User struct {
	ID    string
	Name  string
	Phone string
	Role  Role

	// DriverStatus is only meaningful for users with RoleDriver.
	DriverStatus DriverStatus

	CreatedAt time.Time
}
