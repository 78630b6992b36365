package domain

import "time"

// DriverLocation is the last reported position of a driver. Updates
// overwrite the previous value; no history is retained.
type DriverLocation struct {
	DriverID  string
	Lat       float64
	Lng       float64
	UpdatedAt time.Time
}
