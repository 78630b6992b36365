package domain

import "time"

// RatingType distinguishes which party rated which.
type RatingType string

const (
	RatingPassengerToDriver RatingType = "passenger_to_driver"
	RatingDriverToPassenger RatingType = "driver_to_passenger"
)

// Rating is a post-ride score from one ride party about the other.
// At most one rating exists per (ride, type).
type Rating struct {
	ID         string
	RideID     string
	FromUserID string
	ToUserID   string
	Type       RatingType
	Score      int // 1..5
	Comment    string
	CreatedAt  time.Time
}
