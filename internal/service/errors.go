package service

import "errors"

var (
	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID = errors.New("invalid passenger id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRating is returned when a rating score is out of range.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInvalidScheduleTime is returned when a scheduled pickup is in the past.
	ErrInvalidScheduleTime = errors.New("scheduled time must be in the future")

	// ErrInvalidRole is returned when a user role is not recognized.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidUserDetails is returned when name or phone is missing.
	ErrInvalidUserDetails = errors.New("name and phone are required")

	// ErrRideNotFound is returned when the ride does not exist.
	ErrRideNotFound = errors.New("ride not found")

	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrPhoneTaken is returned when registering a phone number already in use.
	ErrPhoneTaken = errors.New("phone number already registered")

	// ErrPassengerHasActiveRide is returned when a passenger requests a
	// ride while another of theirs is still active.
	ErrPassengerHasActiveRide = errors.New("passenger already has an active ride")

	// ErrDriverHasActiveRide is returned when a driver tries to claim a
	// ride while already serving one.
	ErrDriverHasActiveRide = errors.New("driver already has an active ride")

	// ErrRideAlreadyClaimed is returned when another driver won the claim.
	ErrRideAlreadyClaimed = errors.New("ride already claimed by another driver")

	// ErrInvalidStatusTransition is returned when a lifecycle change is
	// not allowed from the ride's current status.
	ErrInvalidStatusTransition = errors.New("invalid ride status transition")

	// ErrNotRideParticipant is returned when the caller is neither the
	// ride's passenger nor its driver.
	ErrNotRideParticipant = errors.New("not a participant of this ride")

	// ErrDriverOffline is returned when an offline driver tries to claim a ride.
	ErrDriverOffline = errors.New("driver is offline")

	// ErrRatingExists is returned when the same party rates a ride twice.
	ErrRatingExists = errors.New("ride already rated by this party")

	// ErrRideNotCompleted is returned when rating a ride that has not finished.
	ErrRideNotCompleted = errors.New("ride is not completed")
)
