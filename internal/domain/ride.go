package domain

import "time"

// RideStatus represents the current lifecycle state of a ride.
type RideStatus string

const (
	RideStatusRequested     RideStatus = "requested"
	RideStatusMatching      RideStatus = "matching"
	RideStatusOffered       RideStatus = "offered"
	RideStatusAccepted      RideStatus = "accepted"
	RideStatusDriverEnRoute RideStatus = "driver_en_route"
	RideStatusDriverArrived RideStatus = "driver_arrived"
	RideStatusInProgress    RideStatus = "in_progress"
	RideStatusCompleted     RideStatus = "completed"
	RideStatusCancelled     RideStatus = "cancelled"
)

// rideStateTransitions is the single source of truth for which status
// changes are legal. Key: current status, value: allowed next statuses.
// The direct requested->accepted edge is the fast path used when a driver
// claims a ride before the dispatch engine has moved it through
// matching/offered; it goes through the same table as every other edge
// rather than bypassing validation.
var rideStateTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:     {RideStatusMatching, RideStatusAccepted, RideStatusCancelled},
	RideStatusMatching:      {RideStatusOffered, RideStatusCancelled},
	RideStatusOffered:       {RideStatusAccepted, RideStatusMatching, RideStatusCancelled},
	RideStatusAccepted:      {RideStatusDriverEnRoute, RideStatusCancelled},
	RideStatusDriverEnRoute: {RideStatusDriverArrived, RideStatusCancelled},
	RideStatusDriverArrived: {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress:    {RideStatusCompleted, RideStatusCancelled},
	RideStatusCompleted:     {},
	RideStatusCancelled:     {},
}

// IsValidTransition reports whether moving from one status to another is
// allowed by the state table. Statuses not present in the table are
// invalid on both sides; no self-transitions exist.
func IsValidTransition(from, to RideStatus) bool {
	allowed, ok := rideStateTransitions[from]
	if !ok {
		return false
	}
	for _, next := range allowed {
		if next == to {
			return true
		}
	}
	return false
}

// ValidNextStates returns the allowed next statuses for a given status.
// Unknown statuses return nil.
func ValidNextStates(from RideStatus) []RideStatus {
	allowed, ok := rideStateTransitions[from]
	if !ok {
		return nil
	}
	out := make([]RideStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminalState reports whether a status has no allowed next states.
// Unknown statuses are not terminal; they are invalid.
func IsTerminalState(s RideStatus) bool {
	allowed, ok := rideStateTransitions[s]
	return ok && len(allowed) == 0
}

// IsKnownStatus reports whether s appears in the state table at all.
func IsKnownStatus(s RideStatus) bool {
	_, ok := rideStateTransitions[s]
	return ok
}

// ClaimableStatuses are the statuses from which a driver may claim a
// ride. The claim compare-and-swap commits only if the ride is still in
// one of these and has no driver assigned.
func ClaimableStatuses() []RideStatus {
	return []RideStatus{RideStatusRequested, RideStatusOffered}
}

// ActiveStatuses returns every non-terminal status. A passenger and a
// driver each have at most one ride in any of these at a time.
func ActiveStatuses() []RideStatus {
	return []RideStatus{
		RideStatusRequested,
		RideStatusMatching,
		RideStatusOffered,
		RideStatusAccepted,
		RideStatusDriverEnRoute,
		RideStatusDriverArrived,
		RideStatusInProgress,
	}
}

// Ride represents a single passenger transport request tracked through
// its lifecycle states.
type Ride struct {
	ID          string
	PassengerID string
	DriverID    string // empty until a driver claims the ride

	Status RideStatus

	OriginAddress      string
	OriginLat          float64
	OriginLng          float64
	DestinationAddress string
	DestinationLat     float64
	DestinationLng     float64

	DistanceKm      float64
	DurationMinutes float64

	PriceEstimate float64
	FinalPrice    float64
	FareBreakdown string // serialized pricing.FareBreakdown, set at creation and completion

	IsScheduled bool
	ScheduledAt time.Time

	CreatedAt   time.Time
	AcceptedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}
