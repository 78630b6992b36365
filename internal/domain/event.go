package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RideEventType classifies entries in the ride audit log.
type RideEventType string

const (
	EventRideCreated     RideEventType = "ride_created"
	EventStatusChanged   RideEventType = "status_changed"
	EventDriverAssigned  RideEventType = "driver_assigned"
	EventDriversNotified RideEventType = "drivers_notified"
	EventPriceCalculated RideEventType = "price_calculated"
)

// StatusBearing reports whether events of this type record a real
// status transition. The others annotate a ride without moving it.
func (t RideEventType) StatusBearing() bool {
	switch t {
	case EventRideCreated, EventStatusChanged, EventDriverAssigned:
		return true
	}
	return false
}

// EventMetadata is a closed set of typed metadata variants, one per
// RideEventType. Implementations are the only valid metadata payloads;
// free-form maps are deliberately not representable.
type EventMetadata interface {
	EventType() RideEventType
}

// RideCreatedMetadata records how a ride entered the system.
type RideCreatedMetadata struct {
	IsScheduled bool `json:"is_scheduled"`
}

func (RideCreatedMetadata) EventType() RideEventType { return EventRideCreated }

// StatusChangedMetadata carries the optional reason for a transition,
// set on cancellations.
type StatusChangedMetadata struct {
	Reason string `json:"reason,omitempty"`
}

func (StatusChangedMetadata) EventType() RideEventType { return EventStatusChanged }

// DriverAssignedMetadata records the winning driver of a claim.
type DriverAssignedMetadata struct {
	DriverID         string `json:"driver_id"`
	PreviousDriverID string `json:"previous_driver_id,omitempty"`
}

func (DriverAssignedMetadata) EventType() RideEventType { return EventDriverAssigned }

// DriversNotifiedMetadata records a dispatch round.
type DriversNotifiedMetadata struct {
	Notified int  `json:"notified"`
	PoolSize int  `json:"pool_size"`
	Rematch  bool `json:"rematch,omitempty"`
}

func (DriversNotifiedMetadata) EventType() RideEventType { return EventDriversNotified }

// PriceCalculatedMetadata records a fare computation attached to the ride.
type PriceCalculatedMetadata struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
	Final    bool    `json:"final"`
}

func (PriceCalculatedMetadata) EventType() RideEventType { return EventPriceCalculated }

// metadataEnvelope is the stored form of EventMetadata.
type metadataEnvelope struct {
	Type RideEventType   `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalEventMetadata serializes a metadata variant for storage.
func MarshalEventMetadata(m EventMetadata) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	env, err := json.Marshal(metadataEnvelope{Type: m.EventType(), Data: data})
	if err != nil {
		return "", err
	}
	return string(env), nil
}

// UnmarshalEventMetadata parses a stored metadata string back into its
// typed variant. Unknown types are an error; the set is closed.
func UnmarshalEventMetadata(s string) (EventMetadata, error) {
	if s == "" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, err
	}

	var m EventMetadata
	switch env.Type {
	case EventRideCreated:
		m = &RideCreatedMetadata{}
	case EventStatusChanged:
		m = &StatusChangedMetadata{}
	case EventDriverAssigned:
		m = &DriverAssignedMetadata{}
	case EventDriversNotified:
		m = &DriversNotifiedMetadata{}
	case EventPriceCalculated:
		m = &PriceCalculatedMetadata{}
	default:
		return nil, fmt.Errorf("unknown ride event metadata type %q", env.Type)
	}

	if err := json.Unmarshal(env.Data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RideEvent is an append-only audit record. Events are never mutated or
// deleted. Entries with a status-bearing Type (ride_created,
// status_changed, driver_assigned) record real transitions; replaying
// their ToStatus sequence must reproduce the ride's current status.
// The other types annotate the ride without moving it, and carry the
// status it held at the time in both fields.
type RideEvent struct {
	ID         string
	RideID     string
	Type       RideEventType
	FromStatus RideStatus // empty for the creation event
	ToStatus   RideStatus
	ActorID    string // user who triggered the transition

	// Optional actor location at the time of the transition.
	Lat         float64
	Lng         float64
	HasLocation bool

	Metadata string // serialized EventMetadata, may be empty

	CreatedAt time.Time
}
