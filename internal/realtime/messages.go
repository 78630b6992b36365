package realtime

import (
	"encoding/json"
	"time"
)

// MessageType identifies a websocket message.
type MessageType string

const (
	MessageAuth                    MessageType = "auth"
	MessageRideOffered             MessageType = "ride_offered"
	MessageRideAccepted            MessageType = "ride_accepted"
	MessageRideStatusChanged       MessageType = "ride_status_changed"
	MessageDriverLocationUpdate    MessageType = "driver_location_update"
	MessagePassengerLocationUpdate MessageType = "passenger_location_update"
	MessageDriverOnline            MessageType = "driver_online"
	MessageDriverOffline           MessageType = "driver_offline"
	MessageError                   MessageType = "error"
	MessagePing                    MessageType = "ping"
	MessagePong                    MessageType = "pong"
)

// Envelope is the wire format for every websocket message, inbound and
// outbound. Timestamp is epoch milliseconds.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewEnvelope wraps a payload for sending. Marshal errors are treated
// as programmer errors and surface as an empty payload.
func NewEnvelope(msgType MessageType, payload any, at time.Time) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Envelope{
		Type:      msgType,
		Payload:   data,
		Timestamp: at.UnixMilli(),
	}
}

// AuthPayload authenticates a connection. It must be the first message
// a client sends.
type AuthPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// AuthResultPayload acknowledges authentication.
type AuthResultPayload struct {
	Success bool `json:"success"`
}

// ErrorPayload carries a client-facing error message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// RideOfferedPayload is sent to a driver when a ride is available to
// claim.
type RideOfferedPayload struct {
	RideID        string  `json:"rideId"`
	OriginAddress string  `json:"originAddress"`
	OriginLat     float64 `json:"originLat"`
	OriginLng     float64 `json:"originLng"`
	DestAddress   string  `json:"destAddress"`
	DistanceKm    float64 `json:"distanceKm"`
	PriceEstimate float64 `json:"priceEstimate"`
	PickupKm      float64 `json:"pickupKm"`
}

// RideAcceptedPayload is sent to the passenger when a driver claims the
// ride.
type RideAcceptedPayload struct {
	RideID     string `json:"rideId"`
	DriverID   string `json:"driverId"`
	DriverName string `json:"driverName"`
}

// RideStatusChangedPayload is broadcast to a ride room on every
// lifecycle change.
type RideStatusChangedPayload struct {
	RideID    string `json:"rideId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// LocationPayload carries a live position inside an active ride.
type LocationPayload struct {
	RideID string  `json:"rideId,omitempty"`
	UserID string  `json:"userId,omitempty"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// PresencePayload carries driver availability changes.
type PresencePayload struct {
	DriverID string `json:"driverId"`
}
