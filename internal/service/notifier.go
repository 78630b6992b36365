package service

import "ridehail/internal/realtime"

// Notifier is the realtime surface the services push to. *realtime.Bus
// implements it; tests substitute a recorder.
type Notifier interface {
	Envelope(msgType realtime.MessageType, payload any) realtime.Envelope
	SendToUser(userID, role string, env realtime.Envelope) bool
	BroadcastToRide(rideID string, env realtime.Envelope)
	OpenRoom(rideID, passengerID, driverID string)
	CloseRoom(rideID string)
}

var _ Notifier = (*realtime.Bus)(nil)
