// Package realtime implements the websocket fan-out layer. Delivery is
// best effort and at most once; durable state lives in the
// repositories, never here.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"ridehail/internal/domain"
)

// EventSink receives domain-relevant client messages. The service layer
// implements it; the bus stays free of persistence concerns.
type EventSink interface {
	DriverLocationUpdated(ctx context.Context, driverID string, lat, lng float64) error
	DriverWentOnline(ctx context.Context, driverID string) error
	DriverWentOffline(ctx context.Context, driverID string) error
}

// Bus tracks authenticated connections and per-ride rooms, and fans
// domain notifications out to them.
type Bus struct {
	mu     sync.RWMutex
	byUser map[clientKey]*client
	rooms  map[string]map[*client]struct{}

	sink   EventSink
	logger *slog.Logger
	now    func() time.Time
}

// NewBus creates a Bus with no connections.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		byUser: make(map[clientKey]*client),
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger,
		now:    time.Now,
	}
}

// SetSink wires the domain handler for inbound messages. Must be called
// before the first connection is accepted.
func (b *Bus) SetSink(sink EventSink) {
	b.sink = sink
}

// HandleConnection runs the read loop for one connection until it
// closes. The first message must be an auth envelope; anything else is
// answered with an error and dropped.
func (b *Bus) HandleConnection(ctx context.Context, conn Conn) {
	var c *client

	defer func() {
		if c != nil {
			b.unregister(c)
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			if c != nil {
				b.sendError(c, "invalid message format")
			} else {
				b.writeError(conn, "invalid message format")
			}
			continue
		}

		if c == nil {
			if env.Type != MessageAuth {
				b.writeError(conn, "authentication required")
				continue
			}
			c = b.handleAuth(conn, env)
			continue
		}

		b.handleMessage(ctx, c, env)
	}
}

func (b *Bus) handleAuth(conn Conn, env Envelope) *client {
	var payload AuthPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.UserID == "" || !domain.ValidRole(domain.Role(payload.Role)) {
		b.writeError(conn, "invalid auth payload")
		return nil
	}

	c := &client{conn: conn, userID: payload.UserID, role: payload.Role}
	b.register(c)
	b.logger.Info("websocket client authenticated", "user_id", c.userID, "role", c.role)

	c.send(NewEnvelope(MessageAuth, AuthResultPayload{Success: true}, b.now()))
	return c
}

func (b *Bus) handleMessage(ctx context.Context, c *client, env Envelope) {
	switch env.Type {
	case MessagePing:
		c.send(NewEnvelope(MessagePong, struct{}{}, b.now()))

	case MessageAuth:
		// Already authenticated; acknowledge without re-registering.
		c.send(NewEnvelope(MessageAuth, AuthResultPayload{Success: true}, b.now()))

	case MessageDriverLocationUpdate:
		b.handleLocationUpdate(ctx, c, env, string(domain.RoleDriver))

	case MessagePassengerLocationUpdate:
		b.handleLocationUpdate(ctx, c, env, string(domain.RolePassenger))

	case MessageDriverOnline:
		b.handlePresence(ctx, c, true)

	case MessageDriverOffline:
		b.handlePresence(ctx, c, false)

	default:
		b.logger.Warn("unknown websocket message type", "type", env.Type, "user_id", c.userID)
	}
}

func (b *Bus) handleLocationUpdate(ctx context.Context, c *client, env Envelope, wantRole string) {
	if c.role != wantRole {
		b.sendError(c, "unauthorized location update")
		return
	}

	var payload LocationPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		b.sendError(c, "invalid location payload")
		return
	}
	payload.UserID = c.userID

	if c.role == string(domain.RoleDriver) && b.sink != nil {
		if err := b.sink.DriverLocationUpdated(ctx, c.userID, payload.Lat, payload.Lng); err != nil {
			b.logger.Warn("failed to persist driver location", "driver_id", c.userID, "error", err)
		}
	}

	if payload.RideID != "" {
		b.broadcastToRide(payload.RideID, NewEnvelope(env.Type, payload, b.now()), c)
	}
}

func (b *Bus) handlePresence(ctx context.Context, c *client, online bool) {
	if c.role != string(domain.RoleDriver) {
		b.sendError(c, "unauthorized presence update")
		return
	}
	if b.sink == nil {
		return
	}

	var err error
	if online {
		err = b.sink.DriverWentOnline(ctx, c.userID)
	} else {
		err = b.sink.DriverWentOffline(ctx, c.userID)
	}
	if err != nil {
		b.logger.Warn("failed to update driver presence", "driver_id", c.userID, "online", online, "error", err)
		b.sendError(c, "presence update failed")
	}
}

// register adds a client to the registry. A newer connection for the
// same user and role replaces the older one, which is closed.
func (b *Bus) register(c *client) {
	key := clientKey{userID: c.userID, role: c.role}

	b.mu.Lock()
	old, existed := b.byUser[key]
	b.byUser[key] = c
	b.mu.Unlock()

	if existed {
		old.conn.Close()
		b.removeFromRooms(old)
	}
}

func (b *Bus) unregister(c *client) {
	key := clientKey{userID: c.userID, role: c.role}

	b.mu.Lock()
	if b.byUser[key] == c {
		delete(b.byUser, key)
	}
	b.mu.Unlock()

	b.removeFromRooms(c)
	b.logger.Info("websocket client disconnected", "user_id", c.userID, "role", c.role)
}

func (b *Bus) removeFromRooms(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for rideID, room := range b.rooms {
		if _, ok := room[c]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(b.rooms, rideID)
			}
		}
	}
}

// OpenRoom creates the room for a ride and joins the passenger and
// driver connections that are currently online.
func (b *Bus) OpenRoom(rideID, passengerID, driverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[rideID]
	if !ok {
		room = make(map[*client]struct{})
		b.rooms[rideID] = room
	}
	if c, ok := b.byUser[clientKey{userID: passengerID, role: string(domain.RolePassenger)}]; ok {
		room[c] = struct{}{}
	}
	if c, ok := b.byUser[clientKey{userID: driverID, role: string(domain.RoleDriver)}]; ok {
		room[c] = struct{}{}
	}
}

// CloseRoom drops the room for a ride. Members stay connected.
func (b *Bus) CloseRoom(rideID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, rideID)
}

// SendToUser delivers an envelope to one connection. Returns false when
// the user is not connected.
func (b *Bus) SendToUser(userID, role string, env Envelope) bool {
	b.mu.RLock()
	c, ok := b.byUser[clientKey{userID: userID, role: role}]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	if err := c.send(env); err != nil {
		b.logger.Warn("websocket send failed", "user_id", userID, "role", role, "error", err)
		return false
	}
	return true
}

// BroadcastToRide delivers an envelope to every member of a ride room.
func (b *Bus) BroadcastToRide(rideID string, env Envelope) {
	b.broadcastToRide(rideID, env, nil)
}

func (b *Bus) broadcastToRide(rideID string, env Envelope, exclude *client) {
	b.mu.RLock()
	room := b.rooms[rideID]
	members := make([]*client, 0, len(room))
	for c := range room {
		if c != exclude {
			members = append(members, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range members {
		if err := c.send(env); err != nil {
			b.logger.Warn("websocket broadcast failed", "ride_id", rideID, "user_id", c.userID, "error", err)
		}
	}
}

// Envelope stamps a payload with the bus clock.
func (b *Bus) Envelope(msgType MessageType, payload any) Envelope {
	return NewEnvelope(msgType, payload, b.now())
}

// ConnectedCount returns the number of authenticated connections.
func (b *Bus) ConnectedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byUser)
}

// ActiveRoomCount returns the number of open ride rooms.
func (b *Bus) ActiveRoomCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}

// writeError is for connections that have no client yet. Authenticated
// paths use sendError so writes stay serialized.
func (b *Bus) writeError(conn Conn, msg string) {
	conn.WriteJSON(NewEnvelope(MessageError, ErrorPayload{Error: msg}, b.now()))
}

func (b *Bus) sendError(c *client, msg string) {
	c.send(NewEnvelope(MessageError, ErrorPayload{Error: msg}, b.now()))
}
