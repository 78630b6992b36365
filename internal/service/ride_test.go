package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ridehail/internal/config"
	"ridehail/internal/dispatch"
	"ridehail/internal/domain"
	"ridehail/internal/pricing"
	"ridehail/internal/realtime"
	"ridehail/internal/repository/memory"
)

// fakeNotifier records realtime traffic instead of delivering it.
type fakeNotifier struct {
	mu          sync.Mutex
	sent        []sentMessage
	broadcasts  []realtime.Envelope
	openRooms   map[string]bool
	unreachable bool // when set, SendToUser reports every user offline
}

type sentMessage struct {
	userID string
	role   string
	env    realtime.Envelope
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{openRooms: make(map[string]bool)}
}

func (n *fakeNotifier) Envelope(msgType realtime.MessageType, payload any) realtime.Envelope {
	return realtime.NewEnvelope(msgType, payload, time.Now())
}

func (n *fakeNotifier) SendToUser(userID, role string, env realtime.Envelope) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unreachable {
		return false
	}
	n.sent = append(n.sent, sentMessage{userID: userID, role: role, env: env})
	return true
}

func (n *fakeNotifier) BroadcastToRide(rideID string, env realtime.Envelope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, env)
}

func (n *fakeNotifier) OpenRoom(rideID, passengerID, driverID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.openRooms[rideID] = true
}

func (n *fakeNotifier) CloseRoom(rideID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.openRooms, rideID)
}

func (n *fakeNotifier) sentOfType(msgType realtime.MessageType) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.env.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

type rideFixture struct {
	rides     *memory.RideRepository
	users     *memory.UserRepository
	events    *memory.RideEventRepository
	locations *memory.LocationRepository
	notifier  *fakeNotifier
	clock     *pricing.FixedClock
	service   *RideService
}

func newRideFixture(t *testing.T) *rideFixture {
	t.Helper()

	rides := memory.NewRideRepository()
	users := memory.NewUserRepository()
	events := memory.NewRideEventRepository()
	locations := memory.NewLocationRepository()
	notifier := newFakeNotifier()

	// Tuesday noon, outside every surge window.
	clock := &pricing.FixedClock{Instant: time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)}

	tariff := config.TariffConfig{
		BaseFare:       2.50,
		PricePerKm:     1.20,
		PricePerMinute: 0.35,
		MinimumFare:    5.00,
		Currency:       "USD",
	}
	dispatchCfg := config.DispatchConfig{
		SearchRadiusKm:   5.0,
		MaxNotifyDrivers: 5,
		RematchPoolSize:  10,
		RematchTimeout:   time.Hour, // tests drive re-match manually
	}

	engine := dispatch.NewEngine(users, locations, nil, 0)
	rematcher := dispatch.NewRematcher()
	t.Cleanup(rematcher.Stop)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewRideService(rides, users, events, engine, rematcher, notifier, nil, tariff, dispatchCfg, clock, logger)

	fx := &rideFixture{
		rides:     rides,
		users:     users,
		events:    events,
		locations: locations,
		notifier:  notifier,
		clock:     clock,
		service:   svc,
	}
	fx.addUser(t, "passenger-1", domain.RolePassenger, "")
	return fx
}

func (fx *rideFixture) addUser(t *testing.T, id string, role domain.Role, status domain.DriverStatus) {
	t.Helper()
	err := fx.users.Create(context.Background(), &domain.User{
		ID:           id,
		Name:         id,
		Phone:        "555-" + id,
		Role:         role,
		DriverStatus: status,
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", id, err)
	}
}

func (fx *rideFixture) requestRide(t *testing.T) *domain.Ride {
	t.Helper()
	ride, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-1",
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
	})
	if err != nil {
		t.Fatalf("RequestRide failed: %v", err)
	}
	return ride
}

func (fx *rideFixture) addOnlineDriver(t *testing.T, id string) {
	t.Helper()
	fx.addUser(t, id, domain.RoleDriver, domain.DriverStatusOnline)
}

func (fx *rideFixture) addLocatedDriver(t *testing.T, id string, lat, lng float64) {
	t.Helper()
	fx.addOnlineDriver(t, id)
	err := fx.locations.Upsert(context.Background(), domain.DriverLocation{
		DriverID:  id,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: fx.clock.Instant,
	})
	if err != nil {
		t.Fatalf("failed to set location for %s: %v", id, err)
	}
}

func TestRequestRide_CreatesEstimatedRide(t *testing.T) {
	fx := newRideFixture(t)
	ride := fx.requestRide(t)

	if ride.PriceEstimate <= 0 {
		t.Errorf("price estimate = %v, want > 0", ride.PriceEstimate)
	}
	if ride.DistanceKm <= 0 {
		t.Errorf("distance = %v, want > 0", ride.DistanceKm)
	}

	fare, err := pricing.Parse(ride.FareBreakdown)
	if err != nil {
		t.Fatalf("fare breakdown did not parse: %v", err)
	}
	if fare.Total != ride.PriceEstimate {
		t.Errorf("breakdown total %v != estimate %v", fare.Total, ride.PriceEstimate)
	}

	// With no drivers online the ride parks in matching.
	if ride.Status != domain.RideStatusMatching {
		t.Errorf("status = %s, want matching", ride.Status)
	}

	events, err := fx.events.ListByRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ListByRide failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no events recorded")
	}
	if events[0].ToStatus != domain.RideStatusRequested || events[0].FromStatus != "" {
		t.Errorf("first event = %s -> %s, want creation", events[0].FromStatus, events[0].ToStatus)
	}
}

func TestRequestRide_AnnotationEventsCarryDistinctTypes(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)

	events, err := fx.events.ListByRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ListByRide failed: %v", err)
	}

	var sawPrice, sawNotified bool
	var last domain.RideStatus
	for _, event := range events {
		switch event.Type {
		case domain.EventPriceCalculated:
			sawPrice = true
		case domain.EventDriversNotified:
			sawNotified = true
		}
		if event.Type.StatusBearing() {
			last = event.ToStatus
			continue
		}
		// Annotations never move the ride.
		if event.FromStatus != event.ToStatus {
			t.Errorf("%s event recorded %s -> %s", event.Type, event.FromStatus, event.ToStatus)
		}
	}

	if !sawPrice {
		t.Error("no price_calculated event recorded")
	}
	if !sawNotified {
		t.Error("no drivers_notified event recorded")
	}
	if last != domain.RideStatusOffered {
		t.Errorf("replay of status-bearing events ends at %s, want offered", last)
	}
}

func TestRequestRide_SecondActiveRideRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.requestRide(t)

	_, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-1",
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
	})
	if err != ErrPassengerHasActiveRide {
		t.Errorf("err = %v, want ErrPassengerHasActiveRide", err)
	}
}

func TestRequestRide_InvalidCoordinatesRejected(t *testing.T) {
	fx := newRideFixture(t)

	_, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-1",
		OriginLat:      91.0,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
	})
	if err != ErrInvalidLocation {
		t.Errorf("err = %v, want ErrInvalidLocation", err)
	}
}

func TestRequestRide_NotifiesNearbyDrivers(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	fx.addLocatedDriver(t, "driver-2", 12.972, 77.59)

	ride := fx.requestRide(t)

	offers := fx.notifier.sentOfType(realtime.MessageRideOffered)
	if len(offers) != 2 {
		t.Fatalf("offers sent = %d, want 2", len(offers))
	}
	got := map[string]bool{}
	for _, offer := range offers {
		got[offer.userID] = true
	}
	if !got["driver-1"] || !got["driver-2"] {
		t.Errorf("offers went to %v, want driver-1 and driver-2", got)
	}

	// With live offers out the ride parks in offered.
	if ride.Status != domain.RideStatusOffered {
		t.Errorf("status = %s, want offered", ride.Status)
	}
}

func TestAcceptRide_HappyPath(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)

	claimed, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1")
	if err != nil {
		t.Fatalf("AcceptRide failed: %v", err)
	}
	if claimed.Status != domain.RideStatusAccepted {
		t.Errorf("status = %s, want accepted", claimed.Status)
	}
	if claimed.DriverID != "driver-1" {
		t.Errorf("driver = %s, want driver-1", claimed.DriverID)
	}
	if claimed.AcceptedAt.IsZero() {
		t.Error("accepted_at not set")
	}

	// The passenger hears about it and the ride room opens.
	accepted := fx.notifier.sentOfType(realtime.MessageRideAccepted)
	if len(accepted) != 1 || accepted[0].userID != "passenger-1" {
		t.Errorf("ride_accepted notifications = %+v, want one to passenger-1", accepted)
	}
	fx.notifier.mu.Lock()
	roomOpen := fx.notifier.openRooms[ride.ID]
	fx.notifier.mu.Unlock()
	if !roomOpen {
		t.Error("ride room was not opened on accept")
	}
}

func TestAcceptRide_AuditRecordsClaimedFromStatus(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)

	// The dispatch round already moved the ride to offered before the
	// claim; the audit entry must record that edge, not an earlier read.
	if ride.Status != domain.RideStatusOffered {
		t.Fatalf("status = %s, want offered", ride.Status)
	}
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("AcceptRide failed: %v", err)
	}

	events, err := fx.events.ListByRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ListByRide failed: %v", err)
	}
	found := false
	for _, event := range events {
		if event.Type != domain.EventDriverAssigned {
			continue
		}
		found = true
		if event.FromStatus != domain.RideStatusOffered || event.ToStatus != domain.RideStatusAccepted {
			t.Errorf("driver_assigned event = %s -> %s, want offered -> accepted", event.FromStatus, event.ToStatus)
		}
	}
	if !found {
		t.Error("no driver_assigned event recorded")
	}
}

func TestAcceptRide_ExactlyOneWinner(t *testing.T) {
	fx := newRideFixture(t)

	const drivers = 8
	for i := 0; i < drivers; i++ {
		fx.addLocatedDriver(t, driverID(i), 12.971+float64(i)*0.001, 77.59)
	}
	ride := fx.requestRide(t)

	var wg sync.WaitGroup
	results := make([]error, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = fx.service.AcceptRide(context.Background(), ride.ID, driverID(i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch err {
		case nil:
			winners++
		case ErrRideAlreadyClaimed:
		default:
			t.Errorf("driver %d got unexpected error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	final, err := fx.rides.GetByID(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != domain.RideStatusAccepted || final.DriverID == "" {
		t.Errorf("final ride = %s driver %q, want accepted with a driver", final.Status, final.DriverID)
	}
}

func driverID(i int) string {
	return "driver-" + string(rune('a'+i))
}

func TestAcceptRide_OfflineDriverRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addUser(t, "driver-1", domain.RoleDriver, domain.DriverStatusOffline)
	ride := fx.requestRide(t)

	_, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1")
	if err != ErrDriverOffline {
		t.Errorf("err = %v, want ErrDriverOffline", err)
	}
}

func TestAcceptRide_DriverWithActiveRideRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	fx.addUser(t, "passenger-2", domain.RolePassenger, "")
	second, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-2",
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
	})
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}

	if _, err := fx.service.AcceptRide(context.Background(), second.ID, "driver-1"); err != ErrDriverHasActiveRide {
		t.Errorf("err = %v, want ErrDriverHasActiveRide", err)
	}
}

func TestAcceptRide_CancelledRideRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)

	if _, err := fx.service.CancelRide(context.Background(), ride.ID, "passenger-1", "changed plans"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1")
	if err != ErrInvalidStatusTransition {
		t.Errorf("err = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	steps := []domain.RideStatus{
		domain.RideStatusDriverEnRoute,
		domain.RideStatusDriverArrived,
		domain.RideStatusInProgress,
	}
	for _, step := range steps {
		if _, err := fx.service.UpdateStatus(context.Background(), ride.ID, "driver-1", step); err != nil {
			t.Fatalf("transition to %s failed: %v", step, err)
		}
	}

	// Trip takes 25 minutes.
	fx.clock.Instant = fx.clock.Instant.Add(25 * time.Minute)

	final, err := fx.service.UpdateStatus(context.Background(), ride.ID, "driver-1", domain.RideStatusCompleted)
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if final.Status != domain.RideStatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.FinalPrice <= 0 {
		t.Errorf("final price = %v, want > 0", final.FinalPrice)
	}

	fare, err := pricing.Parse(final.FareBreakdown)
	if err != nil {
		t.Fatalf("final breakdown did not parse: %v", err)
	}
	// 25 actual minutes at 0.35/min.
	if fare.TimeFare != 8.75 {
		t.Errorf("final time fare = %v, want 8.75", fare.TimeFare)
	}

	// Event replay reproduces the final status.
	events, err := fx.events.ListByRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ListByRide failed: %v", err)
	}
	var last domain.RideStatus
	for _, event := range events {
		if event.Type.StatusBearing() {
			last = event.ToStatus
		}
	}
	if last != domain.RideStatusCompleted {
		t.Errorf("event replay ends at %s, want completed", last)
	}

	// Terminal transition closes the room.
	fx.notifier.mu.Lock()
	roomOpen := fx.notifier.openRooms[ride.ID]
	fx.notifier.mu.Unlock()
	if roomOpen {
		t.Error("ride room still open after completion")
	}
}

func TestUpdateStatus_SkippingStagesRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if _, err := fx.service.UpdateStatus(context.Background(), ride.ID, "driver-1", domain.RideStatusCompleted); err != ErrInvalidStatusTransition {
		t.Errorf("err = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestUpdateStatus_OnlyAssignedDriver(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	fx.addOnlineDriver(t, "driver-2")
	ride := fx.requestRide(t)
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if _, err := fx.service.UpdateStatus(context.Background(), ride.ID, "driver-2", domain.RideStatusDriverEnRoute); err != ErrNotRideParticipant {
		t.Errorf("err = %v, want ErrNotRideParticipant", err)
	}
}

func TestCancelRide_ByPassenger(t *testing.T) {
	fx := newRideFixture(t)
	ride := fx.requestRide(t)

	cancelled, err := fx.service.CancelRide(context.Background(), ride.ID, "passenger-1", "changed plans")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelledAt.IsZero() {
		t.Error("cancelled_at not set")
	}

	// The reason survives in the audit trail.
	events, err := fx.events.ListByRide(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("ListByRide failed: %v", err)
	}
	found := false
	for _, event := range events {
		if event.ToStatus != domain.RideStatusCancelled {
			continue
		}
		metadata, err := domain.UnmarshalEventMetadata(event.Metadata)
		if err != nil {
			t.Fatalf("metadata parse failed: %v", err)
		}
		if sc, ok := metadata.(*domain.StatusChangedMetadata); ok && sc.Reason == "changed plans" {
			found = true
		}
	}
	if !found {
		t.Error("cancellation reason missing from events")
	}
}

func TestCancelRide_StrangerForbidden(t *testing.T) {
	fx := newRideFixture(t)
	ride := fx.requestRide(t)

	if _, err := fx.service.CancelRide(context.Background(), ride.ID, "someone-else", ""); err != ErrNotRideParticipant {
		t.Errorf("err = %v, want ErrNotRideParticipant", err)
	}
}

func TestCancelRide_CompletedRideRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)
	if _, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1"); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	for _, step := range []domain.RideStatus{domain.RideStatusDriverEnRoute, domain.RideStatusDriverArrived, domain.RideStatusInProgress, domain.RideStatusCompleted} {
		if _, err := fx.service.UpdateStatus(context.Background(), ride.ID, "driver-1", step); err != nil {
			t.Fatalf("transition to %s failed: %v", step, err)
		}
	}

	if _, err := fx.service.CancelRide(context.Background(), ride.ID, "passenger-1", ""); err != ErrInvalidStatusTransition {
		t.Errorf("err = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestQuote_DoesNotPersist(t *testing.T) {
	fx := newRideFixture(t)

	fare, distanceKm, err := fx.service.Quote(context.Background(), QuoteRequest{
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
	})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if fare.Total <= 0 || distanceKm <= 0 {
		t.Errorf("quote = %v at %v km, want positive values", fare.Total, distanceKm)
	}

	if _, err := fx.rides.GetActiveForPassenger(context.Background(), "passenger-1"); err == nil {
		t.Error("quote created a ride")
	}
}

func TestRequestRide_ScheduledStaysRequested(t *testing.T) {
	fx := newRideFixture(t)
	fx.addOnlineDriver(t, "driver-1")

	pickup := fx.clock.Instant.Add(2 * time.Hour)
	ride, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-1",
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
		ScheduledAt:    pickup,
	})
	if err != nil {
		t.Fatalf("scheduled request failed: %v", err)
	}
	if ride.Status != domain.RideStatusRequested {
		t.Errorf("status = %s, want requested", ride.Status)
	}
	if !ride.IsScheduled {
		t.Error("ride not marked scheduled")
	}

	// Once the pickup time arrives a sweep starts matching.
	fx.clock.Instant = pickup.Add(time.Minute)
	if err := fx.service.DispatchPending(context.Background()); err != nil {
		t.Fatalf("DispatchPending failed: %v", err)
	}

	after, err := fx.rides.GetByID(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status == domain.RideStatusRequested {
		t.Errorf("scheduled ride still requested after its pickup time")
	}
}

func TestRequestRide_PastScheduleRejected(t *testing.T) {
	fx := newRideFixture(t)

	_, err := fx.service.RequestRide(context.Background(), RequestRideRequest{
		PassengerID:    "passenger-1",
		OriginLat:      12.97,
		OriginLng:      77.59,
		DestinationLat: 13.00,
		DestinationLng: 77.62,
		ScheduledAt:    fx.clock.Instant.Add(-time.Hour),
	})
	if err != ErrInvalidScheduleTime {
		t.Errorf("err = %v, want ErrInvalidScheduleTime", err)
	}
}

func TestListOpenRides(t *testing.T) {
	fx := newRideFixture(t)
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)
	ride := fx.requestRide(t)

	open, err := fx.service.ListOpenRides(context.Background())
	if err != nil {
		t.Fatalf("ListOpenRides failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != ride.ID {
		t.Fatalf("open rides = %+v, want just %s", open, ride.ID)
	}

	if _, err := fx.service.CancelRide(context.Background(), ride.ID, "passenger-1", ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	open, err = fx.service.ListOpenRides(context.Background())
	if err != nil {
		t.Fatalf("ListOpenRides failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open rides after cancel = %d, want 0", len(open))
	}
}

func TestRequestRide_OfferStandsWhenDriverUnreachable(t *testing.T) {
	fx := newRideFixture(t)
	fx.notifier.unreachable = true
	fx.addLocatedDriver(t, "driver-1", 12.971, 77.59)

	// The driver is nearby but has no live socket. The offer still
	// stands and the ride stays claimable over HTTP.
	ride := fx.requestRide(t)
	if ride.Status != domain.RideStatusOffered {
		t.Fatalf("status = %s, want offered", ride.Status)
	}

	claimed, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1")
	if err != nil {
		t.Fatalf("AcceptRide failed: %v", err)
	}
	if claimed.Status != domain.RideStatusAccepted || claimed.DriverID != "driver-1" {
		t.Errorf("claim = %s by %q, want accepted by driver-1", claimed.Status, claimed.DriverID)
	}
}

func TestListOpenRides_MatchingRideHidden(t *testing.T) {
	fx := newRideFixture(t)

	// No drivers around, so the ride parks in matching. It is not
	// claimable there and must not be advertised to drivers.
	ride := fx.requestRide(t)
	if ride.Status != domain.RideStatusMatching {
		t.Fatalf("status = %s, want matching", ride.Status)
	}

	open, err := fx.service.ListOpenRides(context.Background())
	if err != nil {
		t.Fatalf("ListOpenRides failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open rides = %d, want 0", len(open))
	}
}

func TestAcceptRide_MidDispatchRejected(t *testing.T) {
	fx := newRideFixture(t)
	fx.addOnlineDriver(t, "driver-1")
	ride := fx.requestRide(t)
	if ride.Status != domain.RideStatusMatching {
		t.Fatalf("status = %s, want matching", ride.Status)
	}

	// A ride still being dispatched is not claimable, and the error
	// says so instead of blaming a phantom winner.
	_, err := fx.service.AcceptRide(context.Background(), ride.ID, "driver-1")
	if err != ErrInvalidStatusTransition {
		t.Errorf("err = %v, want ErrInvalidStatusTransition", err)
	}
}
