package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/config"
	"ridehail/internal/dispatch"
	"ridehail/internal/domain"
	"ridehail/internal/geo"
	"ridehail/internal/pricing"
	"ridehail/internal/realtime"
	"ridehail/internal/repository"
)

// Duration estimates assume city traffic speed until a routing provider
// supplies real ETAs.
const assumedSpeedKmh = 30.0

const dispatchLockTTL = 10 * time.Second

// RideLocker serializes dispatch rounds for one ride across instances.
type RideLocker interface {
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error)
	ReleaseRideLock(ctx context.Context, rideID string) error
}

// RideService handles the ride lifecycle: request, dispatch, claim,
// progress, completion and cancellation.
type RideService struct {
	rides  repository.RideRepository
	users  repository.UserRepository
	events repository.RideEventRepository

	engine    *dispatch.Engine
	rematcher *dispatch.Rematcher
	notifier  Notifier
	locks     RideLocker // may be nil

	tariff      config.TariffConfig
	dispatchCfg config.DispatchConfig
	clock       pricing.Clock
	logger      *slog.Logger
}

// NewRideService creates a RideService.
func NewRideService(
	rides repository.RideRepository,
	users repository.UserRepository,
	events repository.RideEventRepository,
	engine *dispatch.Engine,
	rematcher *dispatch.Rematcher,
	notifier Notifier,
	locks RideLocker,
	tariff config.TariffConfig,
	dispatchCfg config.DispatchConfig,
	clock pricing.Clock,
	logger *slog.Logger,
) *RideService {
	return &RideService{
		rides:       rides,
		users:       users,
		events:      events,
		engine:      engine,
		rematcher:   rematcher,
		notifier:    notifier,
		locks:       locks,
		tariff:      tariff,
		dispatchCfg: dispatchCfg,
		clock:       clock,
		logger:      logger,
	}
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	PassengerID        string
	OriginAddress      string
	OriginLat          float64
	OriginLng          float64
	DestinationAddress string
	DestinationLat     float64
	DestinationLng     float64
	ScheduledAt        time.Time // zero for immediate pickup
}

// RequestRide creates a ride, estimates its fare and starts dispatch.
// Scheduled rides stay in requested state until their pickup time.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if !geo.ValidLatitude(req.OriginLat) || !geo.ValidLongitude(req.OriginLng) ||
		!geo.ValidLatitude(req.DestinationLat) || !geo.ValidLongitude(req.DestinationLng) {
		return nil, ErrInvalidLocation
	}

	now := s.clock.Now()
	if !req.ScheduledAt.IsZero() && !req.ScheduledAt.After(now) {
		return nil, ErrInvalidScheduleTime
	}

	passenger, err := s.users.GetByID(ctx, req.PassengerID)
	if err == repository.ErrNotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if passenger.Role != domain.RolePassenger {
		return nil, ErrInvalidRole
	}

	// One active ride per passenger, checked before any dispatch work.
	if _, err := s.rides.GetActiveForPassenger(ctx, req.PassengerID); err == nil {
		return nil, ErrPassengerHasActiveRide
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	distanceKm := geo.HaversineKm(req.OriginLat, req.OriginLng, req.DestinationLat, req.DestinationLng)
	durationMinutes := distanceKm / assumedSpeedKmh * 60

	breakdown := pricing.Calculate(s.fareInput(distanceKm, durationMinutes), s.clock)
	serialized, err := pricing.Serialize(breakdown)
	if err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:                 uuid.New().String(),
		PassengerID:        req.PassengerID,
		Status:             domain.RideStatusRequested,
		OriginAddress:      req.OriginAddress,
		OriginLat:          req.OriginLat,
		OriginLng:          req.OriginLng,
		DestinationAddress: req.DestinationAddress,
		DestinationLat:     req.DestinationLat,
		DestinationLng:     req.DestinationLng,
		DistanceKm:         distanceKm,
		DurationMinutes:    durationMinutes,
		PriceEstimate:      breakdown.Total,
		FareBreakdown:      serialized,
		IsScheduled:        !req.ScheduledAt.IsZero(),
		ScheduledAt:        req.ScheduledAt,
		CreatedAt:          now,
	}

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, ride.ID, "", domain.RideStatusRequested, req.PassengerID, domain.RideCreatedMetadata{IsScheduled: ride.IsScheduled})
	s.appendEvent(ctx, ride.ID, domain.RideStatusRequested, domain.RideStatusRequested, "", domain.PriceCalculatedMetadata{
		Total:    breakdown.Total,
		Currency: breakdown.Currency,
		Final:    false,
	})

	if ride.IsScheduled {
		s.logger.Info("scheduled ride created", "ride_id", ride.ID, "scheduled_at", ride.ScheduledAt)
		return ride, nil
	}

	if err := s.beginMatching(ctx, ride); err != nil {
		s.logger.Error("dispatch failed after ride creation", "ride_id", ride.ID, "error", err)
	}
	return ride, nil
}

// beginMatching moves a requested ride into matching and runs the first
// dispatch round.
func (s *RideService) beginMatching(ctx context.Context, ride *domain.Ride) error {
	if err := s.rides.UpdateStatus(ctx, ride.ID, domain.RideStatusRequested, domain.RideStatusMatching, s.clock.Now()); err != nil {
		return err
	}
	s.appendEvent(ctx, ride.ID, domain.RideStatusRequested, domain.RideStatusMatching, "", nil)
	ride.Status = domain.RideStatusMatching

	return s.dispatchRound(ctx, ride, s.dispatchCfg.MaxNotifyDrivers, false)
}

// dispatchRound finds nearby drivers, offers them the ride, and arms
// the re-match timer. The per-ride lock keeps concurrent rounds from
// double-offering.
func (s *RideService) dispatchRound(ctx context.Context, ride *domain.Ride, poolSize int, rematch bool) error {
	if s.locks != nil {
		acquired, err := s.locks.AcquireRideLock(ctx, ride.ID, dispatchLockTTL)
		if err != nil {
			s.logger.Warn("ride lock unavailable, dispatching without it", "ride_id", ride.ID, "error", err)
		} else if !acquired {
			s.logger.Info("dispatch round already running", "ride_id", ride.ID)
			return nil
		} else {
			defer s.locks.ReleaseRideLock(ctx, ride.ID)
		}
	}

	candidates, err := s.engine.FindNearbyDrivers(ctx, ride.OriginLat, ride.OriginLng, s.dispatchCfg.SearchRadiusKm, poolSize)
	if err != nil {
		return err
	}

	notified := 0
	for _, c := range candidates {
		env := s.notifier.Envelope(realtime.MessageRideOffered, realtime.RideOfferedPayload{
			RideID:        ride.ID,
			OriginAddress: ride.OriginAddress,
			OriginLat:     ride.OriginLat,
			OriginLng:     ride.OriginLng,
			DestAddress:   ride.DestinationAddress,
			DistanceKm:    ride.DistanceKm,
			PriceEstimate: ride.PriceEstimate,
			PickupKm:      c.DistanceKm,
		})
		if s.notifier.SendToUser(c.DriverID, string(domain.RoleDriver), env) {
			notified++
		}
	}

	s.appendEvent(ctx, ride.ID, ride.Status, ride.Status, "", domain.DriversNotifiedMetadata{
		Notified: notified,
		PoolSize: len(candidates),
		Rematch:  rematch,
	})
	s.logger.Info("drivers notified", "ride_id", ride.ID, "notified", notified, "pool", len(candidates), "rematch", rematch)

	// The offer stands once candidates were found. Delivery is best
	// effort; drivers without a live socket still see the ride through
	// the open-rides listing, and the re-match timer retries the push.
	if len(candidates) > 0 && ride.Status == domain.RideStatusMatching {
		if err := s.rides.UpdateStatus(ctx, ride.ID, domain.RideStatusMatching, domain.RideStatusOffered, s.clock.Now()); err != nil {
			if err != repository.ErrConflict {
				return err
			}
		} else {
			s.appendEvent(ctx, ride.ID, domain.RideStatusMatching, domain.RideStatusOffered, "", nil)
			ride.Status = domain.RideStatusOffered
		}
	}

	rideID := ride.ID
	s.rematcher.Schedule(rideID, s.dispatchCfg.RematchTimeout, func() {
		s.runRematch(rideID)
	})
	return nil
}

// runRematch is the deferred dispatch attempt. The ride may have been
// claimed or cancelled while the timer was armed, so state is
// re-checked before offering again.
func (s *RideService) runRematch(rideID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		s.logger.Warn("rematch skipped, ride not loadable", "ride_id", rideID, "error", err)
		return
	}
	if ride.DriverID != "" || (ride.Status != domain.RideStatusMatching && ride.Status != domain.RideStatusOffered) {
		return
	}

	if err := s.dispatchRound(ctx, ride, s.dispatchCfg.RematchPoolSize, true); err != nil {
		s.logger.Error("rematch round failed", "ride_id", rideID, "error", err)
	}
}

// DispatchPending starts matching for scheduled rides whose pickup time
// has arrived and retries rides stuck without an armed timer. Intended
// to run on a ticker.
func (s *RideService) DispatchPending(ctx context.Context) error {
	available, err := s.rides.GetAvailable(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, ride := range available {
		if ride.Status == domain.RideStatusRequested && ride.IsScheduled && !ride.ScheduledAt.After(now) {
			if err := s.beginMatching(ctx, ride); err != nil {
				s.logger.Error("scheduled dispatch failed", "ride_id", ride.ID, "error", err)
			}
		}
	}

	stalled, err := s.rides.GetForMatching(ctx)
	if err != nil {
		return err
	}
	for _, ride := range stalled {
		if s.rematcher.Pending(ride.ID) {
			continue
		}
		if err := s.dispatchRound(ctx, ride, s.dispatchCfg.RematchPoolSize, true); err != nil {
			s.logger.Error("pending dispatch failed", "ride_id", ride.ID, "error", err)
		}
	}
	return nil
}

// ListOpenRides returns unassigned rides a driver could still claim,
// oldest first.
func (s *RideService) ListOpenRides(ctx context.Context) ([]*domain.Ride, error) {
	return s.rides.GetAvailable(ctx)
}

// AcceptRide lets a driver claim a ride. Exactly one concurrent caller
// wins; everyone else gets ErrRideAlreadyClaimed.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.users.GetByID(ctx, driverID)
	if err == repository.ErrNotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if driver.Role != domain.RoleDriver {
		return nil, ErrInvalidRole
	}
	if driver.DriverStatus != domain.DriverStatusOnline {
		return nil, ErrDriverOffline
	}

	if _, err := s.rides.GetActiveForDriver(ctx, driverID); err == nil {
		return nil, ErrDriverHasActiveRide
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}

	// The audit trail records the status the claim actually won from,
	// not the one read above; a dispatch round can move the ride in
	// between.
	now := s.clock.Now()
	fromStatus, err := s.rides.AssignDriver(ctx, rideID, driverID, now)
	if err != nil {
		switch err {
		case repository.ErrNotFound:
			return nil, ErrRideNotFound
		case repository.ErrConflict:
			return nil, s.claimConflict(ctx, rideID)
		default:
			return nil, err
		}
	}

	s.rematcher.Cancel(rideID)

	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	ride.AcceptedAt = now

	s.appendEvent(ctx, rideID, fromStatus, domain.RideStatusAccepted, driverID, domain.DriverAssignedMetadata{DriverID: driverID})

	s.notifier.OpenRoom(rideID, ride.PassengerID, driverID)
	s.notifier.SendToUser(ride.PassengerID, string(domain.RolePassenger), s.notifier.Envelope(realtime.MessageRideAccepted, realtime.RideAcceptedPayload{
		RideID:     rideID,
		DriverID:   driverID,
		DriverName: driver.Name,
	}))
	s.broadcastStatus(rideID, fromStatus, domain.RideStatusAccepted)

	s.logger.Info("ride claimed", "ride_id", rideID, "driver_id", driverID)
	return ride, nil
}

// claimConflict translates a failed claim into the caller-facing error.
// An assigned ride is a lost race; anything else the claim cannot reach
// (terminal, or still mid-dispatch) is a transition problem.
func (s *RideService) claimConflict(ctx context.Context, rideID string) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return ErrRideAlreadyClaimed
	}
	if ride.DriverID != "" {
		return ErrRideAlreadyClaimed
	}
	return ErrInvalidStatusTransition
}

// UpdateStatus advances a ride through its lifecycle. Only the assigned
// driver may report progress; completion settles the final fare.
func (s *RideService) UpdateStatus(ctx context.Context, rideID, actorID string, to domain.RideStatus) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if !domain.IsKnownStatus(to) || to == domain.RideStatusCancelled {
		return nil, ErrInvalidStatusTransition
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}
	if ride.DriverID == "" || ride.DriverID != actorID {
		return nil, ErrNotRideParticipant
	}

	from := ride.Status
	if !domain.IsValidTransition(from, to) {
		return nil, ErrInvalidStatusTransition
	}

	now := s.clock.Now()
	if err := s.rides.UpdateStatus(ctx, rideID, from, to, now); err != nil {
		switch err {
		case repository.ErrNotFound:
			return nil, ErrRideNotFound
		case repository.ErrConflict:
			return nil, ErrInvalidStatusTransition
		default:
			return nil, err
		}
	}

	ride.Status = to
	switch to {
	case domain.RideStatusInProgress:
		ride.StartedAt = now
	case domain.RideStatusCompleted:
		ride.CompletedAt = now
	}

	s.appendEvent(ctx, rideID, from, to, actorID, nil)
	s.broadcastStatus(rideID, from, to)

	if to == domain.RideStatusCompleted {
		s.settleFinalFare(ctx, ride, now)
	}
	if domain.IsTerminalState(to) {
		s.rematcher.Cancel(rideID)
		s.notifier.CloseRoom(rideID)
	}

	return ride, nil
}

// settleFinalFare recomputes the fare from the actual trip duration.
// The surge window of the original quote is preserved by evaluating at
// the ride's creation instant.
func (s *RideService) settleFinalFare(ctx context.Context, ride *domain.Ride, completedAt time.Time) {
	durationMinutes := ride.DurationMinutes
	if !ride.StartedAt.IsZero() && completedAt.After(ride.StartedAt) {
		durationMinutes = completedAt.Sub(ride.StartedAt).Minutes()
	}

	breakdown := pricing.Calculate(s.fareInput(ride.DistanceKm, durationMinutes), pricing.FixedClock{Instant: ride.CreatedAt})
	serialized, err := pricing.Serialize(breakdown)
	if err != nil {
		s.logger.Error("final fare serialization failed", "ride_id", ride.ID, "error", err)
		return
	}

	if err := s.rides.SetFinalFare(ctx, ride.ID, breakdown.Total, serialized); err != nil {
		s.logger.Error("final fare persistence failed", "ride_id", ride.ID, "error", err)
		return
	}

	ride.FinalPrice = breakdown.Total
	ride.FareBreakdown = serialized

	s.appendEvent(ctx, ride.ID, ride.Status, ride.Status, "", domain.PriceCalculatedMetadata{
		Total:    breakdown.Total,
		Currency: breakdown.Currency,
		Final:    true,
	})
}

// CancelRide cancels a ride on behalf of its passenger or assigned
// driver.
func (s *RideService) CancelRide(ctx context.Context, rideID, actorID, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, err
	}
	if actorID != ride.PassengerID && (ride.DriverID == "" || actorID != ride.DriverID) {
		return nil, ErrNotRideParticipant
	}

	from := ride.Status
	if !domain.IsValidTransition(from, domain.RideStatusCancelled) {
		return nil, ErrInvalidStatusTransition
	}

	now := s.clock.Now()
	if err := s.rides.UpdateStatus(ctx, rideID, from, domain.RideStatusCancelled, now); err != nil {
		switch err {
		case repository.ErrNotFound:
			return nil, ErrRideNotFound
		case repository.ErrConflict:
			return nil, ErrInvalidStatusTransition
		default:
			return nil, err
		}
	}

	s.rematcher.Cancel(rideID)

	ride.Status = domain.RideStatusCancelled
	ride.CancelledAt = now

	s.appendEvent(ctx, rideID, from, domain.RideStatusCancelled, actorID, domain.StatusChangedMetadata{Reason: reason})
	s.broadcastStatus(rideID, from, domain.RideStatusCancelled)
	s.notifier.CloseRoom(rideID)

	s.logger.Info("ride cancelled", "ride_id", rideID, "actor_id", actorID, "from", from)
	return ride, nil
}

// QuoteRequest contains the parameters for a fare quote.
type QuoteRequest struct {
	OriginLat      float64
	OriginLng      float64
	DestinationLat float64
	DestinationLng float64
}

// Quote estimates a fare without creating a ride.
func (s *RideService) Quote(ctx context.Context, req QuoteRequest) (pricing.FareBreakdown, float64, error) {
	if !geo.ValidLatitude(req.OriginLat) || !geo.ValidLongitude(req.OriginLng) ||
		!geo.ValidLatitude(req.DestinationLat) || !geo.ValidLongitude(req.DestinationLng) {
		return pricing.FareBreakdown{}, 0, ErrInvalidLocation
	}

	distanceKm := geo.HaversineKm(req.OriginLat, req.OriginLng, req.DestinationLat, req.DestinationLng)
	durationMinutes := distanceKm / assumedSpeedKmh * 60

	return pricing.Calculate(s.fareInput(distanceKm, durationMinutes), s.clock), distanceKm, nil
}

// GetRide returns one ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.rides.GetByID(ctx, rideID)
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	return ride, err
}

// GetActiveRide returns a user's current non-terminal ride.
func (s *RideService) GetActiveRide(ctx context.Context, userID string, role domain.Role) (*domain.Ride, error) {
	var (
		ride *domain.Ride
		err  error
	)
	switch role {
	case domain.RoleDriver:
		ride, err = s.rides.GetActiveForDriver(ctx, userID)
	default:
		ride, err = s.rides.GetActiveForPassenger(ctx, userID)
	}
	if err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	}
	return ride, err
}

// ListHistory returns a user's rides, newest first.
func (s *RideService) ListHistory(ctx context.Context, userID string, role domain.Role) ([]*domain.Ride, error) {
	if role == domain.RoleDriver {
		return s.rides.GetByDriver(ctx, userID)
	}
	return s.rides.GetByPassenger(ctx, userID)
}

// ListEvents returns the audit trail of a ride in append order.
func (s *RideService) ListEvents(ctx context.Context, rideID string) ([]*domain.RideEvent, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if _, err := s.rides.GetByID(ctx, rideID); err == repository.ErrNotFound {
		return nil, ErrRideNotFound
	} else if err != nil {
		return nil, err
	}
	return s.events.ListByRide(ctx, rideID)
}

func (s *RideService) fareInput(distanceKm, durationMinutes float64) pricing.Input {
	return pricing.Input{
		DistanceKm:        distanceKm,
		DurationMinutes:   durationMinutes,
		BaseFare:          s.tariff.BaseFare,
		PricePerKm:        s.tariff.PricePerKm,
		PricePerMinute:    s.tariff.PricePerMinute,
		MinimumFare:       s.tariff.MinimumFare,
		Currency:          s.tariff.Currency,
		SurgePricing:      s.tariff.SurgeEnabled,
		CommissionPercent: s.tariff.CommissionPercent,
	}
}

// appendEvent records an audit entry. Event failures are logged, never
// surfaced; the ride transition has already committed.
func (s *RideService) appendEvent(ctx context.Context, rideID string, from, to domain.RideStatus, actorID string, metadata domain.EventMetadata) {
	serialized, err := domain.MarshalEventMetadata(metadata)
	if err != nil {
		s.logger.Error("event metadata marshal failed", "ride_id", rideID, "error", err)
		return
	}

	eventType := domain.EventStatusChanged
	if metadata != nil {
		eventType = metadata.EventType()
	}

	event := &domain.RideEvent{
		ID:         uuid.New().String(),
		RideID:     rideID,
		Type:       eventType,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Metadata:   serialized,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("event append failed", "ride_id", rideID, "type", to, "error", err)
	}
}

func (s *RideService) broadcastStatus(rideID string, from, to domain.RideStatus) {
	s.notifier.BroadcastToRide(rideID, s.notifier.Envelope(realtime.MessageRideStatusChanged, realtime.RideStatusChangedPayload{
		RideID:    rideID,
		OldStatus: string(from),
		NewStatus: string(to),
	}))
}
