package service

import (
	"context"
	"log/slog"

	"ridehail/internal/domain"
	"ridehail/internal/geo"
	"ridehail/internal/pricing"
	"ridehail/internal/realtime"
	"ridehail/internal/repository"
)

// DriverService handles driver presence and positions. It doubles as
// the websocket event sink, so presence and location changes arrive
// over HTTP and over the socket through the same code path.
type DriverService struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	clock     pricing.Clock
	logger    *slog.Logger
}

// NewDriverService creates a DriverService.
func NewDriverService(users repository.UserRepository, locations repository.LocationRepository, clock pricing.Clock, logger *slog.Logger) *DriverService {
	return &DriverService{
		users:     users,
		locations: locations,
		clock:     clock,
		logger:    logger,
	}
}

var _ realtime.EventSink = (*DriverService)(nil)

// UpdateLocation stores a driver's current position.
func (s *DriverService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return ErrInvalidLocation
	}

	if err := s.requireDriver(ctx, driverID); err != nil {
		return err
	}

	return s.locations.Upsert(ctx, domain.DriverLocation{
		DriverID:  driverID,
		Lat:       lat,
		Lng:       lng,
		UpdatedAt: s.clock.Now(),
	})
}

// GoOnline marks a driver as available for offers.
func (s *DriverService) GoOnline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.users.UpdateDriverStatus(ctx, driverID, domain.DriverStatusOnline); err != nil {
		if err == repository.ErrNotFound {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("driver online", "driver_id", driverID)
	return nil
}

// GoOffline marks a driver as unavailable and drops their position so
// they stop appearing in dispatch results.
func (s *DriverService) GoOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if err := s.users.UpdateDriverStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		if err == repository.ErrNotFound {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.locations.Remove(ctx, driverID); err != nil {
		s.logger.Warn("failed to drop driver location", "driver_id", driverID, "error", err)
	}
	s.logger.Info("driver offline", "driver_id", driverID)
	return nil
}

// DriverLocationUpdated implements realtime.EventSink.
func (s *DriverService) DriverLocationUpdated(ctx context.Context, driverID string, lat, lng float64) error {
	return s.UpdateLocation(ctx, driverID, lat, lng)
}

// DriverWentOnline implements realtime.EventSink.
func (s *DriverService) DriverWentOnline(ctx context.Context, driverID string) error {
	return s.GoOnline(ctx, driverID)
}

// DriverWentOffline implements realtime.EventSink.
func (s *DriverService) DriverWentOffline(ctx context.Context, driverID string) error {
	return s.GoOffline(ctx, driverID)
}

func (s *DriverService) requireDriver(ctx context.Context, driverID string) error {
	user, err := s.users.GetByID(ctx, driverID)
	if err == repository.ErrNotFound {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if user.Role != domain.RoleDriver {
		return ErrInvalidRole
	}
	return nil
}
