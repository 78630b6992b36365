package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/pricing"
	"ridehail/internal/repository"
	"ridehail/internal/repository/memory"
)

type driverFixture struct {
	users     *memory.UserRepository
	locations *memory.LocationRepository
	service   *DriverService
}

func newDriverFixture(t *testing.T) *driverFixture {
	t.Helper()
	users := memory.NewUserRepository()
	locations := memory.NewLocationRepository()
	clock := &pricing.FixedClock{Instant: time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fx := &driverFixture{
		users:     users,
		locations: locations,
		service:   NewDriverService(users, locations, clock, logger),
	}
	for _, u := range []*domain.User{
		{ID: "driver-1", Name: "driver-1", Phone: "555-1", Role: domain.RoleDriver, DriverStatus: domain.DriverStatusOffline},
		{ID: "passenger-1", Name: "passenger-1", Phone: "555-2", Role: domain.RolePassenger},
	} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("failed to create user %s: %v", u.ID, err)
		}
	}
	return fx
}

func TestGoOnline_ThenOffline(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.GoOnline(context.Background(), "driver-1"); err != nil {
		t.Fatalf("GoOnline failed: %v", err)
	}
	online, err := fx.users.GetOnlineDrivers(context.Background())
	if err != nil {
		t.Fatalf("GetOnlineDrivers failed: %v", err)
	}
	if len(online) != 1 || online[0].ID != "driver-1" {
		t.Fatalf("online drivers = %+v, want just driver-1", online)
	}

	if err := fx.service.UpdateLocation(context.Background(), "driver-1", 12.97, 77.59); err != nil {
		t.Fatalf("UpdateLocation failed: %v", err)
	}

	if err := fx.service.GoOffline(context.Background(), "driver-1"); err != nil {
		t.Fatalf("GoOffline failed: %v", err)
	}
	online, err = fx.users.GetOnlineDrivers(context.Background())
	if err != nil {
		t.Fatalf("GetOnlineDrivers failed: %v", err)
	}
	if len(online) != 0 {
		t.Errorf("online drivers after offline = %d, want 0", len(online))
	}

	// Going offline also drops the stored position.
	if _, err := fx.locations.Get(context.Background(), "driver-1"); err != repository.ErrNotFound {
		t.Errorf("location after offline: err = %v, want ErrNotFound", err)
	}
}

func TestUpdateLocation_Stored(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.UpdateLocation(context.Background(), "driver-1", 12.97, 77.59); err != nil {
		t.Fatalf("UpdateLocation failed: %v", err)
	}
	loc, err := fx.locations.Get(context.Background(), "driver-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loc.Lat != 12.97 || loc.Lng != 77.59 {
		t.Errorf("stored location = %v,%v", loc.Lat, loc.Lng)
	}
	if loc.UpdatedAt.IsZero() {
		t.Error("updated_at not set")
	}
}

func TestUpdateLocation_InvalidCoordinates(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.UpdateLocation(context.Background(), "driver-1", 91, 77.59); err != ErrInvalidLocation {
		t.Errorf("err = %v, want ErrInvalidLocation", err)
	}
	if err := fx.service.UpdateLocation(context.Background(), "driver-1", 12.97, 181); err != ErrInvalidLocation {
		t.Errorf("err = %v, want ErrInvalidLocation", err)
	}
}

func TestUpdateLocation_PassengerRejected(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.UpdateLocation(context.Background(), "passenger-1", 12.97, 77.59); err != ErrInvalidRole {
		t.Errorf("err = %v, want ErrInvalidRole", err)
	}
}

func TestGoOnline_PassengerRejected(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.GoOnline(context.Background(), "passenger-1"); err != ErrUserNotFound {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestEventSink_DelegatesToServices(t *testing.T) {
	fx := newDriverFixture(t)

	if err := fx.service.DriverWentOnline(context.Background(), "driver-1"); err != nil {
		t.Fatalf("DriverWentOnline failed: %v", err)
	}
	if err := fx.service.DriverLocationUpdated(context.Background(), "driver-1", 12.97, 77.59); err != nil {
		t.Fatalf("DriverLocationUpdated failed: %v", err)
	}
	if err := fx.service.DriverWentOffline(context.Background(), "driver-1"); err != nil {
		t.Fatalf("DriverWentOffline failed: %v", err)
	}
	if _, err := fx.locations.Get(context.Background(), "driver-1"); err != repository.ErrNotFound {
		t.Errorf("location survived offline: err = %v", err)
	}
}
