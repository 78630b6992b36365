package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/app"
	"ridehail/internal/config"
	"ridehail/internal/dispatch"
	"ridehail/internal/handler"
	"ridehail/internal/pricing"
	"ridehail/internal/realtime"
	"ridehail/internal/repository/memory"
	"ridehail/internal/service"
)

// stack wires the whole application over in-memory stores, the same way
// cmd/server does when the database and redis are disabled.
type stack struct {
	router *gin.Engine
	clock  *pricing.FixedClock
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rides := memory.NewRideRepository()
	users := memory.NewUserRepository()
	events := memory.NewRideEventRepository()
	ratings := memory.NewRatingRepository()
	locations := memory.NewLocationRepository()

	clock := &pricing.FixedClock{Instant: time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

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
		RematchTimeout:   time.Hour,
	}

	bus := realtime.NewBus(logger)
	engine := dispatch.NewEngine(users, locations, nil, 0)
	rematcher := dispatch.NewRematcher()
	t.Cleanup(rematcher.Stop)

	rideService := service.NewRideService(rides, users, events, engine, rematcher, bus, nil, tariff, dispatchCfg, clock, logger)
	driverService := service.NewDriverService(users, locations, clock, logger)
	userService := service.NewUserService(users, clock)
	ratingService := service.NewRatingService(ratings, rides, clock)
	bus.SetSink(driverService)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:   handler.NewRideHandler(rideService),
		DriverHandler: handler.NewDriverHandler(driverService),
		UserHandler:   handler.NewUserHandler(userService, rideService, ratingService),
		WSHandler:     handler.NewWSHandler(bus, logger),
		Bus:           bus,
	})

	return &stack{router: router, clock: clock}
}

func (s *stack) do(t *testing.T, method, path string, body any, wantStatus int) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != wantStatus {
		t.Fatalf("%s %s returned %d, want %d: %s", method, path, rec.Code, wantStatus, rec.Body.String())
	}
	if rec.Body.Len() == 0 {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		// List endpoints return arrays; callers decode those themselves.
		return nil
	}
	return out
}

func (s *stack) register(t *testing.T, name, phone, role string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/v1/users", map[string]string{
		"name": name, "phone": phone, "role": role,
	}, http.StatusCreated)
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("registration returned no id: %v", resp)
	}
	return id
}

func TestHTTPRideFlow_RequestToCompletion(t *testing.T) {
	s := newStack(t)

	passengerID := s.register(t, "Asha", "555-0100", "passenger")
	driverID := s.register(t, "Ravi", "555-0101", "driver")

	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/online", nil, http.StatusNoContent)
	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/location", map[string]float64{
		"lat": 12.971, "lng": 77.59,
	}, http.StatusNoContent)

	ride := s.do(t, http.MethodPost, "/v1/rides", map[string]any{
		"passenger_id":    passengerID,
		"origin_lat":      12.97,
		"origin_lng":      77.59,
		"destination_lat": 13.00,
		"destination_lng": 77.62,
	}, http.StatusCreated)
	rideID, _ := ride["id"].(string)
	if rideID == "" {
		t.Fatalf("ride creation returned no id: %v", ride)
	}
	if ride["status"] != "offered" {
		t.Errorf("status after create = %v, want offered", ride["status"])
	}
	if est, _ := ride["price_estimate"].(float64); est <= 0 {
		t.Errorf("price estimate = %v, want > 0", ride["price_estimate"])
	}

	accepted := s.do(t, http.MethodPost, "/v1/rides/"+rideID+"/accept", map[string]string{
		"driver_id": driverID,
	}, http.StatusOK)
	if accepted["status"] != "accepted" || accepted["driver_id"] != driverID {
		t.Errorf("accept response = %v", accepted)
	}

	for _, status := range []string{"driver_en_route", "driver_arrived", "in_progress"} {
		s.do(t, http.MethodPost, "/v1/rides/"+rideID+"/status", map[string]string{
			"actor_id": driverID, "status": status,
		}, http.StatusOK)
	}

	s.clock.Instant = s.clock.Instant.Add(20 * time.Minute)
	done := s.do(t, http.MethodPost, "/v1/rides/"+rideID+"/status", map[string]string{
		"actor_id": driverID, "status": "completed",
	}, http.StatusOK)
	if done["status"] != "completed" {
		t.Errorf("final status = %v, want completed", done["status"])
	}
	if fp, _ := done["final_price"].(float64); fp <= 0 {
		t.Errorf("final price = %v, want > 0", done["final_price"])
	}

	rated := s.do(t, http.MethodPost, "/v1/ratings", map[string]any{
		"ride_id": rideID, "rater_id": passengerID, "score": 5, "comment": "smooth trip",
	}, http.StatusCreated)
	if rated["type"] != "passenger_to_driver" {
		t.Errorf("rating type = %v", rated["type"])
	}
}

func TestHTTPRideFlow_ConflictAndValidationCodes(t *testing.T) {
	s := newStack(t)

	passengerID := s.register(t, "Asha", "555-0100", "passenger")
	driverID := s.register(t, "Ravi", "555-0101", "driver")
	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/online", nil, http.StatusNoContent)
	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/location", map[string]float64{
		"lat": 12.971, "lng": 77.59,
	}, http.StatusNoContent)

	create := map[string]any{
		"passenger_id":    passengerID,
		"origin_lat":      12.97,
		"origin_lng":      77.59,
		"destination_lat": 13.00,
		"destination_lng": 77.62,
	}
	ride := s.do(t, http.MethodPost, "/v1/rides", create, http.StatusCreated)
	rideID, _ := ride["id"].(string)

	// A second active ride for the same passenger is a conflict.
	s.do(t, http.MethodPost, "/v1/rides", create, http.StatusConflict)

	// Out-of-range coordinates are a validation error.
	bad := map[string]any{"passenger_id": passengerID, "origin_lat": 91.0, "origin_lng": 0.0, "destination_lat": 0.0, "destination_lng": 0.0}
	s.do(t, http.MethodPost, "/v1/rides", bad, http.StatusBadRequest)

	// Unknown rides are 404.
	s.do(t, http.MethodGet, "/v1/rides/no-such-ride", nil, http.StatusNotFound)

	// Cancelling then accepting is an invalid transition.
	s.do(t, http.MethodPost, "/v1/rides/"+rideID+"/cancel", map[string]string{
		"actor_id": passengerID, "reason": "changed plans",
	}, http.StatusOK)
	s.do(t, http.MethodPost, "/v1/rides/"+rideID+"/accept", map[string]string{
		"driver_id": driverID,
	}, http.StatusConflict)

	// Rating a ride that never completed is a conflict.
	s.do(t, http.MethodPost, "/v1/ratings", map[string]any{
		"ride_id": rideID, "rater_id": passengerID, "score": 5,
	}, http.StatusConflict)
}

func TestHTTPRideFlow_HistoryAndAvailable(t *testing.T) {
	s := newStack(t)

	passengerID := s.register(t, "Asha", "555-0100", "passenger")
	driverID := s.register(t, "Ravi", "555-0101", "driver")
	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/online", nil, http.StatusNoContent)
	s.do(t, http.MethodPost, "/v1/drivers/"+driverID+"/location", map[string]float64{
		"lat": 12.971, "lng": 77.59,
	}, http.StatusNoContent)

	s.do(t, http.MethodPost, "/v1/rides", map[string]any{
		"passenger_id":    passengerID,
		"origin_lat":      12.97,
		"origin_lng":      77.59,
		"destination_lat": 13.00,
		"destination_lng": 77.62,
	}, http.StatusCreated)

	req := httptest.NewRequest(http.MethodGet, "/v1/rides/available", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("available returned %d: %s", rec.Code, rec.Body.String())
	}
	var open []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &open); err != nil {
		t.Fatalf("available did not decode: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("available rides = %d, want 1", len(open))
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/users/"+passengerID+"/rides?role=passenger", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history returned %d: %s", rec.Code, rec.Body.String())
	}
	var history []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("history did not decode: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history rides = %d, want 1", len(history))
	}
}
