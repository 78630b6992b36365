package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/pricing"
	"ridehail/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for requesting a ride.
type CreateRideRequest struct {
	PassengerID        string  `json:"passenger_id"`
	OriginAddress      string  `json:"origin_address"`
	OriginLat          float64 `json:"origin_lat"`
	OriginLng          float64 `json:"origin_lng"`
	DestinationAddress string  `json:"destination_address"`
	DestinationLat     float64 `json:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng"`
	ScheduledAt        string  `json:"scheduled_at,omitempty"` // RFC3339, optional
}

// AcceptRideRequest is the HTTP request body for claiming a ride.
type AcceptRideRequest struct {
	DriverID string `json:"driver_id"`
}

// UpdateStatusRequest is the HTTP request body for advancing a ride.
type UpdateStatusRequest struct {
	ActorID string `json:"actor_id"`
	Status  string `json:"status"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// QuoteFareRequest is the HTTP request body for a fare quote.
type QuoteFareRequest struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string  `json:"id"`
	PassengerID        string  `json:"passenger_id"`
	DriverID           string  `json:"driver_id,omitempty"`
	Status             string  `json:"status"`
	OriginAddress      string  `json:"origin_address,omitempty"`
	OriginLat          float64 `json:"origin_lat"`
	OriginLng          float64 `json:"origin_lng"`
	DestinationAddress string  `json:"destination_address,omitempty"`
	DestinationLat     float64 `json:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng"`
	DistanceKm         float64 `json:"distance_km"`
	DurationMinutes    float64 `json:"duration_minutes"`
	PriceEstimate      float64 `json:"price_estimate"`
	FinalPrice         float64 `json:"final_price,omitempty"`
	IsScheduled        bool    `json:"is_scheduled,omitempty"`
	ScheduledAt        string  `json:"scheduled_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
	AcceptedAt         string  `json:"accepted_at,omitempty"`
	StartedAt          string  `json:"started_at,omitempty"`
	CompletedAt        string  `json:"completed_at,omitempty"`
	CancelledAt        string  `json:"cancelled_at,omitempty"`

	Fare *pricing.FareBreakdown `json:"fare,omitempty"`
}

// QuoteFareResponse is the HTTP response for a fare quote.
type QuoteFareResponse struct {
	DistanceKm float64               `json:"distance_km"`
	Fare       pricing.FareBreakdown `json:"fare"`
}

// RideEventResponse is the HTTP representation of an audit entry.
type RideEventResponse struct {
	ID         string               `json:"id"`
	RideID     string               `json:"ride_id"`
	Type       string               `json:"type"`
	FromStatus string               `json:"from_status,omitempty"`
	ToStatus   string               `json:"to_status"`
	ActorID    string               `json:"actor_id,omitempty"`
	Metadata   domain.EventMetadata `json:"metadata,omitempty"`
	CreatedAt  string               `json:"created_at"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var scheduledAt time.Time
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scheduled_at must be RFC3339"})
			return
		}
		scheduledAt = parsed
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), service.RequestRideRequest{
		PassengerID:        req.PassengerID,
		OriginAddress:      req.OriginAddress,
		OriginLat:          req.OriginLat,
		OriginLng:          req.OriginLng,
		DestinationAddress: req.DestinationAddress,
		DestinationLat:     req.DestinationLat,
		DestinationLng:     req.DestinationLng,
		ScheduledAt:        scheduledAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	var req AcceptRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// UpdateStatus handles POST /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.UpdateStatus(c.Request.Context(), c.Param("id"), req.ActorID, domain.RideStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), req.ActorID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// QuoteFare handles POST /v1/rides/quote
func (h *RideHandler) QuoteFare(c *gin.Context) {
	var req QuoteFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	fare, distanceKm, err := h.rideService.Quote(c.Request.Context(), service.QuoteRequest{
		OriginLat:      req.OriginLat,
		OriginLng:      req.OriginLng,
		DestinationLat: req.DestinationLat,
		DestinationLng: req.DestinationLng,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, QuoteFareResponse{DistanceKm: distanceKm, Fare: fare})
}

// ListAvailable handles GET /v1/rides/available
func (h *RideHandler) ListAvailable(c *gin.Context) {
	rides, err := h.rideService.ListOpenRides(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RideResponse, 0, len(rides))
	for _, ride := range rides {
		out = append(out, toRideResponse(ride))
	}
	respondJSON(c, http.StatusOK, out)
}

// ListEvents handles GET /v1/rides/:id/events
func (h *RideHandler) ListEvents(c *gin.Context) {
	events, err := h.rideService.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RideEventResponse, 0, len(events))
	for _, event := range events {
		metadata, err := domain.UnmarshalEventMetadata(event.Metadata)
		if err != nil {
			respondError(c, err)
			return
		}
		out = append(out, RideEventResponse{
			ID:         event.ID,
			RideID:     event.RideID,
			Type:       string(event.Type),
			FromStatus: string(event.FromStatus),
			ToStatus:   string(event.ToStatus),
			ActorID:    event.ActorID,
			Metadata:   metadata,
			CreatedAt:  event.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(c, http.StatusOK, out)
}

func toRideResponse(ride *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:                 ride.ID,
		PassengerID:        ride.PassengerID,
		DriverID:           ride.DriverID,
		Status:             string(ride.Status),
		OriginAddress:      ride.OriginAddress,
		OriginLat:          ride.OriginLat,
		OriginLng:          ride.OriginLng,
		DestinationAddress: ride.DestinationAddress,
		DestinationLat:     ride.DestinationLat,
		DestinationLng:     ride.DestinationLng,
		DistanceKm:         ride.DistanceKm,
		DurationMinutes:    ride.DurationMinutes,
		PriceEstimate:      ride.PriceEstimate,
		FinalPrice:         ride.FinalPrice,
		IsScheduled:        ride.IsScheduled,
		CreatedAt:          ride.CreatedAt.Format(time.RFC3339),
	}

	if ride.FareBreakdown != "" {
		if fare, err := pricing.Parse(ride.FareBreakdown); err == nil {
			resp.Fare = &fare
		}
	}

	resp.ScheduledAt = formatIfSet(ride.ScheduledAt)
	resp.AcceptedAt = formatIfSet(ride.AcceptedAt)
	resp.StartedAt = formatIfSet(ride.StartedAt)
	resp.CompletedAt = formatIfSet(ride.CompletedAt)
	resp.CancelledAt = formatIfSet(ride.CancelledAt)
	return resp
}

func formatIfSet(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
