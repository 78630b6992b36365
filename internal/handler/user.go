package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/domain"
	"ridehail/internal/service"
)

// UserHandler handles HTTP requests for users and their rides.
type UserHandler struct {
	userService   *service.UserService
	rideService   *service.RideService
	ratingService *service.RatingService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, rideService *service.RideService, ratingService *service.RatingService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		rideService:   rideService,
		ratingService: ratingService,
	}
}

// RegisterUserRequest is the HTTP request body for creating a user.
type RegisterUserRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// UserResponse is the HTTP representation of a user.
type UserResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	DriverStatus string `json:"driver_status,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	RideID  string `json:"ride_id"`
	RaterID string `json:"rater_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// RatingResponse is the HTTP representation of a rating.
type RatingResponse struct {
	ID         string `json:"id"`
	RideID     string `json:"ride_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Type       string `json:"type"`
	Score      int    `json:"score"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Register handles POST /v1/users
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Role:  domain.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toUserResponse(user))
}

// Get handles GET /v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// ActiveRide handles GET /v1/users/:id/rides/active
func (h *UserHandler) ActiveRide(c *gin.Context) {
	ride, err := h.rideService.GetActiveRide(c.Request.Context(), c.Param("id"), domain.Role(c.Query("role")))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// RideHistory handles GET /v1/users/:id/rides
func (h *UserHandler) RideHistory(c *gin.Context) {
	rides, err := h.rideService.ListHistory(c.Request.Context(), c.Param("id"), domain.Role(c.Query("role")))
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

// RateRide handles POST /v1/ratings
func (h *UserHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	rating, err := h.ratingService.Rate(c.Request.Context(), service.RateRequest{
		RideID:  req.RideID,
		RaterID: req.RaterID,
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toRatingResponse(rating))
}

// RideRatings handles GET /v1/rides/:id/ratings
func (h *UserHandler) RideRatings(c *gin.Context) {
	ratings, err := h.ratingService.ListByRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RatingResponse, 0, len(ratings))
	for _, rating := range ratings {
		out = append(out, toRatingResponse(rating))
	}
	respondJSON(c, http.StatusOK, out)
}

func toUserResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.Role == domain.RoleDriver {
		resp.DriverStatus = string(user.DriverStatus)
	}
	return resp
}

func toRatingResponse(rating *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:         rating.ID,
		RideID:     rating.RideID,
		FromUserID: rating.FromUserID,
		ToUserID:   rating.ToUserID,
		Type:       string(rating.Type),
		Score:      rating.Score,
		Comment:    rating.Comment,
		CreatedAt:  rating.CreatedAt.Format(time.RFC3339),
	}
}
