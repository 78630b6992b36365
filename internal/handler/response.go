package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/repository"
	"ridehail/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrRideNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPassengerID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidScheduleTime),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidUserDetails):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrPassengerHasActiveRide),
		errors.Is(err, service.ErrDriverHasActiveRide),
		errors.Is(err, service.ErrRideAlreadyClaimed),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrDriverOffline),
		errors.Is(err, service.ErrRatingExists),
		errors.Is(err, service.ErrRideNotCompleted),
		errors.Is(err, service.ErrPhoneTaken),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict

	// Forbidden errors
	case errors.Is(err, service.ErrNotRideParticipant):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
