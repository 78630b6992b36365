package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridehail/internal/handler"
	"ridehail/internal/middleware"
	"ridehail/internal/realtime"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler   *handler.RideHandler
	DriverHandler *handler.DriverHandler
	UserHandler   *handler.UserHandler
	WSHandler     *handler.WSHandler
	Bus           *realtime.Bus
	RedisClient   *redis.Client // nil when Redis is disabled
	NewRelicApp   *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	if deps.RedisClient != nil {
		router.Use(middleware.Idempotency(deps.RedisClient))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":       "ok",
			"connections":  deps.Bus.ConnectedCount(),
			"active_rooms": deps.Bus.ActiveRoomCount(),
		})
	})

	// Realtime socket.
	router.GET("/ws", deps.WSHandler.Serve)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// User routes.
		users := v1.Group("/users")
		{
			users.POST("", deps.UserHandler.Register)
			users.GET("/:id", deps.UserHandler.Get)
			users.GET("/:id/rides", deps.UserHandler.RideHistory)
			users.GET("/:id/rides/active", deps.UserHandler.ActiveRide)
		}

		// Ride routes.
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.POST("/quote", deps.RideHandler.QuoteFare)
			rides.GET("/available", deps.RideHandler.ListAvailable)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", deps.RideHandler.AcceptRide)
			rides.POST("/:id/status", deps.RideHandler.UpdateStatus)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.GET("/:id/events", deps.RideHandler.ListEvents)
			rides.GET("/:id/ratings", deps.UserHandler.RideRatings)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/online", deps.DriverHandler.GoOnline)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		// Rating routes.
		v1.POST("/ratings", deps.UserHandler.RateRide)
	}

	return router
}
