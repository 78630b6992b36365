package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"

	"ridehail/internal/app"
	"ridehail/internal/config"
	"ridehail/internal/dispatch"
	"ridehail/internal/handler"
	"ridehail/internal/logging"
	"ridehail/internal/pricing"
	"ridehail/internal/realtime"
	internalRedis "ridehail/internal/redis"
	"ridehail/internal/repository"
	"ridehail/internal/repository/memory"
	"ridehail/internal/repository/postgres"
	"ridehail/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize new relic", "error", err)
		} else {
			logger.Info("new relic enabled", "app", cfg.NewRelic.AppName)
		}
	}

	// Persistence backend is an explicit deployment choice: PostgreSQL
	// for production, in-memory stores for local development.
	var (
		db         *sql.DB
		rideRepo   repository.RideRepository
		userRepo   repository.UserRepository
		eventRepo  repository.RideEventRepository
		ratingRepo repository.RatingRepository
	)
	if cfg.Database.Enabled {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Info("connected to postgresql", "host", cfg.Database.Host)

		rideRepo = postgres.NewRideRepository(db)
		userRepo = postgres.NewUserRepository(db)
		eventRepo = postgres.NewRideEventRepository(db)
		ratingRepo = postgres.NewRatingRepository(db)
	} else {
		logger.Info("database disabled, using in-memory stores")
		rideRepo = memory.NewRideRepository()
		userRepo = memory.NewUserRepository()
		eventRepo = memory.NewRideEventRepository()
		ratingRepo = memory.NewRatingRepository()
	}

	// Driver locations live in the Redis geo index when available.
	var (
		redisClient  *goredis.Client
		locationRepo repository.LocationRepository
		searcher     dispatch.NearbySearcher
		locks        service.RideLocker
	)
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)

		locationStore := internalRedis.NewLocationStore(redisClient)
		locationRepo = locationStore
		searcher = locationStore
		locks = internalRedis.NewLockStore(redisClient)
	} else if db != nil {
		logger.Info("redis disabled, storing driver locations in postgresql")
		locationRepo = postgres.NewLocationRepository(db)
	} else {
		logger.Info("redis disabled, using in-memory locations")
		locationRepo = memory.NewLocationRepository()
	}

	clock := pricing.SystemClock{}

	bus := realtime.NewBus(logger)
	engine := dispatch.NewEngine(userRepo, locationRepo, searcher, cfg.Dispatch.StaleLocationTTL)
	rematcher := dispatch.NewRematcher()
	defer rematcher.Stop()

	rideService := service.NewRideService(rideRepo, userRepo, eventRepo, engine, rematcher, bus, locks, cfg.Tariff, cfg.Dispatch, clock, logger)
	driverService := service.NewDriverService(userRepo, locationRepo, clock, logger)
	userService := service.NewUserService(userRepo, clock)
	ratingService := service.NewRatingService(ratingRepo, rideRepo, clock)

	bus.SetSink(driverService)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:   handler.NewRideHandler(rideService),
		DriverHandler: handler.NewDriverHandler(driverService),
		UserHandler:   handler.NewUserHandler(userService, rideService, ratingService),
		WSHandler:     handler.NewWSHandler(bus, logger),
		Bus:           bus,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Scheduled rides and stalled dispatches are retried on a ticker.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-dispatchCtx.Done():
				return
			case <-ticker.C:
				if err := rideService.DispatchPending(dispatchCtx); err != nil {
					logger.Error("pending dispatch sweep failed", "error", err)
				}
			}
		}
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}
