package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/config"
	"github.com/fleetview/backend/internal/delivery/http"
	"github.com/fleetview/backend/internal/delivery/queue"
	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
	"github.com/fleetview/backend/internal/repository/postgres"
	"github.com/fleetview/backend/internal/repository/redis"
	"github.com/fleetview/backend/internal/service"
)

func main() {
	// Configuration
	cfg, err := config.Load(getEnv("CONFIG_FILE", "config.yml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	observability.SetupLogger(cfg.Env, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis connection
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	redisClient, err := redis.Connect(connectCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Could not connect to Redis")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	// Dependency Injection: Repositories
	trailStore, closeStore := openTrailStore(connectCtx, cfg, redisClient)
	defer closeStore()

	// Dependency Injection: Services
	var labels *cache.Cache[string]
	if redisClient != nil {
		labels = cache.New[string](redis_store.NewRedis(redisClient))
	}
	geocoder := service.NewGeocodingService(cfg.Geocoder.URL, cfg.Geocoder.Timeout, labels, cfg.Geocoder.CacheTTL)
	if cfg.Geocoder.URL == "" {
		log.Info().Msg("No geocoder configured, using coordinate labels")
	}

	tracking := service.NewTrackingService(trailStore, geocoder, mapOptions(cfg), cfg.SessionTTL)
	go tracking.Run(ctx)

	// Transports
	var transport *queue.Transport
	if redisClient != nil && cfg.Queue.Name != "" {
		transport, err = queue.Open(redisClient, cfg.Queue.Name)
		if err == nil {
			err = transport.Start(queue.NewPositionConsumer(ctx, tracking))
		}
		if err != nil {
			log.Warn().Err(err).Str("queue", cfg.Queue.Name).Msg("Queue transport disabled")
			transport = nil
		}
	}
	if cfg.DemoFeed {
		go service.NewDemoFeed(tracking, 2*time.Second).Run(ctx)
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "FleetView Live Map API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, tracking)

	// Graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if transport != nil {
		transport.Stop()
	}
	tracking.Shutdown()
	log.Info().Msg("Server exited gracefully")
}

// openTrailStore picks durable trail storage, falling back to memory when
// the configured backend is unreachable.
func openTrailStore(ctx context.Context, cfg *config.Config, redisClient *goredis.Client) (domain.TrailStore, func()) {
	noop := func() {}

	switch cfg.TrailBackend {
	case "redis":
		if redisClient != nil {
			return redis.NewTrailStore(redisClient, 0), noop
		}
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Warn().Err(err).Msg("Could not connect to database")
			break
		}
		repo := postgres.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not migrate trail schema")
			pool.Close()
			break
		}
		log.Info().Msg("Connected to PostgreSQL")
		return repo, pool.Close
	case "memory":
		return postgres.NewMockRepository(), noop
	}

	log.Warn().Str("backend", cfg.TrailBackend).Msg("Trail storage unavailable, keeping trails in memory")
	return postgres.NewMockRepository(), noop
}

func mapOptions(cfg *config.Config) service.MapOptions {
	opts := service.DefaultMapOptions()
	opts.Camera.Overview = cfg.Map.Overview()
	opts.Camera.OverviewZoom = cfg.Map.OverviewZoom
	opts.Camera.ArrivalZoom = cfg.Map.ArrivalZoom
	opts.InitialZoom = cfg.Map.InitialZoom
	opts.AnimationDuration = cfg.Map.AnimationDuration
	opts.FrameInterval = cfg.Map.FrameInterval
	opts.TrailCap = cfg.Map.TrailCap
	opts.GeocodeTimeout = cfg.Geocoder.Timeout + time.Second
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
