package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fleetview/backend/internal/domain"
)

// Config is the application configuration
type Config struct {
	Port     string `yaml:"port" validate:"required,numeric"`
	Env      string `yaml:"env" validate:"required"`
	LogLevel string `yaml:"log_level"`

	// TrailBackend selects durable trail storage
	TrailBackend string `yaml:"trail_backend" validate:"oneof=redis postgres memory"`

	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Queue    QueueConfig    `yaml:"queue"`
	Map      MapConfig      `yaml:"map"`

	SessionTTL time.Duration `yaml:"session_ttl" validate:"gte=0"`
	DemoFeed   bool          `yaml:"demo_feed"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type GeocoderConfig struct {
	URL      string        `yaml:"url" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

type QueueConfig struct {
	Name string `yaml:"name"`
}

// MapConfig tunes one map instance
type MapConfig struct {
	AnimationDuration time.Duration `yaml:"animation_duration" validate:"gt=0"`
	FrameInterval     time.Duration `yaml:"frame_interval" validate:"gt=0"`
	TrailCap          int           `yaml:"trail_cap" validate:"gte=1"`
	InitialZoom       float64       `yaml:"initial_zoom" validate:"gte=0,lte=22"`
	ArrivalZoom       float64       `yaml:"arrival_zoom" validate:"gte=0,lte=22"`
	OverviewZoom      float64       `yaml:"overview_zoom" validate:"gte=0,lte=22"`
	OverviewLat       float64       `yaml:"overview_lat" validate:"gte=-90,lte=90"`
	OverviewLng       float64       `yaml:"overview_lng" validate:"gte=-180,lte=180"`
}

// Overview returns the default camera center
func (m MapConfig) Overview() domain.Coordinate {
	return domain.Coordinate{Lat: m.OverviewLat, Lng: m.OverviewLng}
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port:         "8080",
		Env:          "development",
		LogLevel:     "info",
		TrailBackend: "redis",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Geocoder: GeocoderConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		Queue: QueueConfig{
			Name: "position-updates",
		},
		Map:        DefaultMap(),
		SessionTTL: 30 * time.Minute,
	}
}

// DefaultMap returns the built-in map tuning
func DefaultMap() MapConfig {
	return MapConfig{
		AnimationDuration: 800 * time.Millisecond,
		FrameInterval:     16 * time.Millisecond,
		TrailCap:          domain.MaxTrailPoints,
		InitialZoom:       domain.InitialZoom,
		ArrivalZoom:       domain.ArrivalZoom,
		OverviewZoom:      domain.OverviewZoom,
		OverviewLat:       domain.OverviewLat,
		OverviewLng:       domain.OverviewLng,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file if present, and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	// .env is optional; system environment still applies without it
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("GO_ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.TrailBackend = getEnv("TRAIL_BACKEND", cfg.TrailBackend)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Geocoder.URL = getEnv("GEOCODER_URL", cfg.Geocoder.URL)
	cfg.Queue.Name = getEnv("QUEUE_NAME", cfg.Queue.Name)

	var err error
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}
	if cfg.Geocoder.Timeout, err = getEnvDuration("GEOCODER_TIMEOUT", cfg.Geocoder.Timeout); err != nil {
		return err
	}
	if cfg.Geocoder.CacheTTL, err = getEnvDuration("GEOCODE_CACHE_TTL", cfg.Geocoder.CacheTTL); err != nil {
		return err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", cfg.SessionTTL); err != nil {
		return err
	}
	if cfg.DemoFeed, err = getEnvBool("DEMO_FEED", cfg.DemoFeed); err != nil {
		return err
	}
	if cfg.Map.AnimationDuration, err = getEnvDuration("MAP_ANIMATION_DURATION", cfg.Map.AnimationDuration); err != nil {
		return err
	}
	if cfg.Map.TrailCap, err = getEnvInt("MAP_TRAIL_CAP", cfg.Map.TrailCap); err != nil {
		return err
	}
	if cfg.Map.InitialZoom, err = getEnvFloat("MAP_INITIAL_ZOOM", cfg.Map.InitialZoom); err != nil {
		return err
	}
	if cfg.Map.ArrivalZoom, err = getEnvFloat("MAP_ARRIVAL_ZOOM", cfg.Map.ArrivalZoom); err != nil {
		return err
	}
	if cfg.Map.OverviewZoom, err = getEnvFloat("MAP_OVERVIEW_ZOOM", cfg.Map.OverviewZoom); err != nil {
		return err
	}
	if cfg.Map.OverviewLat, err = getEnvFloat("MAP_OVERVIEW_LAT", cfg.Map.OverviewLat); err != nil {
		return err
	}
	if cfg.Map.OverviewLng, err = getEnvFloat("MAP_OVERVIEW_LNG", cfg.Map.OverviewLng); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return b, nil
}
