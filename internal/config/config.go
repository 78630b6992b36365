package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Tariff   TariffConfig
	Dispatch DispatchConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration. When Enabled is false
// the service runs on in-memory stores instead.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration. When Enabled is false driver
// locations are kept in memory.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// TariffConfig holds fare calculation parameters.
type TariffConfig struct {
	BaseFare          float64
	PricePerKm        float64
	PricePerMinute    float64
	MinimumFare       float64
	Currency          string
	SurgeEnabled      bool
	CommissionPercent float64
}

// DispatchConfig holds driver matching parameters.
type DispatchConfig struct {
	SearchRadiusKm   float64
	MaxNotifyDrivers int
	RematchPoolSize  int
	RematchTimeout   time.Duration
	StaleLocationTTL time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("DB_ENABLED", true),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridehail"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridehail"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Tariff: TariffConfig{
			BaseFare:          getFloatEnv("TARIFF_BASE_FARE", 2.50),
			PricePerKm:        getFloatEnv("TARIFF_PRICE_PER_KM", 1.20),
			PricePerMinute:    getFloatEnv("TARIFF_PRICE_PER_MINUTE", 0.35),
			MinimumFare:       getFloatEnv("TARIFF_MINIMUM_FARE", 5.00),
			Currency:          getEnv("TARIFF_CURRENCY", "USD"),
			SurgeEnabled:      getBoolEnv("TARIFF_SURGE_ENABLED", true),
			CommissionPercent: getFloatEnv("TARIFF_COMMISSION_PERCENT", 20.0),
		},
		Dispatch: DispatchConfig{
			SearchRadiusKm:   getFloatEnv("DISPATCH_SEARCH_RADIUS_KM", 5.0),
			MaxNotifyDrivers: getIntEnv("DISPATCH_MAX_NOTIFY_DRIVERS", 5),
			RematchPoolSize:  getIntEnv("DISPATCH_REMATCH_POOL_SIZE", 10),
			RematchTimeout:   getDurationEnv("DISPATCH_REMATCH_TIMEOUT", 30*time.Second),
			StaleLocationTTL: getDurationEnv("DISPATCH_STALE_LOCATION_TTL", 2*time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
