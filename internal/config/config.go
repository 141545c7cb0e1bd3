package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Booking rules (payment window, cancellation quota, retries)
	Booking BookingConfig

	// Cleanup scheduler configuration
	Cleanup CleanupConfig

	// Redis is optional; when Addr is empty sweeps and cancellations lock in-process
	Redis RedisConfig

	// AMQP is optional; when URL is empty order events are dropped
	AMQP AMQPConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // postgres (lib/pq), pgx, or sqlite for local runs
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// BookingConfig holds seat booking and order lifecycle rules
type BookingConfig struct {
	PaymentTimeout            time.Duration
	DailyCancellationLimit    int
	MaxConflictRetries        int
	RestrictBookingAfterQuota bool
	Timezone                  string // IANA name used for the cancellation calendar day
}

// CleanupConfig holds Cleanup Scheduler settings
type CleanupConfig struct {
	Enabled              bool
	Cron                 string // seconds-precision cron expression for the daily sweep
	PendingOrderTTL      time.Duration
	PendingSweepInterval time.Duration
	BatchSize            int
	LockTTL              time.Duration
	MaterializeAheadDays int
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AMQPConfig holds RabbitMQ settings for order events
type AMQPConfig struct {
	URL   string
	Queue string
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := FromEnv()

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FromEnv reads configuration from the environment without validating it.
// Maintenance tools that never serve HTTP use it directly.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Accept-Language"}),
		},
		Booking: BookingConfig{
			PaymentTimeout:            time.Duration(getEnvAsInt("PAYMENT_TIMEOUT_MINUTES", 15)) * time.Minute,
			DailyCancellationLimit:    getEnvAsInt("DAILY_CANCELLATION_LIMIT", 5),
			MaxConflictRetries:        getEnvAsInt("BOOKING_MAX_CONFLICT_RETRIES", 3),
			RestrictBookingAfterQuota: getEnvAsBool("RESTRICT_BOOKING_AFTER_QUOTA", true),
			Timezone:                  getEnv("BOOKING_TIMEZONE", "Local"),
		},
		Cleanup: CleanupConfig{
			Enabled:              getEnvAsBool("CLEANUP_ENABLED", true),
			Cron:                 getEnv("CLEANUP_CRON", "0 0 1 * * *"),
			PendingOrderTTL:      time.Duration(getEnvAsInt("PENDING_ORDER_TTL_MINUTES", 10)) * time.Minute,
			PendingSweepInterval: time.Duration(getEnvAsInt("PENDING_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			BatchSize:            getEnvAsInt("CLEANUP_BATCH_SIZE", 100),
			LockTTL:              time.Duration(getEnvAsInt("CLEANUP_LOCK_TTL_SECONDS", 300)) * time.Second,
			MaterializeAheadDays: getEnvAsInt("MATERIALIZE_AHEAD_DAYS", 14),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("ORDER_EVENTS_QUEUE", "rail.order.events"),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres', 'pgx' or 'sqlite')", c.Database.Driver)
	}

	if c.Booking.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT_MINUTES must be positive")
	}

	if c.Booking.DailyCancellationLimit < 1 {
		return fmt.Errorf("DAILY_CANCELLATION_LIMIT must be at least 1")
	}

	if _, err := c.Booking.Location(); err != nil {
		return err
	}

	return nil
}

// Location resolves the configured booking timezone
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" || b.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", b.Timezone, err)
	}
	return loc, nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
