package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	FrontendURL    string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int

	RedisEnabled  bool
	RedisURL      string
	RedisPassword string

	JWTSecret string
	TicketTTL time.Duration

	ActionRatePerSecond float64
	ActionBurst         int
	RoomIdleTimeout     time.Duration

	LogLevel  string
	LogFormat string
}

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOrigins := []string{frontendURL}
	if frontendURL != "http://localhost:5173" {
		allowedOrigins = append(allowedOrigins, "http://localhost:5173") // Local development
	}
	for _, origin := range strings.Split(GetEnv("ALLOWED_ORIGINS", ""), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			allowedOrigins = append(allowedOrigins, trimmed)
		}
	}

	// Append simple_protocol for PgBouncer compatibility (pgx driver)
	dbURL := GetEnv("DATABASE_URL", "")
	if dbURL != "" {
		if u, err := url.Parse(dbURL); err == nil {
			q := u.Query()
			if q.Get("default_query_exec_mode") == "" {
				q.Set("default_query_exec_mode", "simple_protocol")
				u.RawQuery = q.Encode()
				dbURL = u.String()
			}
		}
	}

	return &Config{
		Port:           port,
		AllowedOrigins: allowedOrigins,
		FrontendURL:    frontendURL,

		DatabaseURL:          dbURL,
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),

		RedisEnabled:  GetEnvAsBool("REDIS_ENABLED", true),
		RedisURL:      GetEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),

		JWTSecret: GetEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		TicketTTL: GetEnvAsDuration("TICKET_TTL_MINUTES", 24*60, time.Minute),

		ActionRatePerSecond: GetEnvAsFloat("ACTION_RATE_PER_SECOND", 30),
		ActionBurst:         GetEnvAsInt("ACTION_BURST", 60),
		RoomIdleTimeout:     GetEnvAsDuration("ROOM_IDLE_TIMEOUT_MINUTES", 60, time.Minute),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "console"),
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Int("default", defaultValue).Msg("invalid integer, using default")
		return defaultValue
	}
	return value
}

func GetEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || value <= 0 {
		log.Warn().Str("key", key).Str("value", valueStr).Float64("default", defaultValue).Msg("invalid number, using default")
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Bool("default", defaultValue).Msg("invalid boolean, using default")
		return defaultValue
	}
	return value
}

// GetEnvAsDuration reads an integer count of unit.
func GetEnvAsDuration(key string, defaultCount int, unit time.Duration) time.Duration {
	return time.Duration(GetEnvAsInt(key, defaultCount)) * unit
}
