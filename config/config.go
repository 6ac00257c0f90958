package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Environment string

	// Active event: check-ins for any other event are denied as wrong_event
	ActiveEventID string

	// Redis configuration
	RedisURL string

	// Payment processor configuration. Mode is one process-wide value;
	// nothing ever infers it per call.
	ProcessorBaseURL   string
	ProcessorSecretKey string
	ProcessorMode      string // test or live
	ProcessorPNSubKey  string
	ProcessorPNUUID    string
	ProcessorPNChannel string

	// PubNub crew broadcast configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Fee schedule: percentage plus fixed component per ticket
	FeeRate  decimal.Decimal
	FeeFixed decimal.Decimal

	// Override/reset PIN (bcrypt hash); empty disables overrides
	OverridePINHash string

	// Dashboard staleness bounds
	AttendanceCacheTTL time.Duration
	IssueScanInterval  time.Duration

	// Abuse protection
	CheckInRateLimit int
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Event
		ActiveEventID: getEnv("ACTIVE_EVENT_ID", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// Processor
		ProcessorBaseURL:   getEnv("PROCESSOR_BASE_URL", "https://api.stripe.com"),
		ProcessorSecretKey: getEnv("PROCESSOR_SECRET_KEY", ""),
		ProcessorMode:      getEnv("PROCESSOR_MODE", "test"),
		ProcessorPNSubKey:  getEnv("PROCESSOR_PN_SUBSCRIBE_KEY", ""),
		ProcessorPNUUID:    getEnv("PROCESSOR_PN_UUID", "gigg-ticketing"),
		ProcessorPNChannel: getEnv("PROCESSOR_PN_CHANNEL", "payment-events"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Fees
		FeeRate:  getEnvAsDecimal("FEE_RATE", "0.014"),
		FeeFixed: getEnvAsDecimal("FEE_FIXED", "2.5"),

		// Overrides
		OverridePINHash: getEnv("OVERRIDE_PIN_HASH", ""),

		// Staleness
		AttendanceCacheTTL: getEnvAsDuration("ATTENDANCE_CACHE_TTL", "10s"),
		IssueScanInterval:  getEnvAsDuration("ISSUE_SCAN_INTERVAL", "30s"),

		// Abuse protection
		CheckInRateLimit: getEnvAsInt("CHECKIN_RATE_LIMIT", 60),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if d, err := decimal.NewFromString(valueStr); err == nil {
		return d
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
