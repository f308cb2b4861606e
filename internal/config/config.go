package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendS3       = "s3"
)

// Push gateways selectable with PUSH_GATEWAY.
const (
	PushGatewayHTTP     = "http"
	PushGatewayFirebase = "firebase"
)

type Config struct {
	ServerPort string
	LogLevel   string

	FCMServiceAccountPath string
	FCMProjectID          string
	FCMAPIURL             string
	FCMTimeout            time.Duration
	PushGateway           string
	DispatchConcurrency   int

	StoreBackend       string
	DeviceTokensPath   string
	DeliveryHistoryCap int

	DatabaseURL string
	RedisURL    string

	EventIntakeEnabled bool
	EventIntakeWorkers int

	S3Bucket          string
	S3ObjectKey       string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	CORSAllowOrigins []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	return &Config{
		ServerPort: envOr("PORT", "8000"),
		LogLevel:   envOr("LOG_LEVEL", "info"),

		FCMServiceAccountPath: strings.TrimSpace(os.Getenv("FCM_SERVICE_ACCOUNT_JSON")),
		FCMProjectID:          strings.TrimSpace(os.Getenv("FCM_PROJECT_ID")),
		FCMAPIURL:             strings.TrimRight(envOr("FCM_API_URL", "https://fcm.googleapis.com/v1"), "/"),
		FCMTimeout:            time.Duration(envInt("FCM_TIMEOUT_SECONDS", 10)) * time.Second,
		PushGateway:           strings.ToLower(envOr("PUSH_GATEWAY", PushGatewayHTTP)),
		DispatchConcurrency:   envInt("DISPATCH_CONCURRENCY", 1),

		StoreBackend:       strings.ToLower(envOr("STORE_BACKEND", StoreBackendFile)),
		DeviceTokensPath:   envOr("DEVICE_TOKENS_JSON", "data/device_tokens.json"),
		DeliveryHistoryCap: envInt("DELIVERY_HISTORY_CAP", 100),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		EventIntakeEnabled: envBool("EVENT_INTAKE_ENABLED", false),
		EventIntakeWorkers: envInt("EVENT_INTAKE_WORKERS", 2),

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3ObjectKey:       envOr("S3_OBJECT_KEY", "alerts/device_tokens.json"),
		S3Region:          envOr("S3_REGION", "auto"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envInt returns fallback for unset, unparsable or non-positive values.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
