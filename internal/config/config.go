// Package config loads tunables from the environment, overlaid by an
// optional config/default.yaml, matching the two-source pattern the server
// binary has always used.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	RedisAddr   string
	RedisPassword string
	NATSUrl     string

	ObjectStoreEndpoint string
	ObjectStoreBucket   string
	ObjectStoreLocalDir string

	JWTSecret string
	JWTIssuer string

	FrontendBaseURL string
	CORSOrigins     []string

	SessionExpirationMinutes int
	SessionExtensionMinutes  int
	MaxConcurrentSessions    int
	APIRateLimitPerMinute    int
	ArtifactRetentionDays    int
	SignedURLExpirationSecs  int
	FraudThreshold           float64

	ClassifierEndpoint string
	ClassifierTimeout  time.Duration
	ClassifierQueueSize int
	ClassifierWorkers   int

	WebhookAttemptTimeout time.Duration

	Flags FeatureFlags
}

// FeatureFlags are hot-reloadable via Watcher.
type FeatureFlags struct {
	SyntheticOpticalFlow  bool `yaml:"synthetic_optical_flow"`
	QuotaFailOpen         bool `yaml:"quota_fail_open"`
	SessionStoreFailOpen  bool `yaml:"session_store_fail_open"`
}

// fileOverlay mirrors the subset of Config that config/default.yaml may set.
type fileOverlay struct {
	Flags FeatureFlags `yaml:"feature_flags"`
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		NATSUrl:       getenvDefault("NATS_URL", "nats://localhost:4222"),

		ObjectStoreEndpoint: os.Getenv("OBJECT_STORE_ENDPOINT"),
		ObjectStoreBucket:   getenvDefault("OBJECT_STORE_BUCKET", "veraproof-artifacts"),
		ObjectStoreLocalDir: getenvDefault("ARTIFACT_LOCAL_DIR", "./data/artifacts"),

		JWTSecret: getenvDefault("JWT_SECRET", "dev-secret-do-not-use-in-prod"),
		JWTIssuer: getenvDefault("JWT_ISSUER", "veraproof"),

		FrontendBaseURL: getenvDefault("FRONTEND_BASE_URL", "https://verify.veraproof.dev"),
		CORSOrigins:     []string{getenvDefault("CORS_ORIGIN", "*")},

		SessionExpirationMinutes: getenvInt("SESSION_EXPIRATION_MINUTES", 15),
		SessionExtensionMinutes:  getenvInt("SESSION_EXTENSION_MINUTES", 10),
		MaxConcurrentSessions:    getenvInt("MAX_CONCURRENT_SESSIONS", 10),
		APIRateLimitPerMinute:    getenvInt("API_RATE_LIMIT_PER_MINUTE", 100),
		ArtifactRetentionDays:    getenvInt("ARTIFACT_RETENTION_DAYS", 90),
		SignedURLExpirationSecs:  getenvInt("SIGNED_URL_EXPIRATION_SECONDS", 3600),
		FraudThreshold:           getenvFloat("FRAUD_THRESHOLD", 0.85),

		ClassifierEndpoint:  os.Getenv("CLASSIFIER_ENDPOINT"),
		ClassifierTimeout:   time.Duration(getenvInt("CLASSIFIER_TIMEOUT_SECONDS", 10)) * time.Second,
		ClassifierQueueSize: getenvInt("CLASSIFIER_QUEUE_SIZE", 64),
		ClassifierWorkers:   getenvInt("CLASSIFIER_WORKERS", 4),

		WebhookAttemptTimeout: 10 * time.Second,
	}

	if data, err := os.ReadFile("config/default.yaml"); err == nil {
		var overlay fileOverlay
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, err
		}
		c.Flags = overlay.Flags
	}

	return c, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
