package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogEncoding     string        `env:"LOG_ENCODING" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Document store.
	StoreBackend        string `env:"STORE_BACKEND" envDefault:"firestore"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`

	// Classification service.
	MLServiceURL string        `env:"ML_SERVICE_URL" envDefault:"http://localhost:8000"`
	MLTimeout    time.Duration `env:"ML_TIMEOUT" envDefault:"20s"`
	MLRateLimit  float64       `env:"ML_RATE_LIMIT" envDefault:"5"`

	// Reasoning service.
	OpenAIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIModel        string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ReasoningTimeout   time.Duration `env:"REASONING_TIMEOUT" envDefault:"30s"`
	ReasoningRateLimit float64       `env:"REASONING_RATE_LIMIT" envDefault:"2"`

	// Geocoding.
	Geocoder        string        `env:"GEOCODER" envDefault:"google"`
	MapsCredentials string        `env:"MAPS_CREDENTIALS"`
	NominatimURL    string        `env:"NOMINATIM_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocodeTimeout  time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"5s"`

	NaturalLanguageCredentials string `env:"NATURAL_LANGUAGE_CREDENTIALS"`

	BatchWorkers     int           `env:"BATCH_WORKERS" envDefault:"4"`
	ReconcilePolicy  string        `env:"RECONCILE_POLICY" envDefault:"off"`
	ClassifyAttempts int           `env:"CLASSIFY_ATTEMPTS" envDefault:"2"`
	ClassifyBackoff  time.Duration `env:"CLASSIFY_BACKOFF" envDefault:"500ms"`

	// Alerts.
	AlertSeverityThreshold float64 `env:"ALERT_SEVERITY_THRESHOLD" envDefault:"0.65"`
	AlertWebhookURL        string  `env:"ALERT_WEBHOOK_URL"`
	AlertSchedule          string  `env:"ALERT_SCHEDULE" envDefault:"0 13 * * *"`
	AlertRetryMax          int     `env:"ALERT_RETRY_MAX" envDefault:"3"`

	// Retention.
	RetentionAge      time.Duration `env:"RETENTION_AGE" envDefault:"720h"`
	RetentionSchedule string        `env:"RETENTION_SCHEDULE" envDefault:"0 0 * * *"`

	// Feed ingestion.
	FeedSchedule string        `env:"FEED_SCHEDULE" envDefault:"0 4 * * *"`
	FeedHost     string        `env:"FEED_HOST" envDefault:"https://public.api.bsky.app"`
	FeedURIs     []string      `env:"FEED_URIS" envSeparator:","`
	FeedLimit    int           `env:"FEED_LIMIT" envDefault:"10"`
	FeedTimeout  time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"crisis-records"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; deployments set real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses configuration from an explicit environment map.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "firestore", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreBackend == "firestore" && c.FirebaseCredentials == "" {
		return errors.New("FIREBASE_CREDENTIALS is required for the firestore backend")
	}
	switch c.Geocoder {
	case "google", "nominatim":
	default:
		return fmt.Errorf("unknown GEOCODER %q", c.Geocoder)
	}
	switch c.ReconcilePolicy {
	case "off", "merge":
	default:
		return fmt.Errorf("unknown RECONCILE_POLICY %q", c.ReconcilePolicy)
	}
	if c.MLTimeout <= 0 || c.ReasoningTimeout <= 0 || c.GeocodeTimeout <= 0 || c.FeedTimeout <= 0 {
		return errors.New("adapter timeouts must be positive")
	}
	if c.MLRateLimit <= 0 || c.ReasoningRateLimit <= 0 {
		return errors.New("adapter rate limits must be positive")
	}
	if c.ClassifyAttempts < 1 {
		return errors.New("CLASSIFY_ATTEMPTS must be at least 1")
	}
	if c.ClassifyBackoff < 0 {
		return errors.New("CLASSIFY_BACKOFF must not be negative")
	}
	if c.BatchWorkers < 1 {
		return errors.New("BATCH_WORKERS must be at least 1")
	}
	if c.AlertSeverityThreshold < 0 || c.AlertSeverityThreshold > 1 {
		return fmt.Errorf("ALERT_SEVERITY_THRESHOLD must be within [0,1], got %v", c.AlertSeverityThreshold)
	}
	if c.AlertRetryMax < 0 {
		return errors.New("ALERT_RETRY_MAX must not be negative")
	}
	if c.RetentionAge <= 0 {
		return errors.New("RETENTION_AGE must be positive")
	}
	if c.FeedLimit < 1 || c.FeedLimit > 100 {
		return fmt.Errorf("FEED_LIMIT must be within [1,100], got %d", c.FeedLimit)
	}
	return nil
}
