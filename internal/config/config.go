// Package config loads service configuration from an optional YAML file,
// a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string
	LogMode string

	DBDriver string
	DBDSN    string

	// PDF storage
	BlobBackend string
	UploadDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string

	// Wizard drafts
	DraftBackend string
	DraftDir     string
	RedisURL     string
	DraftTTL     time.Duration

	// Workflow engine
	Engine        string
	WebhookURL    string
	EngineTimeout time.Duration

	ReconcileWindow time.Duration
	ChromePath      string

	OTelEnabled  bool
	OTelEndpoint string
	ServiceName  string
}

type rawConfig struct {
	Server struct {
		Addr    string `yaml:"addr"`
		LogMode string `yaml:"log_mode"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Storage struct {
		Backend   string `yaml:"backend"`
		UploadDir string `yaml:"upload_dir"`
		S3        struct {
			Bucket   string `yaml:"bucket"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"s3"`
	} `yaml:"storage"`
	Drafts struct {
		Backend  string `yaml:"backend"`
		Dir      string `yaml:"dir"`
		RedisURL string `yaml:"redis_url"`
		TTL      string `yaml:"ttl"`
	} `yaml:"drafts"`
	Engine struct {
		Kind       string `yaml:"kind"`
		WebhookURL string `yaml:"webhook_url"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"engine"`
	Reconcile struct {
		Window string `yaml:"window"`
	} `yaml:"reconcile"`
	Render struct {
		ChromePath string `yaml:"chrome_path"`
	} `yaml:"render"`
	Telemetry struct {
		Enabled     *bool  `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"telemetry"`
}

// Load reads .env (if present), then the YAML file at path (if present, with
// ${VAR} expansion), and fills every unset key from the environment or a
// default. An empty path falls back to CONFIG_PATH, then config.yaml.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = envOrDefault("CONFIG_PATH", "config.yaml")
	}
	var raw rawConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := &Config{
		Addr:         firstNonEmpty(raw.Server.Addr, envOrDefault("ADDR", ":8080")),
		LogMode:      firstNonEmpty(raw.Server.LogMode, envOrDefault("LOG_MODE", "dev")),
		DBDriver:     firstNonEmpty(raw.Database.Driver, envOrDefault("DB_DRIVER", "sqlite")),
		DBDSN:        firstNonEmpty(raw.Database.DSN, envOrDefault("DATABASE_URL", "data/audit.db")),
		BlobBackend:  firstNonEmpty(raw.Storage.Backend, envOrDefault("BLOB_BACKEND", "fs")),
		UploadDir:    firstNonEmpty(raw.Storage.UploadDir, envOrDefault("UPLOAD_DIR", "data/uploads/reports")),
		S3Bucket:     firstNonEmpty(raw.Storage.S3.Bucket, os.Getenv("S3_BUCKET")),
		S3Region:     firstNonEmpty(raw.Storage.S3.Region, envOrDefault("AWS_REGION", "us-east-1")),
		S3Endpoint:   firstNonEmpty(raw.Storage.S3.Endpoint, os.Getenv("S3_ENDPOINT")),
		S3Prefix:     firstNonEmpty(raw.Storage.S3.Prefix, envOrDefault("S3_PREFIX", "reports")),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
		DraftBackend: firstNonEmpty(raw.Drafts.Backend, envOrDefault("DRAFT_BACKEND", "file")),
		DraftDir:     firstNonEmpty(raw.Drafts.Dir, envOrDefault("DRAFT_DIR", "data/drafts")),
		RedisURL:     firstNonEmpty(raw.Drafts.RedisURL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		Engine:       firstNonEmpty(raw.Engine.Kind, envOrDefault("ENGINE", "simulate")),
		WebhookURL:   firstNonEmpty(raw.Engine.WebhookURL, os.Getenv("N8N_WEBHOOK_URL")),
		ChromePath:   firstNonEmpty(raw.Render.ChromePath, os.Getenv("CHROME_PATH")),
		OTelEndpoint: firstNonEmpty(raw.Telemetry.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:  firstNonEmpty(raw.Telemetry.ServiceName, envOrDefault("OTEL_SERVICE_NAME", "readiness-audit")),
	}

	if cfg.DraftTTL, err = durationOr(raw.Drafts.TTL, "DRAFT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EngineTimeout, err = durationOr(raw.Engine.Timeout, "ENGINE_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileWindow, err = durationOr(raw.Reconcile.Window, "RECONCILE_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if raw.Telemetry.Enabled != nil {
		cfg.OTelEnabled = *raw.Telemetry.Enabled
	} else {
		cfg.OTelEnabled = envBool("OTEL_ENABLED", false)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	switch c.BlobBackend {
	case "fs":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 blob backend")
		}
	default:
		return fmt.Errorf("unsupported blob backend %q", c.BlobBackend)
	}
	switch c.DraftBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("unsupported draft backend %q", c.DraftBackend)
	}
	switch c.Engine {
	case "simulate", "anthropic":
	case "http":
		if c.WebhookURL == "" {
			return errors.New("N8N_WEBHOOK_URL is required for the http engine")
		}
	default:
		return fmt.Errorf("unsupported engine %q", c.Engine)
	}
	return nil
}

func durationOr(yamlValue, envKey string, fallback time.Duration) (time.Duration, error) {
	v := firstNonEmpty(yamlValue, os.Getenv(envKey))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", strings.ToLower(envKey), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", strings.ToLower(envKey))
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
