package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Execution modes.
const (
	ExecutionInline = "inline"
	ExecutionQueue  = "queue"
)

// Storage backends.
const (
	StorageFile = "file"
	StorageGCS  = "gcs"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	AdminSecret string `env:"ADMIN_SECRET,notEmpty"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	ExecutionMode        string `env:"EXECUTION_MODE" envDefault:"inline"`
	ExecutionConcurrency int    `env:"EXECUTION_CONCURRENCY" envDefault:"4"`

	StorageBackend  string        `env:"STORAGE_BACKEND" envDefault:"file"`
	StoragePath     string        `env:"STORAGE_PATH" envDefault:"./storage"`
	StorageBaseURL  string        `env:"STORAGE_BASE_URL"`
	GCSBucket       string        `env:"GCS_BUCKET"`
	GCSCredentials  string        `env:"GCS_CREDENTIALS_JSON"`
	GCSSignedURLTTL time.Duration `env:"GCS_SIGNED_URL_TTL" envDefault:"168h"`

	RunDiffusionAPIKey       string        `env:"RUNDIFFUSION_API_KEY"`
	RunDiffusionBaseURL      string        `env:"RUNDIFFUSION_BASE_URL" envDefault:"https://api.rundiffusion.com/v1"`
	RunDiffusionTimeout      time.Duration `env:"RUNDIFFUSION_TIMEOUT" envDefault:"15m"`
	RunDiffusionPollInterval time.Duration `env:"RUNDIFFUSION_POLL_INTERVAL" envDefault:"3s"`
	RunDiffusionPollAttempts int           `env:"RUNDIFFUSION_POLL_ATTEMPTS" envDefault:"60"`

	HuggingFaceToken    string        `env:"HUGGINGFACE_TOKEN"`
	HuggingFaceVideoURL string        `env:"HUGGINGFACE_VIDEO_URL" envDefault:"https://api-inference.huggingface.co/models/ali-vilab/text-to-video-ms-1.7b"`
	HuggingFaceTTSURL   string        `env:"HUGGINGFACE_TTS_URL" envDefault:"https://api-inference.huggingface.co/models/facebook/mms-tts-eng"`
	HuggingFaceTimeout  time.Duration `env:"HUGGINGFACE_TIMEOUT" envDefault:"15m"`
	VoiceTimeout        time.Duration `env:"VOICE_TIMEOUT" envDefault:"2m"`
	SyntheticProvider   bool          `env:"SYNTHETIC_PROVIDER"`

	FFmpegPath    string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	WatermarkText string `env:"WATERMARK_TEXT" envDefault:"Kairah Studio"`

	PostProcessTimeout time.Duration `env:"POSTPROCESS_TIMEOUT" envDefault:"5m"`
	StorageTimeout     time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5m"`

	PubSubProjectID   string `env:"PUBSUB_PROJECT_ID"`
	PubSubTopic       string `env:"PUBSUB_TOPIC"`
	PubSubCredentials string `env:"PUBSUB_CREDENTIALS_JSON"`

	GeoIPDBPath        string   `env:"GEOIP_DB_PATH"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	RateLimitPerMin    int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	WorkerReconcileInterval time.Duration `env:"WORKER_RECONCILE_INTERVAL" envDefault:"10s"`
	WorkerReconcileGrace    time.Duration `env:"WORKER_RECONCILE_GRACE" envDefault:"1m"`
}

// LoadConfig reads an optional .env file, parses the environment and
// validates cross-field requirements.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ExecutionMode = strings.ToLower(strings.TrimSpace(cfg.ExecutionMode))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}
	if cfg.ExecutionConcurrency <= 0 {
		cfg.ExecutionConcurrency = 1
	}

	switch cfg.ExecutionMode {
	case ExecutionInline:
	case ExecutionQueue:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when EXECUTION_MODE=%s", ExecutionQueue)
		}
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when EXECUTION_MODE=%s", ExecutionQueue)
		}
	default:
		return nil, fmt.Errorf("unsupported EXECUTION_MODE %q", cfg.ExecutionMode)
	}

	switch cfg.StorageBackend {
	case StorageFile:
	case StorageGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=%s", StorageGCS)
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if cfg.RunDiffusionPollAttempts <= 0 {
		return nil, fmt.Errorf("RUNDIFFUSION_POLL_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// PublishesEvents reports whether lifecycle events go to Pub/Sub.
func (c *Config) PublishesEvents() bool {
	return c.PubSubProjectID != "" && c.PubSubTopic != ""
}
