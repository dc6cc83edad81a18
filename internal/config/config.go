// Package config loads server settings from a YAML file, the environment
// and a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "shortforge.yaml"

// Config holds all configuration values for the server.
type Config struct {
	HTTPPort int
	LogLevel slog.Level

	UploadsDir string
	OutputsDir string

	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	GeminiAPIKey      string
	GeminiImageModel  string

	// Store backend: "memory" or "postgres"
	StoreDriver string
	DatabaseURL string

	WorkerConcurrency int
	JobTimeout        time.Duration
	DrainTimeout      time.Duration

	// Encoder runtime: "exec" or "docker"
	Runtime     string
	FFmpegPath  string
	FFmpegImage string

	// Job creations per second per client; 0 disables limiting
	RateLimit      float64
	RateLimitBurst int

	OTELEndpoint     string
	TracingEnabled   bool
	TraceSampleRatio float64
}

// env maps config keys to their environment variable names.
var env = map[string]string{
	"http_port":           "PORT",
	"log_level":           "LOG_LEVEL",
	"uploads_dir":         "UPLOADS_DIR",
	"outputs_dir":         "OUTPUTS_DIR",
	"admin_password":      "ADMIN_PASSWORD",
	"jwt_secret":          "JWT_SECRET",
	"token_ttl":           "TOKEN_TTL",
	"openai_api_key":      "OPENAI_API_KEY",
	"openai_base_url":     "OPENAI_BASE_URL",
	"elevenlabs_api_key":  "ELEVENLABS_API_KEY",
	"elevenlabs_base_url": "ELEVENLABS_BASE_URL",
	"elevenlabs_voice_id": "ELEVENLABS_VOICE_ID",
	"gemini_api_key":      "GEMINI_API_KEY",
	"gemini_image_model":  "GEMINI_IMAGE_MODEL",
	"store_driver":        "STORE_DRIVER",
	"database_url":        "DATABASE_URL",
	"worker_concurrency":  "WORKER_CONCURRENCY",
	"job_timeout":         "JOB_TIMEOUT",
	"drain_timeout":       "DRAIN_TIMEOUT",
	"runtime":             "RUNTIME",
	"ffmpeg_path":         "FFMPEG_PATH",
	"ffmpeg_image":        "FFMPEG_IMAGE",
	"rate_limit":          "RATE_LIMIT",
	"rate_limit_burst":    "RATE_LIMIT_BURST",
	"otel_endpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing_enabled":     "TRACING_ENABLED",
	"trace_sample_ratio":  "TRACE_SAMPLE_RATIO",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("uploads_dir", "./uploads")
	v.SetDefault("outputs_dir", "./outputs")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("elevenlabs_voice_id", "EXAVITQu4vr4xnSDxMaL")
	v.SetDefault("store_driver", "memory")
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("job_timeout", "30m")
	v.SetDefault("drain_timeout", "2m")
	v.SetDefault("runtime", "exec")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg_image", "jrottenberg/ffmpeg:6.1-ubuntu")
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("trace_sample_ratio", 1.0)
}

// Load reads configuration. Precedence: environment, then the YAML file at
// path (or ./shortforge.yaml if present), then defaults. A .env file in the
// working directory populates the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:          v.GetInt("http_port"),
		UploadsDir:        v.GetString("uploads_dir"),
		OutputsDir:        v.GetString("outputs_dir"),
		AdminPassword:     v.GetString("admin_password"),
		JWTSecret:         v.GetString("jwt_secret"),
		TokenTTL:          v.GetDuration("token_ttl"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIBaseURL:     v.GetString("openai_base_url"),
		ElevenLabsAPIKey:  v.GetString("elevenlabs_api_key"),
		ElevenLabsBaseURL: v.GetString("elevenlabs_base_url"),
		ElevenLabsVoiceID: v.GetString("elevenlabs_voice_id"),
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		GeminiImageModel:  v.GetString("gemini_image_model"),
		StoreDriver:       strings.ToLower(v.GetString("store_driver")),
		DatabaseURL:       v.GetString("database_url"),
		WorkerConcurrency: v.GetInt("worker_concurrency"),
		JobTimeout:        v.GetDuration("job_timeout"),
		DrainTimeout:      v.GetDuration("drain_timeout"),
		Runtime:           strings.ToLower(v.GetString("runtime")),
		FFmpegPath:        v.GetString("ffmpeg_path"),
		FFmpegImage:       v.GetString("ffmpeg_image"),
		RateLimit:         v.GetFloat64("rate_limit"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),
		OTELEndpoint:      v.GetString("otel_endpoint"),
		TracingEnabled:    v.GetBool("tracing_enabled"),
		TraceSampleRatio:  v.GetFloat64("trace_sample_ratio"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid log_level %q (env: LOG_LEVEL)", v.GetString("log_level"))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AdminPassword == "" {
		return required("admin_password")
	}
	if c.JWTSecret == "" {
		return required("jwt_secret")
	}

	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return required("database_url")
		}
	default:
		return fmt.Errorf("invalid store_driver %q: must be memory or postgres (env: STORE_DRIVER)", c.StoreDriver)
	}

	if c.Runtime != "exec" && c.Runtime != "docker" {
		return fmt.Errorf("invalid runtime %q: must be exec or docker (env: RUNTIME)", c.Runtime)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive (env: WORKER_CONCURRENCY)")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d (env: PORT)", c.HTTPPort)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative (env: RATE_LIMIT)")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("trace_sample_ratio must be between 0 and 1 (env: TRACE_SAMPLE_RATIO)")
	}
	return nil
}

func required(key string) error {
	return fmt.Errorf("%s is required (env: %s)", key, env[key])
}

// MissingProviderKeys lists provider credentials that are not set.
func (c *Config) MissingProviderKeys() []string {
	var missing []string
	for key, val := range map[string]string{
		"openai_api_key":     c.OpenAIAPIKey,
		"elevenlabs_api_key": c.ElevenLabsAPIKey,
		"gemini_api_key":     c.GeminiAPIKey,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
