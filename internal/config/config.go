// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/grovia/internal/leaf"
)

// Config holds every runtime setting of the service.
type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	DatabaseDSN        string
	RedisAddr          string
	RedisPassword      string
	JWTSecret          string
	JWTAudience        string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	UploadDir          string
	MaxUploadSize      int64
	PublicBaseURL      string
	UseCloudStorage    bool
	GCSBucket          string
	GCSCredentialsFile string
	GCSFolder          string
	PipelineBudget     time.Duration
	InferenceTimeout   time.Duration
	StorageTimeout     time.Duration
	DefaultTimezone    string
	LogLevel           string
	RateLimitPerMinute int
	Leaf               leaf.Thresholds
}

var defaults = map[string]any{
	"HTTP_ADDR":             ":8080",
	"GRPC_ADDR":             ":9090",
	"GEMINI_MODEL":          "gemini-2.5-flash",
	"GEMINI_BASE_URL":       "https://generativelanguage.googleapis.com/v1beta",
	"UPLOAD_DIR":            "uploads",
	"MAX_UPLOAD_SIZE":       5 << 20,
	"PUBLIC_BASE_URL":       "http://localhost:8080",
	"USE_CLOUD_STORAGE":     false,
	"GCS_FOLDER":            "grovia/detections",
	"PIPELINE_BUDGET":       "25s",
	"INFERENCE_TIMEOUT":     "25s",
	"STORAGE_TIMEOUT":       "20s",
	"DEFAULT_TIMEZONE":      "Asia/Makassar",
	"LOG_LEVEL":             "info",
	"RATE_LIMIT_PER_MINUTE": 10,
	"LEAF_GREEN_DOMINANT":   30.0,
	"LEAF_GREEN_MODERATE":   20.0,
	"LEAF_GREEN_LOW":        10.0,
	"LEAF_TEXTURE_MODERATE": 10.0,
	"LEAF_TEXTURE_HIGH":     30.0,
	"LEAF_MAX_EDGE":         leaf.DefaultMaxEdge,
}

// Load reads settings from the environment. When envFile names an existing
// file it is read first and environment variables take precedence over it.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		GRPCAddr:           v.GetString("GRPC_ADDR"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		JWTSecret:          strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTAudience:        strings.TrimSpace(v.GetString("JWT_AUDIENCE")),
		GeminiAPIKey:       strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		GeminiBaseURL:      v.GetString("GEMINI_BASE_URL"),
		UploadDir:          v.GetString("UPLOAD_DIR"),
		MaxUploadSize:      v.GetInt64("MAX_UPLOAD_SIZE"),
		PublicBaseURL:      strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		UseCloudStorage:    v.GetBool("USE_CLOUD_STORAGE"),
		GCSBucket:          v.GetString("GCS_BUCKET"),
		GCSCredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),
		GCSFolder:          v.GetString("GCS_FOLDER"),
		PipelineBudget:     v.GetDuration("PIPELINE_BUDGET"),
		InferenceTimeout:   v.GetDuration("INFERENCE_TIMEOUT"),
		StorageTimeout:     v.GetDuration("STORAGE_TIMEOUT"),
		DefaultTimezone:    v.GetString("DEFAULT_TIMEZONE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		Leaf: leaf.Thresholds{
			GreenDominant:   v.GetFloat64("LEAF_GREEN_DOMINANT"),
			GreenModerate:   v.GetFloat64("LEAF_GREEN_MODERATE"),
			GreenLow:        v.GetFloat64("LEAF_GREEN_LOW"),
			TextureModerate: v.GetFloat64("LEAF_TEXTURE_MODERATE"),
			TextureHigh:     v.GetFloat64("LEAF_TEXTURE_HIGH"),
			MaxEdge:         v.GetInt("LEAF_MAX_EDGE"),
		},
	}

	if err := cfg.validateLimits(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateServe checks the settings required to run the HTTP service.
func (c *Config) ValidateServe() error {
	var problems []string
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.GeminiAPIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is required")
	}
	if c.DatabaseDSN == "" {
		problems = append(problems, "DATABASE_DSN is required")
	}
	if c.UseCloudStorage && c.GCSBucket == "" {
		problems = append(problems, "GCS_BUCKET is required when USE_CLOUD_STORAGE is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateLimits() error {
	switch {
	case c.MaxUploadSize <= 0:
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	case c.PipelineBudget <= 0:
		return errors.New("PIPELINE_BUDGET must be positive")
	case c.InferenceTimeout <= 0:
		return errors.New("INFERENCE_TIMEOUT must be positive")
	case c.StorageTimeout <= 0:
		return errors.New("STORAGE_TIMEOUT must be positive")
	case c.RateLimitPerMinute <= 0:
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	case c.Leaf.MaxEdge <= 0:
		return errors.New("LEAF_MAX_EDGE must be positive")
	case c.Leaf.GreenLow > c.Leaf.GreenModerate || c.Leaf.GreenModerate > c.Leaf.GreenDominant:
		return errors.New("leaf green thresholds must satisfy LOW <= MODERATE <= DOMINANT")
	}
	return nil
}
