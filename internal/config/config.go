package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service and CLI.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	SQLitePath             string
	RedisURL               string
	NATSURL                string
	CORSAllowOrigins       string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ReportCacheTTL         time.Duration
	UploadMaxSizeMB        int
	LogLevel               string
	LogFile                string

	AI         AIConfig
	Keywords   KeywordConfig
	LowEffort  LowEffortConfig
	Scoring    ScoringConfig
	Batch      BatchConfig
	RateLimits RateLimitConfig
}

// AIConfig selects and tunes the LLM provider.
type AIConfig struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxTokens       int
	Timeout         time.Duration
}

// APIKey returns the credential for the selected provider.
func (c AIConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// KeywordConfig bounds keyword extraction.
type KeywordConfig struct {
	Min       int
	TargetMin int
	TargetMax int
}

// LowEffortConfig tunes the keyword-stuffing heuristic.
type LowEffortConfig struct {
	WordFloor      int
	DensityCeiling float64
}

// ScoringConfig selects the overall score formula.
type ScoringConfig struct {
	Formula               string
	WeightCoverage        float64
	WeightContent         float64
	WeightStructure       float64
	WeightCriticalThought float64
	DefaultMaxPoints      float64
}

// BatchConfig tunes batch evaluation.
type BatchConfig struct {
	Concurrency   int
	RetryAttempts int
	RetryDelay    time.Duration
}

// RateLimitConfig limits the expensive evaluation endpoints per caller.
type RateLimitConfig struct {
	EvaluateMax    int
	EvaluateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ValidateServer checks the settings only the HTTP API needs.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("jwt secrets must be provided")
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		return fmt.Errorf("database url or sqlite path must be provided")
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grade Sanchalaak")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "grade-sanchalaak/submissions")
	v.SetDefault("report.cache_ttl", "5m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("keywords.min", 5)
	v.SetDefault("keywords.target_min", 30)
	v.SetDefault("keywords.target_max", 50)
	v.SetDefault("low_effort.word_floor", 100)
	v.SetDefault("low_effort.density_ceiling", 0.3)
	v.SetDefault("scoring.formula", "weighted")
	v.SetDefault("scoring.weight_coverage", 0.40)
	v.SetDefault("scoring.weight_content", 0.30)
	v.SetDefault("scoring.weight_structure", 0.15)
	v.SetDefault("scoring.weight_critical_thinking", 0.15)
	v.SetDefault("scoring.default_max_points", 100)
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_delay", "2s")
	v.SetDefault("rate_limit.evaluate_max", 20)
	v.SetDefault("rate_limit.evaluate_window", "1m")

	durations := map[string]time.Duration{}
	for key, fallback := range map[string]string{
		"report.cache_ttl":           "5m",
		"ai.timeout":                 "60s",
		"batch.retry_delay":          "2s",
		"rate_limit.evaluate_window": "1m",
	} {
		raw := v.GetString(key)
		if raw == "" {
			raw = fallback
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		SQLitePath:             v.GetString("database.sqlite_path"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ReportCacheTTL:         durations["report.cache_ttl"],
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		LogFile:                v.GetString("log.file"),
		AI: AIConfig{
			Provider:        strings.ToLower(v.GetString("ai.provider")),
			OpenAIAPIKey:    v.GetString("openai_api_key"),
			AnthropicAPIKey: v.GetString("anthropic_api_key"),
			Model:           v.GetString("ai.model"),
			BaseURL:         v.GetString("ai.base_url"),
			Temperature:     float32(v.GetFloat64("ai.temperature")),
			MaxTokens:       v.GetInt("ai.max_tokens"),
			Timeout:         durations["ai.timeout"],
		},
		Keywords: KeywordConfig{
			Min:       v.GetInt("keywords.min"),
			TargetMin: v.GetInt("keywords.target_min"),
			TargetMax: v.GetInt("keywords.target_max"),
		},
		LowEffort: LowEffortConfig{
			WordFloor:      v.GetInt("low_effort.word_floor"),
			DensityCeiling: v.GetFloat64("low_effort.density_ceiling"),
		},
		Scoring: ScoringConfig{
			Formula:               v.GetString("scoring.formula"),
			WeightCoverage:        v.GetFloat64("scoring.weight_coverage"),
			WeightContent:         v.GetFloat64("scoring.weight_content"),
			WeightStructure:       v.GetFloat64("scoring.weight_structure"),
			WeightCriticalThought: v.GetFloat64("scoring.weight_critical_thinking"),
			DefaultMaxPoints:      v.GetFloat64("scoring.default_max_points"),
		},
		Batch: BatchConfig{
			Concurrency:   v.GetInt("batch.concurrency"),
			RetryAttempts: v.GetInt("batch.retry_attempts"),
			RetryDelay:    durations["batch.retry_delay"],
		},
		RateLimits: RateLimitConfig{
			EvaluateMax:    v.GetInt("rate_limit.evaluate_max"),
			EvaluateWindow: durations["rate_limit.evaluate_window"],
		},
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = 1
	}

	if cfg.AI.Provider != "openai" && cfg.AI.Provider != "anthropic" {
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}

	return cfg, nil
}
