package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/text/language"

	"github.com/dkurilov/paratrans/internal/llm"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 4000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Translation Configuration:
// - SOURCE_LANGUAGE: Default source language (default: auto-detect)
// - TARGET_LANGUAGE: Default target language (default: ru)
// - WORKER_COUNT: Concurrent paragraph translations per job (default: 5)
// - MAX_RETRIES: Attempt budget per paragraph (default: 3)
// - STREAM_TRANSLATIONS: Stream provider output (default: true)
//
// Segmentation Configuration:
// - SEGMENT_MIN_LENGTH: Minimum paragraph length in characters (default: 50)
// - SEGMENT_MAX_SIZE: Maximum paragraph size in characters (default: 2000)
//
// Storage and Pipeline Configuration:
// - DB_PATH: SQLite database path (default: data/paratrans.db)
// - INBOX_DIR: Directory scanned for new documents (default: inbox)
// - OUTPUT_DIR: Directory for translated output (default: output)
// - SCAN_CRON: Inbox scan schedule (default: every minute)
// - QUEUE_WORKERS: Concurrent document jobs (default: 1)
//
// HTTP Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
type Config struct {
	LLM       llm.Config      `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Segment   SegmentConfig   `json:"segment"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	HTTP      HTTPConfig      `json:"http"`
}

// TranslateConfig holds per-job translation defaults.
type TranslateConfig struct {
	SourceLanguage language.Tag `json:"source_language"`
	TargetLanguage language.Tag `json:"target_language"`
	WorkerCount    int          `json:"worker_count"`
	MaxRetries     int          `json:"max_retries"`
	Stream         bool         `json:"stream"`
}

// SegmentConfig bounds paragraph sizes produced by the segmenter.
type SegmentConfig struct {
	MinLength int `json:"min_length"`
	MaxSize   int `json:"max_size"`
}

// PipelineConfig holds storage paths and the inbox scan schedule.
type PipelineConfig struct {
	DBPath       string `json:"db_path"`
	InboxDir     string `json:"inbox_dir"`
	OutputDir    string `json:"output_dir"`
	ScanCron     string `json:"scan_cron"`
	QueueWorkers int    `json:"queue_workers"`
}

// HTTPConfig holds the HTTP server configuration.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: llm.Config{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 4000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", "paratrans"),
		},
		Translate: TranslateConfig{
			SourceLanguage: getEnvLanguage("SOURCE_LANGUAGE", language.Und),
			TargetLanguage: getEnvLanguage("TARGET_LANGUAGE", language.Russian),
			WorkerCount:    getEnvInt("WORKER_COUNT", 5),
			MaxRetries:     getEnvInt("MAX_RETRIES", 3),
			Stream:         getEnvBool("STREAM_TRANSLATIONS", true),
		},
		Segment: SegmentConfig{
			MinLength: getEnvInt("SEGMENT_MIN_LENGTH", 50),
			MaxSize:   getEnvInt("SEGMENT_MAX_SIZE", 2000),
		},
		Pipeline: PipelineConfig{
			DBPath:       getEnvString("DB_PATH", "data/paratrans.db"),
			InboxDir:     getEnvString("INBOX_DIR", "inbox"),
			OutputDir:    getEnvString("OUTPUT_DIR", "output"),
			ScanCron:     getEnvString("SCAN_CRON", "* * * * *"),
			QueueWorkers: getEnvInt("QUEUE_WORKERS", 1),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Translate.TargetLanguage == language.Und {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if c.Translate.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.Segment.MinLength < 1 || c.Segment.MaxSize <= c.Segment.MinLength {
		return fmt.Errorf("segment bounds invalid: min=%d max=%d", c.Segment.MinLength, c.Segment.MaxSize)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvLanguage parses a BCP 47 tag from environment variables with default
func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}
