package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.APIURL)
	assert.Equal(t, language.Russian, cfg.Translate.TargetLanguage)
	assert.Equal(t, language.Und, cfg.Translate.SourceLanguage)
	assert.Equal(t, 5, cfg.Translate.WorkerCount)
	assert.Equal(t, 3, cfg.Translate.MaxRetries)
	assert.True(t, cfg.Translate.Stream)
	assert.Equal(t, 50, cfg.Segment.MinLength)
	assert.Equal(t, 2000, cfg.Segment.MaxSize)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("TARGET_LANGUAGE", "de")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("STREAM_TRANSLATIONS", "false")
	t.Setenv("SEGMENT_MAX_SIZE", "1500")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, language.German, cfg.Translate.TargetLanguage)
	assert.Equal(t, 8, cfg.Translate.WorkerCount)
	assert.False(t, cfg.Translate.Stream)
	assert.Equal(t, 1500, cfg.Segment.MaxSize)
}

func TestNewFromEnv_RequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestNewFromEnv_InvalidSegmentBounds(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("SEGMENT_MIN_LENGTH", "2000")
	t.Setenv("SEGMENT_MAX_SIZE", "100")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_Options(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := NewFromEnv(func(c *Config) {
		c.Translate.WorkerCount = 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Translate.WorkerCount)
}
