package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-food-log/internal/models"
)

func TestAnalysisConfigFromEnv(t *testing.T) {
	t.Run("should read key and overrides", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-api-key")
		t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
		t.Setenv("OPENAI_MAX_TOKENS", "500")
		t.Setenv("ANALYSIS_TIMEOUT", "15s")

		cfg, err := analysisConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "test-api-key", cfg.APIKey)
		assert.Equal(t, "gpt-4o-mini", cfg.Model)
		assert.Equal(t, 500, cfg.MaxTokens)
		assert.Equal(t, 15*time.Second, cfg.Timeout)
	})

	t.Run("should read key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(path, []byte("  file-key\n"), 0o600))
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY_FILE", path)

		cfg, err := analysisConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "file-key", cfg.APIKey)
	})

	t.Run("should fail without API key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY_FILE", "")

		_, err := analysisConfigFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY or OPENAI_API_KEY_FILE must be set")
	})

	t.Run("should reject bad timeout", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "k")
		t.Setenv("ANALYSIS_TIMEOUT", "soon")

		_, err := analysisConfigFromEnv()
		assert.Error(t, err)
	})
}

func TestGoalsFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"GOAL_CALORIES", "GOAL_PROTEIN", "GOAL_CARBS", "GOAL_FAT"} {
			t.Setenv(k, "")
		}
		goals, err := goalsFromEnv()
		require.NoError(t, err)
		assert.Equal(t, models.DefaultDailyGoals(), goals)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("GOAL_CALORIES", "1800")
		t.Setenv("GOAL_FAT", "50")
		goals, err := goalsFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 1800, goals.Calories)
		assert.Equal(t, 50, goals.Fat)
		assert.Equal(t, 120, goals.Protein)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("GOAL_PROTEIN", "-3")
		_, err := goalsFromEnv()
		assert.Error(t, err)
	})
}
