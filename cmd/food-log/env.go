package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mcp-food-log/internal/analysis"
	"mcp-food-log/internal/models"
)

func analysisConfigFromEnv() (analysis.Config, error) {
	cfg := analysis.Config{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		APIURL: os.Getenv("OPENAI_API_URL"),
		Model:  os.Getenv("OPENAI_MODEL"),
	}

	if cfg.APIKey == "" {
		keyFile := os.Getenv("OPENAI_API_KEY_FILE")
		if keyFile == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY or OPENAI_API_KEY_FILE must be set")
		}
		keyBytes, err := os.ReadFile(keyFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read API key file: %w", err)
		}
		cfg.APIKey = strings.TrimSpace(string(keyBytes))
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("API key file is empty")
		}
	}

	if v := os.Getenv("OPENAI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("OPENAI_MAX_TOKENS: %w", err)
		}
		cfg.MaxTokens = n
	}

	if v := os.Getenv("ANALYSIS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("ANALYSIS_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

func goalsFromEnv() (models.DailyGoals, error) {
	goals := models.DefaultDailyGoals()
	for _, g := range []struct {
		key string
		dst *int
	}{
		{"GOAL_CALORIES", &goals.Calories},
		{"GOAL_PROTEIN", &goals.Protein},
		{"GOAL_CARBS", &goals.Carbs},
		{"GOAL_FAT", &goals.Fat},
	} {
		v := os.Getenv(g.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return goals, fmt.Errorf("%s must be a non-negative integer, got %q", g.key, v)
		}
		*g.dst = n
	}
	return goals, nil
}
