package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/enrich"
	"github.com/shpitdev/leadfinder/internal/enrich/gemini"
	"github.com/shpitdev/leadfinder/internal/exa"
	"github.com/shpitdev/leadfinder/internal/ghl"
)

// workerConfig is the shared retry and concurrency knobs for the Exa-backed runs.
type workerConfig struct {
	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	FailFast       bool
}

func loadWorkerConfigFromEnv() (workerConfig, error) {
	workers, err := envInt("WORKERS", 10)
	if err != nil {
		return workerConfig{}, err
	}
	maxRetries, err := envInt("MAX_RETRIES", 3)
	if err != nil {
		return workerConfig{}, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return workerConfig{}, err
	}
	rateLimitRPS, err := envFloat("RATE_LIMIT_RPS", 0)
	if err != nil {
		return workerConfig{}, err
	}
	failFast, err := envBool("FAIL_FAST")
	if err != nil {
		return workerConfig{}, err
	}
	return workerConfig{
		Workers:        workers,
		MaxRetries:     maxRetries,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   rateLimitRPS,
		FailFast:       failFast,
	}, nil
}

func (w workerConfig) enrichOptions() enrich.Options {
	return enrich.Options{
		Workers:        w.Workers,
		MaxRetries:     w.MaxRetries,
		RequestTimeout: w.RequestTimeout,
		RateLimitRPS:   w.RateLimitRPS,
		FailFast:       w.FailFast,
	}
}

func loadExaConfigFromEnv() (exa.Config, error) {
	apiKey := strings.TrimSpace(os.Getenv("EXA_API_KEY"))
	if apiKey == "" {
		return exa.Config{}, fmt.Errorf("EXA_API_KEY is required")
	}
	return exa.Config{
		APIKey:  apiKey,
		BaseURL: strings.TrimSpace(os.Getenv("EXA_BASE_URL")),
	}, nil
}

// loadGeminiConfigFromEnv returns ok=false when GEMINI_API_KEY is unset; insights then fall
// back to the record summary.
func loadGeminiConfigFromEnv() (cfg gemini.Config, ok bool, err error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return gemini.Config{}, false, nil
	}
	grounded, err := envBool("GEMINI_GROUNDED")
	if err != nil {
		return gemini.Config{}, false, err
	}
	return gemini.Config{
		APIKey:   apiKey,
		Model:    envString("GEMINI_MODEL", "gemini-2.5-flash"),
		BaseURL:  strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		Grounded: grounded,
	}, true, nil
}

func loadOAuthConfigFromEnv() ghl.OAuthConfig {
	return ghl.OAuthConfig{
		ClientID:     strings.TrimSpace(os.Getenv("GHL_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("GHL_CLIENT_SECRET")),
		RedirectURL:  strings.TrimSpace(os.Getenv("GHL_REDIRECT_URL")),
		BaseURL:      strings.TrimSpace(os.Getenv("GHL_BASE_URL")),
	}
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
