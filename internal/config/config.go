package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server (dev backend)
	HTTPAddr string
	LogLevel string

	// Backend endpoints
	APIBaseURL     string
	ContentBaseURL string

	// Auth
	APIToken string

	// HTTP client
	RequestTimeout time.Duration

	// Media
	MPVSocket       string // mpv JSON-IPC socket path for desktop playback
	MoodMusicVolume float64
	NarrationVolume float64

	// Dev backend behavior
	TranslationDelay time.Duration // simulated generation delay before a translation becomes ready
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080/v1"),
		ContentBaseURL: getEnv("CONTENT_BASE_URL", "http://localhost:8080/blob"),

		APIToken: getEnv("API_TOKEN", ""),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		MPVSocket:       getEnv("MPV_SOCKET", "/tmp/fableweave-mpv.sock"),
		MoodMusicVolume: getEnvFloat("MOOD_MUSIC_VOLUME", 0.3),
		NarrationVolume: getEnvFloat("NARRATION_VOLUME", 1.0),

		TranslationDelay: getEnvDuration("TRANSLATION_DELAY", 2*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
