// Package config loads runtime configuration from the environment, with a
// .env file honored in development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is the process configuration.
type Config struct {
	Port           string
	BackendBaseURL string
	GeminiAPIKey   string
	Language       string
	SilenceTimeout time.Duration
	JWTSecret      string
	MongoURI       string
	MongoDatabase  string
	UseMocks       bool
}

// Load reads configuration. A missing .env is not an error.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded configuration from .env")
	}

	cfg := Config{
		Port:           getenv("PORT", "8000"),
		BackendBaseURL: getenv("BACKEND_BASE_URL", "http://localhost:8000"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		Language:       getenv("SPEECH_LANGUAGE", "ko-KR"),
		SilenceTimeout: getdur("SILENCE_TIMEOUT", 2500*time.Millisecond),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  getenv("MONGODB_DATABASE", "sketchbook"),
		UseMocks:       os.Getenv("USE_MOCKS") == "true",
	}

	if cfg.GeminiAPIKey == "" && !cfg.UseMocks {
		logger.Warn("GEMINI_API_KEY not set; model calls will fail unless USE_MOCKS=true")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
