package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/farm-assistant/internal/assistant"
)

type AppConfig struct {
	Port        string
	LogLevel    string
	LogFormat   string
	HTTPTimeout time.Duration

	// Assistant service.
	OpenAIAPIKey  string
	AssistantID   string
	OpenAIBaseURL string
	OpenAIModel   string

	// Run polling.
	Poller assistant.PollerConfig

	// Geocoding and weather.
	KakaoAPIKey      string
	KakaoBaseURL     string
	GoogleAPIKey     string
	KMAServiceKey    string
	KMABaseURL       string
	GeocodeCacheSize int

	// Optional shared geocode cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// Members backend; empty keeps registrations in memory.
	MembersBaseURL string

	// Pest bulletins.
	PestListURL         string
	PestDetailURL       string
	PestRefreshInterval time.Duration
	PestMaxAge          time.Duration

	// In-memory bulletin store retention.
	StoreMaxHistory int           // max number of bulletins kept (0 = unlimited)
	StoreMaxAge     time.Duration // max age of bulletins (0 = unlimited)
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AssistantID = os.Getenv("ASSISTANT_ID")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.OpenAIModel = getenvDefault("OPENAI_MODEL", "gpt-4o-mini")

	if cfg.Poller.Interval, err = getenvDuration("RUN_POLL_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	cfg.Poller.MaxAttempts = getenvInt("RUN_MAX_ATTEMPTS", 120)
	if cfg.Poller.MaxAttempts < 0 {
		return nil, fmt.Errorf("invalid RUN_MAX_ATTEMPTS: must not be negative")
	}
	if cfg.Poller.CancelledAs, err = assistant.ParseCancelPolicy(getenvDefault("RUN_CANCELLED_AS", "failed")); err != nil {
		return nil, fmt.Errorf("invalid RUN_CANCELLED_AS: %w", err)
	}

	cfg.KakaoAPIKey = os.Getenv("KAKAO_LOCAL_API_KEY")
	cfg.KakaoBaseURL = os.Getenv("KAKAO_BASE_URL")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_GEOCODING_API_KEY")
	cfg.KMAServiceKey = os.Getenv("WEATHER_API_KEY")
	cfg.KMABaseURL = os.Getenv("KMA_BASE_URL")
	cfg.GeocodeCacheSize = getenvInt("GEOCODE_CACHE_SIZE", 1024)

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)
	if cfg.RedisTTL, err = getenvDuration("REDIS_GEOCODE_TTL", "168h"); err != nil {
		return nil, err
	}

	cfg.MembersBaseURL = os.Getenv("MEMBERS_BASE_URL")

	cfg.PestListURL = os.Getenv("PEST_LIST_URL")
	cfg.PestDetailURL = os.Getenv("PEST_DETAIL_URL")
	if cfg.PestRefreshInterval, err = getenvDuration("PEST_REFRESH_INTERVAL", "6h"); err != nil {
		return nil, err
	}
	if cfg.PestMaxAge, err = getenvDuration("PEST_MAX_AGE", "12h"); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 28) // a week at 6-hour refreshes
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
