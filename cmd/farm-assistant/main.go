package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/farm-assistant/internal/api/http"
	"github.com/i474232898/farm-assistant/internal/assistant"
	"github.com/i474232898/farm-assistant/internal/assistant/openai"
	"github.com/i474232898/farm-assistant/internal/config"
	"github.com/i474232898/farm-assistant/internal/members"
	"github.com/i474232898/farm-assistant/internal/observability"
	"github.com/i474232898/farm-assistant/internal/pest"
	"github.com/i474232898/farm-assistant/internal/scheduler"
	"github.com/i474232898/farm-assistant/internal/store"
	"github.com/i474232898/farm-assistant/internal/weather"
	"github.com/i474232898/farm-assistant/internal/weather/providers"
)

const pestRefreshTimeout = 2 * time.Minute

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Geocoding: Kakao first, Google as fallback, cached in memory and optionally in Redis.
	geocoders := []weather.Geocoder{providers.NewKakaoGeocoder(httpClient, cfg.KakaoAPIKey, cfg.KakaoBaseURL)}
	if cfg.GoogleAPIKey != "" {
		geocoders = append(geocoders, providers.NewGoogleGeocoder(cfg.GoogleAPIKey))
	}
	var geo weather.Geocoder = providers.NewCachedGeocoder(
		providers.NewFallbackGeocoder(metrics, zl, geocoders...),
		cfg.GeocodeCacheSize,
		metrics,
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		geo = providers.NewRedisCachedGeocoder(geo, rdb, cfg.RedisTTL, metrics, zl)
	}

	weatherSvc := weather.NewService(
		geo,
		providers.NewKMAProvider(httpClient, cfg.KMAServiceKey, cfg.KMABaseURL),
		clock,
		metrics,
		zl,
	)

	// Assistant conversations.
	oai := openai.NewClient(httpClient, openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		AssistantID: cfg.AssistantID,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
	})
	poller := assistant.NewPoller(oai, cfg.Poller, clock, metrics, zl)

	var registry assistant.MemberRegistry
	if cfg.MembersBaseURL != "" {
		registry = members.NewClient(httpClient, cfg.MembersBaseURL)
	} else {
		zl.Warn("MEMBERS_BASE_URL not set; thread registrations are kept in memory")
		registry = members.NewMemoryRegistry()
	}
	chatSvc := assistant.NewService(oai, poller, registry, oai, weatherSvc, zl)

	// Pest bulletins, refreshed in the background.
	bulletins := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge, clock)
	pestSvc := pest.NewService(
		pest.NewScraper(httpClient, cfg.PestListURL, cfg.PestDetailURL),
		bulletins,
		cfg.PestMaxAge,
		clock,
		metrics,
		zl,
	)

	sched := scheduler.New(scheduler.RefresherFunc(func(ctx context.Context) error {
		_, err := pestSvc.Refresh(ctx)
		return err
	}), cfg.PestRefreshInterval, pestRefreshTimeout, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Runs are awaited inside the request, so the write deadline follows the poll budget.
	var writeTimeout time.Duration
	if cfg.Poller.MaxAttempts > 0 {
		writeTimeout = cfg.Poller.Interval*time.Duration(cfg.Poller.MaxAttempts) + 30*time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "farm-assistant",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          writeTimeout,
		ErrorHandler:          httpapi.ErrorHandler(zl),
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "farm-assistant",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Services{
		Chat:    chatSvc,
		Weather: weatherSvc,
		Pests:   pestSvc,
	})

	go func() {
		zl.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Warn("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Warn("error during shutdown", zap.Error(err))
	}
}
