// Package main implements the partscout API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/partscout/partscout/engine/catalog"
	"github.com/partscout/partscout/engine/identify"
	"github.com/partscout/partscout/engine/search"
	"github.com/partscout/partscout/engine/vehicle"
	"github.com/partscout/partscout/pkg/cache"
	"github.com/partscout/partscout/pkg/metrics"
	"github.com/partscout/partscout/pkg/mid"
	"github.com/partscout/partscout/pkg/ocr"
	"github.com/partscout/partscout/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OriginURL    string
	RedisURL     string
	NatsURL      string
	OllamaURL    string
	OllamaModel  string
	OCRSpaceURL  string
	OCRSpaceKey  string
	SparrowURL   string
	AllowMockOCR bool
	MaxResults   int
	CORSOrigin   string
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OriginURL:    envOr("ORIGIN_URL", "https://www.autoteile-markt.de"),
		RedisURL:     os.Getenv("REDIS_URL"),
		NatsURL:      os.Getenv("NATS_URL"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  envOr("OLLAMA_MODEL", "llama3.1"),
		OCRSpaceURL:  os.Getenv("OCR_SPACE_URL"),
		OCRSpaceKey:  envOr("OCR_SPACE_KEY", "helloworld"),
		SparrowURL:   envOr("SPARROW_URL", "http://localhost:8001"),
		AllowMockOCR: envOr("ALLOW_MOCK_OCR", "false") == "true",
		MaxResults:   envInt("MAX_RESULTS", 10),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	// --- Result cache: Redis when configured, in-process otherwise ---
	var store cache.Cache
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("using redis result cache")
	} else {
		store = cache.NewMemory()
		logger.Info("using in-memory result cache")
	}

	// --- Optional NATS for search-completed events ---
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		var err error
		nc, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
	}

	// --- Build the pipeline ---
	scraper := catalog.New(catalog.Config{BaseURL: cfg.OriginURL}, store, reg, logger)
	normalizer := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
	orchestrator := search.New(scraper, normalizer, logger)

	resolver := vehicle.New(vehicle.Config{BaseURL: cfg.OriginURL}, logger)
	identifier := identify.New(
		identify.Config{AllowMockOCR: cfg.AllowMockOCR},
		ocr.NewSpaceClient(cfg.OCRSpaceURL, cfg.OCRSpaceKey),
		ocr.NewSparrowClient(cfg.SparrowURL),
		ocr.Mock{},
		resolver,
		logger,
	)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("POST /api/search", handleSearch(orchestrator, nc, cfg.MaxResults, logger))
	mux.Handle("POST /api/vehicles/identify", handleIdentify(identifier, logger))
	mux.Handle("GET /api/vehicles/lookup", handleLookup(resolver, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.Measure(reg),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("partscout-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
