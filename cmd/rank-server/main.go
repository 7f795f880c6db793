package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/amazon-rank-tracker/internal/api"
	"github.com/maltedev/amazon-rank-tracker/internal/browser"
	"github.com/maltedev/amazon-rank-tracker/internal/config"
	"github.com/maltedev/amazon-rank-tracker/internal/database"
	"github.com/maltedev/amazon-rank-tracker/internal/queue"
	"github.com/maltedev/amazon-rank-tracker/internal/rank"
	"github.com/maltedev/amazon-rank-tracker/internal/report"
	"github.com/maltedev/amazon-rank-tracker/internal/snapshot"
	"github.com/maltedev/amazon-rank-tracker/internal/stream"
	"github.com/maltedev/amazon-rank-tracker/internal/tracker"
	"github.com/maltedev/amazon-rank-tracker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run status and records live in Postgres; without it the API has
	// nothing to serve.
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
	})
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	var providerOpts []snapshot.ProviderOption
	if cfg.Output.Screenshots {
		providerOpts = append(providerOpts, snapshot.WithScreenshots(cfg.Output.ShotDir))
	}
	factory := tracker.SessionFactoryFunc(func(ctx context.Context) (tracker.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return snapshot.NewPlaywrightProvider(b, log, providerOpts...), nil
	})

	opts := []tracker.Option{tracker.WithDatabase(db)}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		opts = append(opts, tracker.WithPublisher(
			stream.NewPublisher(redisClient, cfg.Redis.Stream, log),
		))
	}

	service := tracker.New(factory, report.NewWriter(cfg.Output.Dir), tracker.Config{
		Concurrency: cfg.Tracker.Concurrency,
		Scanner: rank.ScannerConfig{
			MaxPages: cfg.Tracker.MaxPages,
			Strategy: cfg.Tracker.Strategy,
		},
		RateLimitMin: cfg.Tracker.RateLimitMin,
		RateLimitMax: cfg.Tracker.RateLimitMax,
	}, log, opts...)

	jobQueue := queue.NewInMemoryQueue()
	defer jobQueue.Close()

	worker := api.NewWorker(jobQueue, service, log)
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped with error", "error", err)
		}
	}()

	handlers := api.NewHandlers(jobQueue, db, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"queue":  jobQueue.Size(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", handlers.CreateRun)
		r.Get("/runs/{runID}", handlers.GetRun)
		r.Get("/runs/{runID}/records", handlers.GetRunRecords)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
