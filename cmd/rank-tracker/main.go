package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/amazon-rank-tracker/internal/browser"
	"github.com/maltedev/amazon-rank-tracker/internal/config"
	"github.com/maltedev/amazon-rank-tracker/internal/database"
	"github.com/maltedev/amazon-rank-tracker/internal/rank"
	"github.com/maltedev/amazon-rank-tracker/internal/report"
	"github.com/maltedev/amazon-rank-tracker/internal/snapshot"
	"github.com/maltedev/amazon-rank-tracker/internal/stream"
	"github.com/maltedev/amazon-rank-tracker/internal/targets"
	"github.com/maltedev/amazon-rank-tracker/internal/tracker"
	"github.com/maltedev/amazon-rank-tracker/pkg/logger"
)

func main() {
	var (
		inputPath   = flag.String("input", "targets.csv", "CSV file with ASIN, SEARCH TERM and ACTIVE columns")
		outputDir   = flag.String("output", "", "directory for the result CSV (overrides OUTPUT_DIR)")
		maxPages    = flag.Int("pages", 0, "search result pages to scan per keyword (overrides TRACKER_MAX_PAGES)")
		concurrency = flag.Int("concurrency", 0, "keywords scanned in parallel (overrides TRACKER_CONCURRENCY)")
		strategy    = flag.String("strategy", "", "sponsored fallback strategy: proximity or ancestor")
		headless    = flag.Bool("headless", true, "run the browser headless")
		screenshots = flag.Bool("screenshot", false, "save a full-page screenshot per scanned page")
		replayGlob  = flag.String("replay", "", "glob of saved result pages to scan instead of the live site")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *maxPages > 0 {
		cfg.Tracker.MaxPages = *maxPages
	}
	if *concurrency > 0 {
		cfg.Tracker.Concurrency = *concurrency
	}
	if *strategy != "" {
		cfg.Tracker.Strategy = rank.Strategy(*strategy)
	}
	cfg.Browser.Headless = *headless
	if *screenshots {
		cfg.Output.Screenshots = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	scanTargets, err := targets.Load(*inputPath)
	if err != nil {
		log.Error("failed to load targets", "path", *inputPath, "error", err)
		os.Exit(1)
	}
	log.Info("targets loaded", "path", *inputPath, "keywords", len(scanTargets))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutdown requested, finishing current pages...")
		cancel()
	}()

	var factory tracker.SessionFactory
	if *replayGlob != "" {
		paths, err := filepath.Glob(*replayGlob)
		if err != nil || len(paths) == 0 {
			log.Error("no saved pages match replay pattern", "pattern", *replayGlob, "error", err)
			os.Exit(1)
		}
		sort.Strings(paths)
		log.Info("replaying saved pages", "pages", len(paths))
		factory = tracker.SessionFactoryFunc(func(ctx context.Context) (tracker.Session, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return snapshot.NewFileProvider(paths...), nil
		})
	} else {
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
		factory = tracker.SessionFactoryFunc(func(ctx context.Context) (tracker.Session, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return snapshot.NewPlaywrightProvider(b, log, providerOpts...), nil
		})
	}

	var opts []tracker.Option

	if cfg.Database.Enabled {
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
		opts = append(opts, tracker.WithDatabase(db))
	}

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

	summary, err := service.Run(ctx, scanTargets)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("run cancelled")
			os.Exit(130)
		}
		log.Error("run failed", "error", err)
		os.Exit(1)
	}

	log.Info("done",
		"output", summary.OutputPath,
		"keywords", summary.Keywords,
		"found", summary.Found,
		"not_found", summary.NotFound,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second),
	)
}
