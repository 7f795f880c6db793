// Package tracker orchestrates a tracking run: a worker pool scanning
// independent keywords, aggregation of their records, and delivery to
// the configured sinks (CSV, Postgres, Redis).
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/amazon-rank-tracker/internal/database"
	"github.com/maltedev/amazon-rank-tracker/internal/rank"
	"github.com/maltedev/amazon-rank-tracker/internal/ratelimit"
	"github.com/maltedev/amazon-rank-tracker/internal/report"
	"github.com/maltedev/amazon-rank-tracker/internal/stream"
)

var (
	// ErrNoTargets aborts a run before any scanning starts.
	ErrNoTargets = errors.New("no targets to scan")
	// ErrNoSnapshots means not a single page could be captured for any
	// keyword: the browsing collaborator is unavailable.
	ErrNoSnapshots = errors.New("failed to obtain any page snapshot")
)

// Session is one keyword's worth of browsing resource. Sessions are
// acquired per keyword and closed when its scan ends; keywords share
// nothing else, so no further coordination is needed.
type Session interface {
	rank.SnapshotProvider
	Close() error
}

// SessionFactory hands out scan sessions, typically one browser page
// each.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to the SessionFactory interface.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Config struct {
	Concurrency  int
	Scanner      rank.ScannerConfig
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

type Service struct {
	factory     SessionFactory
	scanner     *rank.Scanner
	writer      *report.Writer
	db          *database.DB
	publisher   *stream.Publisher
	limiter     *ratelimit.AdaptiveRateLimiter
	logger      *slog.Logger
	concurrency int
}

type Option func(*Service)

func WithDatabase(db *database.DB) Option {
	return func(s *Service) { s.db = db }
}

func WithPublisher(p *stream.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(factory SessionFactory, writer *report.Writer, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.RateLimitMin <= 0 {
		cfg.RateLimitMin = 2 * time.Second
	}
	if cfg.RateLimitMax < cfg.RateLimitMin {
		cfg.RateLimitMax = cfg.RateLimitMin
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		factory:     factory,
		scanner:     rank.NewScanner(cfg.Scanner, logger),
		writer:      writer,
		limiter:     ratelimit.NewAdaptiveRateLimiter(cfg.RateLimitMin, cfg.RateLimitMax),
		logger:      logger.With("component", "tracker"),
		concurrency: cfg.Concurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunSummary describes one finished run.
type RunSummary struct {
	RunID      uuid.UUID
	OutputPath string
	Keywords   int
	Records    int
	Found      int
	NotFound   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run scans every target keyword and delivers the aggregated records.
// Keyword scans are independent and run concurrently; a failure in one
// never aborts the others. Run fails outright only when there is
// nothing to scan or no snapshot could be captured at all.
func (s *Service) Run(ctx context.Context, targets []rank.Target) (*RunSummary, error) {
	return s.RunWithID(ctx, uuid.New(), targets)
}

// RunWithID is Run under a caller-chosen run ID, so a queued job and
// the run it produces share one identifier.
func (s *Service) RunWithID(ctx context.Context, runID uuid.UUID, targets []rank.Target) (*RunSummary, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	startedAt := time.Now()
	logger := s.logger.With("run_id", runID.String())
	logger.Info("run started", "keywords", len(targets), "concurrency", s.concurrency)

	if s.db != nil {
		if err := s.db.InsertRun(ctx, &database.Run{
			ID: runID, Keywords: len(targets), StartedAt: startedAt,
		}); err != nil {
			return nil, fmt.Errorf("failed to register run: %w", err)
		}
	}

	var (
		mu         sync.Mutex
		records    []rank.RankRecord
		totalPages int
	)

	jobs := make(chan rank.Target)
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				result := s.scanOne(ctx, target, logger)
				if result == nil {
					continue
				}
				mu.Lock()
				records = append(records, result.Records...)
				totalPages += result.Pages
				mu.Unlock()
			}
		}()
	}

	for _, target := range targets {
		select {
		case <-ctx.Done():
		case jobs <- target:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.finishRun(context.WithoutCancel(ctx), runID, database.RunStatusFailed, 0, "", err.Error())
		return nil, err
	}
	if totalPages == 0 {
		s.finishRun(context.WithoutCancel(ctx), runID, database.RunStatusFailed, 0, "", ErrNoSnapshots.Error())
		return nil, ErrNoSnapshots
	}

	path, err := s.writer.WriteRun(records, startedAt)
	if err != nil {
		s.finishRun(ctx, runID, database.RunStatusFailed, len(records), "", err.Error())
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	if s.db != nil {
		if err := s.db.InsertRecords(ctx, runID, records); err != nil {
			logger.Error("failed to persist records", "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRecords(ctx, runID, records); err != nil {
			logger.Error("failed to publish records", "error", err)
		}
	}
	s.finishRun(ctx, runID, database.RunStatusCompleted, len(records), path, "")

	summary := &RunSummary{
		RunID:      runID,
		OutputPath: path,
		Keywords:   len(targets),
		Records:    len(records),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	for _, rec := range records {
		if rec.Status == rank.StatusFound {
			summary.Found++
		} else {
			summary.NotFound++
		}
	}

	logger.Info("run completed",
		"records", summary.Records,
		"found", summary.Found,
		"not_found", summary.NotFound,
		"output", path,
	)
	return summary, nil
}

// scanOne acquires a session, scans a keyword and releases the session.
// All failures are local to the keyword.
func (s *Service) scanOne(ctx context.Context, target rank.Target, logger *slog.Logger) *rank.ScanResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil
	}

	session, err := s.factory.NewSession(ctx)
	if err != nil {
		s.limiter.RecordError()
		logger.Error("failed to acquire session", "keyword", target.Keyword, "error", err)
		return nil
	}
	defer session.Close()

	result, err := s.scanner.ScanKeyword(ctx, session, target)
	if err != nil {
		s.limiter.RecordError()
		logger.Error("keyword scan failed", "keyword", target.Keyword, "error", err)
		return nil
	}

	s.limiter.RecordSuccess()
	return result
}

func (s *Service) finishRun(ctx context.Context, runID uuid.UUID, status database.RunStatus, records int, path, detail string) {
	if s.db == nil {
		return
	}
	if err := s.db.FinishRun(ctx, runID, status, records, path, detail); err != nil {
		s.logger.Error("failed to finish run", "run_id", runID.String(), "error", err)
	}
}
