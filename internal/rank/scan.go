package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	// ErrNoTargets means a scan was requested with an empty ASIN set.
	ErrNoTargets = errors.New("no target ASINs for keyword")
)

// State of a keyword scan. Exposed mainly for diagnostics and tests.
type State string

const (
	StateSearching    State = "SEARCHING"
	StateScanningPage State = "SCANNING_PAGE"
	StateNextPage     State = "NEXT_PAGE"
	StateDone         State = "DONE"
	StateComplete     State = "COMPLETE"
)

// SnapshotProvider is the external collaborator that renders or parses
// search result pages. Capture must return an immutable snapshot with
// label hints read before any scroll-triggered reflow. A Capture error
// is treated as end of pagination, not as a scan failure.
type SnapshotProvider interface {
	Search(ctx context.Context, keyword string) error
	Capture(ctx context.Context, page int) (*Snapshot, error)
	NextPage(ctx context.Context) error
}

// ScannerConfig tunes one scanner. Zero values use the defaults.
type ScannerConfig struct {
	MaxPages int
	Strategy Strategy
	Filter   FilterConfig
}

// PageDiagnostics summarizes one scanned page for observability.
type PageDiagnostics struct {
	Page      int
	Labels    int
	Filter    FilterStats
	Organic   int
	Sponsored int
}

// ScanResult is the outcome of one keyword scan.
type ScanResult struct {
	Keyword     string
	Records     []RankRecord
	Pages       int
	Offsets     Offsets
	State       State
	Diagnostics []PageDiagnostics
}

// AllFound reports whether every target was matched before the scan
// ended.
func (r *ScanResult) AllFound() bool {
	for _, rec := range r.Records {
		if rec.Status == StatusNotFound {
			return false
		}
	}
	return true
}

// Scanner drives the scan of one keyword across paginated result
// snapshots. It holds no per-scan state, so one scanner may serve many
// keywords, including concurrently.
type Scanner struct {
	cfg        ScannerConfig
	filter     *Filter
	classifier *Classifier
	acc        *Accumulator
	logger     *slog.Logger
}

func NewScanner(cfg ScannerConfig, logger *slog.Logger) *Scanner {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		cfg:        cfg,
		filter:     NewFilter(cfg.Filter),
		classifier: NewClassifier(cfg.Strategy),
		acc:        NewAccumulator(),
		logger:     logger.With("component", "scanner"),
	}
}

// ScanKeyword walks result pages for one keyword until every target is
// found, the page limit is reached, or pagination ends. Snapshot
// failures end the scan for this keyword only; missing targets are
// emitted as not_found records either way. The returned error is
// non-nil only for empty targets or context cancellation.
func (s *Scanner) ScanKeyword(ctx context.Context, provider SnapshotProvider, target Target) (*ScanResult, error) {
	if len(target.ASINs) == 0 {
		return nil, fmt.Errorf("keyword %q: %w", target.Keyword, ErrNoTargets)
	}

	logger := s.logger.With("keyword", target.Keyword)
	result := &ScanResult{Keyword: target.Keyword, State: StateSearching}
	found := make(map[string]struct{}, len(target.ASINs))
	var offsets Offsets

	if err := provider.Search(ctx, target.Keyword); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("search failed, keyword skipped", "error", err)
		s.finish(result, target, found)
		return result, nil
	}

	for page := 1; page <= s.cfg.MaxPages; page++ {
		result.State = StateScanningPage

		snap, err := provider.Capture(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Treat like a missing next-page affordance: stop this
			// keyword, keep the records collected so far.
			logger.Warn("snapshot failed, stopping pagination", "page", page, "error", err)
			break
		}
		result.Pages++

		items, stats := s.filter.Apply(snap)
		if stats.DegradedBounds {
			logger.Warn("main column not located, using fallback bounds", "page", page)
		}

		classified := s.classifier.ClassifyAll(items, snap.Labels)

		outcome, next := s.acc.RankPage(target.Keyword, page, classified, target.ASINs, found, offsets)
		offsets = next
		result.Offsets = offsets
		result.Records = append(result.Records, outcome.Records...)
		result.Diagnostics = append(result.Diagnostics, PageDiagnostics{
			Page:      page,
			Labels:    len(snap.Labels),
			Filter:    stats,
			Organic:   outcome.Organic,
			Sponsored: outcome.Sponsored,
		})

		logger.Info("page scanned",
			"page", page,
			"items", len(items),
			"sponsored", outcome.Sponsored,
			"matches", len(outcome.Records),
		)

		if len(found) == len(target.ASINs) {
			logger.Info("all targets found", "pages", page)
			break
		}
		if !snap.HasNextPage || !snap.NextEnabled || page == s.cfg.MaxPages {
			break
		}

		result.State = StateNextPage
		if err := provider.NextPage(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("next page navigation failed", "page", page, "error", err)
			break
		}
	}

	s.finish(result, target, found)
	return result, nil
}

// finish transitions through DONE: every still-missing target gets
// exactly one not_found record.
func (s *Scanner) finish(result *ScanResult, target Target, found map[string]struct{}) {
	result.State = StateDone

	missing := make([]string, 0, len(target.ASINs))
	for asin := range target.ASINs {
		if _, ok := found[asin]; !ok {
			missing = append(missing, asin)
		}
	}
	sort.Strings(missing)
	for _, asin := range missing {
		result.Records = append(result.Records, s.acc.NotFoundRecord(target.Keyword, asin))
	}

	result.State = StateComplete
}
