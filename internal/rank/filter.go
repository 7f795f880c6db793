package rank

import (
	"math"
	"sort"
)

// FilterConfig tunes the candidate filter. Zero values fall back to the
// defaults observed to work on amazon.co.jp result pages.
type FilterConfig struct {
	MinWidth       float64
	MinHeight      float64
	DedupTolerance float64
	FallbackRight  float64
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinWidth:       100,
		MinHeight:      50,
		DedupTolerance: 50,
		FallbackRight:  2000,
	}
}

// FilterStats counts what happened to the raw candidates of one page.
type FilterStats struct {
	Raw            int
	BlankASIN      int
	Hidden         int
	Undersized     int
	OutOfColumn    int
	Duplicates     int
	Kept           int
	DegradedBounds bool
}

type Filter struct {
	cfg FilterConfig
}

func NewFilter(cfg FilterConfig) *Filter {
	def := DefaultFilterConfig()
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = def.MinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.DedupTolerance <= 0 {
		cfg.DedupTolerance = def.DedupTolerance
	}
	if cfg.FallbackRight <= 0 {
		cfg.FallbackRight = def.FallbackRight
	}
	return &Filter{cfg: cfg}
}

// Apply selects the valid, visible result cards of one snapshot, sorts
// them into reading order and collapses nested-container doubles. Rules
// run in a fixed order so the stats attribute each drop to one cause.
func (f *Filter) Apply(snap *Snapshot) ([]CandidateItem, FilterStats) {
	stats := FilterStats{Raw: len(snap.Items)}

	left, right := snap.ColumnLeft, snap.ColumnRight
	if !snap.ColumnKnown {
		// The main results container could not be located. Use a generous
		// fallback instead of dropping everything.
		left, right = 0, f.cfg.FallbackRight
		stats.DegradedBounds = true
	}

	valid := make([]CandidateItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		item.ASIN = NormalizeASIN(item.ASIN)
		switch {
		case item.ASIN == "":
			stats.BlankASIN++
		case !item.Visible || item.Width == 0 || item.Height == 0:
			stats.Hidden++
		case item.Width < f.cfg.MinWidth || item.Height < f.cfg.MinHeight:
			stats.Undersized++
		case item.X < left || item.X > right:
			stats.OutOfColumn++
		default:
			valid = append(valid, item)
		}
	}

	// Reading order: top to bottom, same-row ties left to right.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Y != valid[j].Y {
			return valid[i].Y < valid[j].Y
		}
		return valid[i].X < valid[j].X
	})

	unique := valid[:0]
	for _, item := range valid {
		if f.isDuplicate(unique, item) {
			stats.Duplicates++
			continue
		}
		unique = append(unique, item)
	}

	stats.Kept = len(unique)
	return unique, stats
}

// isDuplicate reports whether item is a positional double of an already
// accepted card: same ASIN within tolerance on both axes. Wrapping
// elements expose the same data-asin as their inner card, so the
// first-seen (topmost) instance wins.
func (f *Filter) isDuplicate(accepted []CandidateItem, item CandidateItem) bool {
	for _, seen := range accepted {
		if seen.ASIN == item.ASIN &&
			math.Abs(seen.Y-item.Y) < f.cfg.DedupTolerance &&
			math.Abs(seen.X-item.X) < f.cfg.DedupTolerance {
			return true
		}
	}
	return false
}
