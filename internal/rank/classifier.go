package rank

import (
	"math"
	"strings"
)

// Strategy selects the fallback rule used when neither the component
// type nor an embedded badge marks an item as sponsored. The two
// strategies can disagree on borderline items; callers pick one.
type Strategy string

const (
	// StrategyProximity classifies by vertical distance to a cached
	// "Sponsored" label. Catches section-level headings that have no
	// per-item badge.
	StrategyProximity Strategy = "proximity"
	// StrategyAncestor walks a bounded number of ancestor containers
	// looking for a sponsored marker in their text.
	StrategyAncestor Strategy = "ancestor"
)

const (
	// ProximityThreshold is the maximum |Δy| in pixels between an item
	// and a sponsored label for the proximity rule to fire.
	ProximityThreshold = 200.0

	// maxAncestorDepth bounds the ancestor walk.
	maxAncestorDepth = 5

	// maxLabelLen rejects long text blocks that merely mention the
	// marker word; real labels are a single short phrase.
	maxLabelLen = 50
)

// Sponsored marker wording for the two supported locales.
var sponsoredMarkers = []string{"sponsored", "スポンサー"}

func containsSponsoredMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range sponsoredMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// rule is one step of the classification cascade. Rules are pure
// predicates evaluated in order; the first match wins.
type rule struct {
	name  string
	match func(item CandidateItem, hints []LabelHint) bool
}

type Classifier struct {
	strategy Strategy
	rules    []rule
}

func NewClassifier(strategy Strategy) *Classifier {
	if strategy == "" {
		strategy = StrategyProximity
	}
	c := &Classifier{strategy: strategy}
	c.rules = []rule{
		{name: "component-type", match: matchComponentType},
		{name: "badge", match: matchBadge},
	}
	switch strategy {
	case StrategyAncestor:
		c.rules = append(c.rules, rule{name: "ancestor", match: matchAncestor})
	default:
		c.rules = append(c.rules, rule{name: "proximity", match: matchProximity})
	}
	return c
}

func (c *Classifier) Strategy() Strategy {
	return c.strategy
}

// Classify runs the cascade for one item against the page's label
// hints. Items matching no rule are organic.
func (c *Classifier) Classify(item CandidateItem, hints []LabelHint) ClassifiedItem {
	for _, r := range c.rules {
		if r.match(item, hints) {
			return ClassifiedItem{
				CandidateItem: item,
				Placement:     PlacementSponsored,
				Reason:        r.name,
			}
		}
	}
	return ClassifiedItem{CandidateItem: item, Placement: PlacementOrganic}
}

// ClassifyAll classifies a page's items in order.
func (c *Classifier) ClassifyAll(items []CandidateItem, hints []LabelHint) []ClassifiedItem {
	classified := make([]ClassifiedItem, 0, len(items))
	for _, item := range items {
		classified = append(classified, c.Classify(item, hints))
	}
	return classified
}

// matchComponentType checks the platform-provided component tag. The
// most reliable signal when present.
func matchComponentType(item CandidateItem, _ []LabelHint) bool {
	ct := strings.ToLower(item.ComponentType)
	return strings.Contains(ct, "sp-sponsored") || strings.Contains(ct, "sponsored")
}

// matchBadge scans badge and accessible-label texts nested in the card,
// plus the card's own text.
func matchBadge(item CandidateItem, _ []LabelHint) bool {
	for _, label := range item.BadgeLabels {
		if containsSponsoredMarker(label) {
			return true
		}
	}
	return containsSponsoredMarker(item.ContainerText)
}

// matchProximity fires when any cached label sits within the threshold
// of the item's y position. Some sponsored sections are marked only by
// a section heading, so this is the only available signal for them.
func matchProximity(item CandidateItem, hints []LabelHint) bool {
	for _, hint := range hints {
		if len(hint.Text) >= maxLabelLen {
			continue
		}
		if math.Abs(hint.Y-item.Y) < ProximityThreshold {
			return true
		}
	}
	return false
}

// matchAncestor checks the texts of up to maxAncestorDepth wrapping
// containers for a sponsored marker.
func matchAncestor(item CandidateItem, _ []LabelHint) bool {
	for depth, text := range item.AncestorTexts {
		if depth >= maxAncestorDepth {
			break
		}
		if containsSponsoredMarker(text) {
			return true
		}
	}
	return false
}
