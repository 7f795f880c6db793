package rank

import (
	"strings"
	"time"
)

// Placement classifies how a search result earned its slot.
type Placement string

const (
	PlacementOrganic   Placement = "organic"
	PlacementSponsored Placement = "sponsored"
)

// Status of a tracked ASIN after a keyword scan.
type Status string

const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
)

// CandidateItem is one raw element pulled from a search results page.
// Geometry is in layout pixels; providers without real geometry supply a
// stable document-order substitute.
type CandidateItem struct {
	ASIN          string
	X             float64
	Y             float64
	Width         float64
	Height        float64
	Visible       bool
	ComponentType string
	BadgeLabels   []string
	AncestorTexts []string
	ContainerText string
}

// LabelHint records where a "Sponsored" marker text sits on the page.
// Hints must be captured before any scroll or resize moves the layout.
type LabelHint struct {
	Y    float64
	Text string
}

// Snapshot is one consistent capture of a search results page. It is a
// plain value: once built it is never re-queried against the live page.
type Snapshot struct {
	Items       []CandidateItem
	Labels      []LabelHint
	ColumnLeft  float64
	ColumnRight float64
	ColumnKnown bool
	HasNextPage bool
	NextEnabled bool
}

// ClassifiedItem is a candidate with its placement verdict. Reason names
// the cascade rule that fired, for diagnostics only.
type ClassifiedItem struct {
	CandidateItem
	Placement Placement
	Reason    string
}

// RankRecord is one output row. OrganicRank is zero when the match was
// sponsored; rank fields are zero for not_found records.
type RankRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Keyword        string    `json:"keyword"`
	ASIN           string    `json:"asin"`
	Placement      Placement `json:"placement,omitempty"`
	Page           int       `json:"page,omitempty"`
	PositionOnPage int       `json:"position,omitempty"`
	OverallRank    int       `json:"rank,omitempty"`
	OrganicRank    int       `json:"organic_rank,omitempty"`
	Status         Status    `json:"status"`
}

// Target is the set of ASINs tracked for one search keyword.
type Target struct {
	Keyword string
	ASINs   map[string]struct{}
}

func NewTarget(keyword string, asins ...string) Target {
	t := Target{
		Keyword: keyword,
		ASINs:   make(map[string]struct{}, len(asins)),
	}
	for _, asin := range asins {
		if normalized := NormalizeASIN(asin); normalized != "" {
			t.ASINs[normalized] = struct{}{}
		}
	}
	return t
}

// NormalizeASIN trims and upper-cases an identifier. All comparisons in
// this package run on normalized ASINs.
func NormalizeASIN(asin string) string {
	return strings.ToUpper(strings.TrimSpace(asin))
}
