package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func organicRun(n int, startY float64) []ClassifiedItem {
	items := make([]ClassifiedItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, ClassifiedItem{
			CandidateItem: CandidateItem{ASIN: "B9" + string(rune('A'+i)) + "FILL", Y: startY + float64(i)*400},
			Placement:     PlacementOrganic,
		})
	}
	return items
}

func TestRankPageOrganicMatch(t *testing.T) {
	// Five organic items followed by the target, itself organic: rank 6
	// on both counters.
	acc := &Accumulator{now: fixedClock()}

	items := append(organicRun(5, 0), ClassifiedItem{
		CandidateItem: CandidateItem{ASIN: "B001", Y: 2000},
		Placement:     PlacementOrganic,
	})
	targets := map[string]struct{}{"B001": {}, "B002": {}}
	found := map[string]struct{}{}

	outcome, next := acc.RankPage("widget", 1, items, targets, found, Offsets{})

	require.Len(t, outcome.Records, 1)
	rec := outcome.Records[0]
	assert.Equal(t, "widget", rec.Keyword)
	assert.Equal(t, "B001", rec.ASIN)
	assert.Equal(t, PlacementOrganic, rec.Placement)
	assert.Equal(t, 1, rec.Page)
	assert.Equal(t, 6, rec.PositionOnPage)
	assert.Equal(t, 6, rec.OverallRank)
	assert.Equal(t, 6, rec.OrganicRank)
	assert.Equal(t, StatusFound, rec.Status)

	assert.Equal(t, Offsets{Overall: 6, Organic: 6}, next)
	assert.Contains(t, found, "B001")
	assert.NotContains(t, found, "B002")
}

func TestRankPageSponsoredMatch(t *testing.T) {
	// Sponsored match at slot 2: overall rank 2, no organic rank.
	acc := &Accumulator{now: fixedClock()}

	items := []ClassifiedItem{
		{CandidateItem: CandidateItem{ASIN: "B0AAAAAA1"}, Placement: PlacementOrganic},
		{CandidateItem: CandidateItem{ASIN: "B0TARGET1"}, Placement: PlacementSponsored, Reason: "component-type"},
		{CandidateItem: CandidateItem{ASIN: "B0AAAAAA2"}, Placement: PlacementOrganic},
	}
	targets := map[string]struct{}{"B0TARGET1": {}}
	found := map[string]struct{}{}

	outcome, next := acc.RankPage("widget", 1, items, targets, found, Offsets{})

	require.Len(t, outcome.Records, 1)
	rec := outcome.Records[0]
	assert.Equal(t, PlacementSponsored, rec.Placement)
	assert.Equal(t, 2, rec.OverallRank)
	assert.Zero(t, rec.OrganicRank)

	assert.Equal(t, 1, outcome.Sponsored)
	assert.Equal(t, 2, outcome.Organic)
	assert.Equal(t, Offsets{Overall: 3, Organic: 2}, next)
}

func TestRankPageCarriesOffsets(t *testing.T) {
	acc := &Accumulator{now: fixedClock()}

	targets := map[string]struct{}{"B0TARGET1": {}}
	found := map[string]struct{}{}

	// Page 1: ten organic items, no match.
	_, off := acc.RankPage("widget", 1, organicRun(10, 0), targets, found, Offsets{})
	assert.Equal(t, Offsets{Overall: 10, Organic: 10}, off)

	// Page 2: one sponsored slot, then the target organic at slot 2.
	items := []ClassifiedItem{
		{CandidateItem: CandidateItem{ASIN: "B0ADADAD1"}, Placement: PlacementSponsored},
		{CandidateItem: CandidateItem{ASIN: "B0TARGET1"}, Placement: PlacementOrganic},
	}
	outcome, off := acc.RankPage("widget", 2, items, targets, found, off)

	require.Len(t, outcome.Records, 1)
	rec := outcome.Records[0]
	assert.Equal(t, 2, rec.Page)
	assert.Equal(t, 2, rec.PositionOnPage)
	assert.Equal(t, 12, rec.OverallRank)
	assert.Equal(t, 11, rec.OrganicRank)
	assert.Equal(t, Offsets{Overall: 12, Organic: 11}, off)
}

func TestRankPageFirstMatchWins(t *testing.T) {
	acc := &Accumulator{now: fixedClock()}

	targets := map[string]struct{}{"B0TARGET1": {}}
	found := map[string]struct{}{}

	items := []ClassifiedItem{
		{CandidateItem: CandidateItem{ASIN: "B0TARGET1"}, Placement: PlacementSponsored},
		{CandidateItem: CandidateItem{ASIN: "B0TARGET1", Y: 3000}, Placement: PlacementOrganic},
	}

	outcome, _ := acc.RankPage("widget", 1, items, targets, found, Offsets{})
	require.Len(t, outcome.Records, 1)
	assert.Equal(t, 1, outcome.Records[0].OverallRank)

	// A later page sighting does not produce a second record either.
	outcome, _ = acc.RankPage("widget", 2, items, targets, found, Offsets{Overall: 2, Organic: 1})
	assert.Empty(t, outcome.Records)
}

func TestRankMonotonicAcrossPages(t *testing.T) {
	acc := &Accumulator{now: fixedClock()}

	targets := map[string]struct{}{
		"B0TARGET1": {}, "B0TARGET2": {}, "B0TARGET3": {},
	}
	found := map[string]struct{}{}

	pages := [][]ClassifiedItem{
		append(organicRun(4, 0), ClassifiedItem{
			CandidateItem: CandidateItem{ASIN: "B0TARGET1"}, Placement: PlacementOrganic,
		}),
		append(organicRun(7, 0), ClassifiedItem{
			CandidateItem: CandidateItem{ASIN: "B0TARGET2"}, Placement: PlacementSponsored,
		}),
		append(organicRun(2, 0), ClassifiedItem{
			CandidateItem: CandidateItem{ASIN: "B0TARGET3"}, Placement: PlacementOrganic,
		}),
	}

	var off Offsets
	var overall, organic []int
	for i, items := range pages {
		outcome, next := acc.RankPage("widget", i+1, items, targets, found, off)
		off = next
		for _, rec := range outcome.Records {
			overall = append(overall, rec.OverallRank)
			if rec.OrganicRank > 0 {
				organic = append(organic, rec.OrganicRank)
			}
		}
	}

	require.Len(t, overall, 3)
	assert.IsIncreasing(t, overall)
	assert.IsIncreasing(t, organic)
}

func TestNotFoundRecord(t *testing.T) {
	acc := &Accumulator{now: fixedClock()}

	rec := acc.NotFoundRecord("widget", "B0MISSING")

	assert.Equal(t, StatusNotFound, rec.Status)
	assert.Equal(t, "widget", rec.Keyword)
	assert.Equal(t, "B0MISSING", rec.ASIN)
	assert.Zero(t, rec.OverallRank)
	assert.Zero(t, rec.Page)
	assert.Empty(t, rec.Placement)
}
