package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves canned snapshots, one per page.
type fakeProvider struct {
	snapshots  []*Snapshot
	searchErr  error
	captureErr map[int]error
	nextErr    error

	searched  []string
	captured  int
	nextCalls int
}

func (f *fakeProvider) Search(_ context.Context, keyword string) error {
	f.searched = append(f.searched, keyword)
	return f.searchErr
}

func (f *fakeProvider) Capture(_ context.Context, page int) (*Snapshot, error) {
	if err, ok := f.captureErr[page]; ok {
		return nil, err
	}
	if page > len(f.snapshots) {
		return nil, errors.New("no snapshot prepared for page")
	}
	f.captured++
	return f.snapshots[page-1], nil
}

func (f *fakeProvider) NextPage(context.Context) error {
	f.nextCalls++
	return f.nextErr
}

func organicPage(hasNext bool, asins ...string) *Snapshot {
	snap := &Snapshot{
		ColumnKnown: true,
		ColumnRight: 1500,
		HasNextPage: hasNext,
		NextEnabled: hasNext,
	}
	for i, asin := range asins {
		snap.Items = append(snap.Items, CandidateItem{
			ASIN: asin, X: 200, Y: float64(i) * 400, Width: 400, Height: 300, Visible: true,
		})
	}
	return snap
}

func fillers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "B0FILL" + string(rune('0'+i)) + "XX"
	}
	return out
}

func TestScanKeywordFindsTarget(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []*Snapshot{
			organicPage(true, append(fillers(5), "B001")...),
		},
	}
	scanner := NewScanner(ScannerConfig{MaxPages: 3}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B001"))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "B001", rec.ASIN)
	assert.Equal(t, PlacementOrganic, rec.Placement)
	assert.Equal(t, 1, rec.Page)
	assert.Equal(t, 6, rec.PositionOnPage)
	assert.Equal(t, 6, rec.OverallRank)
	assert.Equal(t, 6, rec.OrganicRank)
	assert.Equal(t, StatusFound, rec.Status)
	assert.True(t, result.AllFound())
	assert.Equal(t, StateComplete, result.State)

	// All targets found on page 1: early exit, no pagination.
	assert.Zero(t, provider.nextCalls)
}

func TestScanKeywordNotFoundAcrossPages(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []*Snapshot{
			organicPage(true, fillers(10)...),
			organicPage(true, fillers(10)...),
			organicPage(true, fillers(10)...),
		},
	}
	scanner := NewScanner(ScannerConfig{MaxPages: 3}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B0MISSING"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, Offsets{Overall: 30, Organic: 30}, result.Offsets)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, "B0MISSING", rec.ASIN)
	assert.Equal(t, StatusNotFound, rec.Status)
	assert.False(t, result.AllFound())

	// Page limit reached: exactly two forward navigations.
	assert.Equal(t, 2, provider.nextCalls)
}

func TestScanKeywordStopsOnDisabledNext(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []*Snapshot{
			func() *Snapshot {
				s := organicPage(true, fillers(4)...)
				s.NextEnabled = false
				return s
			}(),
		},
	}
	scanner := NewScanner(ScannerConfig{MaxPages: 3}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B0MISSING"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pages)
	assert.Zero(t, provider.nextCalls)
}

func TestScanKeywordSnapshotTimeoutIsLocal(t *testing.T) {
	// Page 2 times out: records from page 1 survive, missing targets
	// become not_found, no error escapes.
	provider := &fakeProvider{
		snapshots: []*Snapshot{
			organicPage(true, append(fillers(3), "B001")...),
		},
		captureErr: map[int]error{2: errors.New("timeout waiting for results")},
	}
	scanner := NewScanner(ScannerConfig{MaxPages: 3}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B001", "B002"))
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, StatusFound, result.Records[0].Status)
	assert.Equal(t, "B001", result.Records[0].ASIN)
	assert.Equal(t, StatusNotFound, result.Records[1].Status)
	assert.Equal(t, "B002", result.Records[1].ASIN)
	assert.Equal(t, StateComplete, result.State)
}

func TestScanKeywordSearchFailure(t *testing.T) {
	provider := &fakeProvider{searchErr: errors.New("search box not found")}
	scanner := NewScanner(ScannerConfig{}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B001"))
	require.NoError(t, err)

	assert.Zero(t, result.Pages)
	require.Len(t, result.Records, 1)
	assert.Equal(t, StatusNotFound, result.Records[0].Status)
}

func TestScanKeywordEmptyTargets(t *testing.T) {
	scanner := NewScanner(ScannerConfig{}, nil)

	_, err := scanner.ScanKeyword(context.Background(), &fakeProvider{}, Target{Keyword: "widget"})
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestScanKeywordContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{captureErr: map[int]error{1: context.Canceled}}
	scanner := NewScanner(ScannerConfig{}, nil)

	_, err := scanner.ScanKeyword(ctx, provider, NewTarget("widget", "B001"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanKeywordNotFoundEmittedOnce(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []*Snapshot{
			organicPage(false, fillers(5)...),
		},
	}
	scanner := NewScanner(ScannerConfig{MaxPages: 3}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B0MISSING"))
	require.NoError(t, err)

	count := 0
	for _, rec := range result.Records {
		if rec.ASIN == "B0MISSING" && rec.Status == StatusNotFound {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestScanKeywordSponsoredSkipsOrganicCounter(t *testing.T) {
	snap := organicPage(false, fillers(2)...)
	snap.Items = append(snap.Items, CandidateItem{
		ASIN: "B0TARGET1", X: 200, Y: 5000, Width: 400, Height: 300, Visible: true,
		ComponentType: "sp-sponsored-result",
	})
	provider := &fakeProvider{snapshots: []*Snapshot{snap}}
	scanner := NewScanner(ScannerConfig{}, nil)

	result, err := scanner.ScanKeyword(context.Background(), provider, NewTarget("widget", "B0TARGET1"))
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, PlacementSponsored, rec.Placement)
	assert.Equal(t, 3, rec.OverallRank)
	assert.Zero(t, rec.OrganicRank)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, 1, result.Diagnostics[0].Sponsored)
	assert.Equal(t, 2, result.Diagnostics[0].Organic)
}
