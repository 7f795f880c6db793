package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

const serpFixture = `<!DOCTYPE html>
<html>
<body>
<div class="s-main-slot">
	<div data-asin="B0SPONSOR1" data-component-type="sp-sponsored-result">
		<span aria-label="スポンサー広告">スポンサー</span>
		<h2>広告の商品</h2>
	</div>
	<div data-asin="B0ORGANIC1" data-component-type="s-search-result">
		<h2>通常の商品</h2>
		<span aria-label="4つ星のうち4.5">★4.5</span>
	</div>
	<div data-asin="">
		<span>decoration</span>
	</div>
	<li data-asin="B0ORGANIC2">
		<h2>別の商品</h2>
	</li>
</div>
<a class="s-pagination-next" href="/s?k=widget&page=2">次へ</a>
</body>
</html>`

func TestParseHTML(t *testing.T) {
	snap, err := ParseHTML(strings.NewReader(serpFixture))
	require.NoError(t, err)

	require.Len(t, snap.Items, 4)
	assert.Equal(t, "B0SPONSOR1", snap.Items[0].ASIN)
	assert.Equal(t, "sp-sponsored-result", snap.Items[0].ComponentType)
	assert.Contains(t, snap.Items[0].BadgeLabels, "スポンサー広告")

	assert.Equal(t, "B0ORGANIC1", snap.Items[1].ASIN)
	assert.Equal(t, "s-search-result", snap.Items[1].ComponentType)

	// Document order becomes ascending pseudo geometry.
	assert.Less(t, snap.Items[0].Y, snap.Items[1].Y)
	assert.Less(t, snap.Items[1].Y, snap.Items[3].Y)

	assert.True(t, snap.HasNextPage)
	assert.True(t, snap.NextEnabled)
	assert.False(t, snap.ColumnKnown)
}

func TestParseHTMLDisabledNext(t *testing.T) {
	html := `<div class="s-main-slot"><div data-asin="B001"></div></div>
<a class="s-pagination-next s-pagination-disabled" aria-disabled="true">次へ</a>`

	snap, err := ParseHTML(strings.NewReader(html))
	require.NoError(t, err)

	assert.True(t, snap.HasNextPage)
	assert.False(t, snap.NextEnabled)
}

func TestParseHTMLNoResults(t *testing.T) {
	snap, err := ParseHTML(strings.NewReader("<html><body><p>empty</p></body></html>"))
	require.NoError(t, err)

	assert.Empty(t, snap.Items)
	assert.False(t, snap.HasNextPage)
}

func TestParsedSnapshotClassifies(t *testing.T) {
	// End to end through the core: the sponsored card is caught by its
	// component type, the organic ones stay organic.
	snap, err := ParseHTML(strings.NewReader(serpFixture))
	require.NoError(t, err)

	filter := rank.NewFilter(rank.DefaultFilterConfig())
	items, stats := filter.Apply(snap)
	require.Len(t, items, 3)
	assert.Equal(t, 1, stats.BlankASIN)

	classifier := rank.NewClassifier(rank.StrategyProximity)
	classified := classifier.ClassifyAll(items, snap.Labels)

	assert.Equal(t, rank.PlacementSponsored, classified[0].Placement)
	assert.Equal(t, rank.PlacementOrganic, classified[1].Placement)
	assert.Equal(t, rank.PlacementOrganic, classified[2].Placement)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	page1 := filepath.Join(dir, "page1.html")
	page2 := filepath.Join(dir, "page2.html")
	require.NoError(t, os.WriteFile(page1, []byte(serpFixture), 0o644))
	require.NoError(t, os.WriteFile(page2, []byte(`<div class="s-main-slot"><div data-asin="B0LAST0001"></div></div>`), 0o644))

	provider := NewFileProvider(page1, page2)
	ctx := context.Background()

	require.NoError(t, provider.Search(ctx, "widget"))

	snap, err := provider.Capture(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 4)
	assert.True(t, snap.HasNextPage)

	require.NoError(t, provider.NextPage(ctx))

	snap, err = provider.Capture(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.False(t, snap.HasNextPage)

	require.NoError(t, provider.NextPage(ctx))
	_, err = provider.Capture(ctx, 3)
	assert.Error(t, err)
}
