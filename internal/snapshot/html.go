package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

// Pseudo geometry for parsed documents. Static HTML has no layout, so
// items get a stable document-order position that preserves reading
// order and keeps them above the filter's size thresholds.
const (
	htmlRowHeight  = 400.0
	htmlItemWidth  = 900.0
	htmlItemHeight = 300.0
)

// ParseHTML builds a snapshot from a static search results document.
// Without rendered geometry there are no usable label coordinates, so
// no proximity hints are produced; classification of parsed documents
// rests on the component-type, badge and ancestor signals.
func ParseHTML(r io.Reader) (*rank.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	snap := &rank.Snapshot{}

	sel := doc.Find(`.s-main-slot div[data-asin], .s-main-slot li[data-asin]`)
	if sel.Length() == 0 {
		sel = doc.Find(`div[data-component-type='s-search-result']`)
	}

	index := 0
	sel.Each(func(_ int, s *goquery.Selection) {
		asin, _ := s.Attr("data-asin")
		item := rank.CandidateItem{
			ASIN:    asin,
			Y:       float64(index) * htmlRowHeight,
			Width:   htmlItemWidth,
			Height:  htmlItemHeight,
			Visible: true,
		}
		index++

		if ct, ok := s.Attr("data-component-type"); ok {
			item.ComponentType = ct
		}

		s.Find("span[aria-label], .s-label-popover").Each(func(_ int, badge *goquery.Selection) {
			label, ok := badge.Attr("aria-label")
			if !ok || label == "" {
				label = badge.Text()
			}
			if label = strings.TrimSpace(label); label != "" {
				item.BadgeLabels = append(item.BadgeLabels, label)
			}
		})

		item.ContainerText = strings.Join(strings.Fields(s.Text()), " ")

		for parent := s.Parent(); parent.Length() > 0 && len(item.AncestorTexts) < 5; parent = parent.Parent() {
			text := strings.Join(strings.Fields(parent.Text()), " ")
			if len(text) > 300 {
				text = text[:300]
			}
			item.AncestorTexts = append(item.AncestorTexts, text)
		}

		snap.Items = append(snap.Items, item)
	})

	next := doc.Find("a.s-pagination-next").First()
	if next.Length() > 0 {
		snap.HasNextPage = true
		snap.NextEnabled = true
		if class, ok := next.Attr("class"); ok && strings.Contains(class, "s-pagination-disabled") {
			snap.NextEnabled = false
		}
		if disabled, ok := next.Attr("aria-disabled"); ok && disabled == "true" {
			snap.NextEnabled = false
		}
	}

	return snap, nil
}

// FileProvider replays saved result pages from disk, one file per page.
// It backs offline runs and tests; Search resets to the first page.
type FileProvider struct {
	paths []string
	pos   int
}

func NewFileProvider(paths ...string) *FileProvider {
	return &FileProvider{paths: paths}
}

func (f *FileProvider) Search(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.pos = 0
	return nil
}

func (f *FileProvider) Capture(ctx context.Context, page int) (*rank.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pos >= len(f.paths) {
		return nil, fmt.Errorf("no saved page %d", page)
	}

	file, err := os.Open(f.paths[f.pos])
	if err != nil {
		return nil, fmt.Errorf("failed to open saved page: %w", err)
	}
	defer file.Close()

	snap, err := ParseHTML(file)
	if err != nil {
		return nil, err
	}
	// A following file acts as the next-page affordance.
	snap.HasNextPage = f.pos+1 < len(f.paths)
	snap.NextEnabled = snap.HasNextPage
	return snap, nil
}

func (f *FileProvider) NextPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.pos++
	return nil
}

func (f *FileProvider) Close() error { return nil }
