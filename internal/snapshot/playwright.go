// Package snapshot turns rendered or static search result pages into
// immutable rank.Snapshot values.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/amazon-rank-tracker/internal/browser"
	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

const (
	homeURL = "https://www.amazon.co.jp/"

	searchBoxSelector  = "#twotabsearchtextbox"
	resultsSelector    = ".s-main-slot div[data-asin], .s-main-slot li[data-asin]"
	mainSlotSelector   = ".s-main-slot"
	nextButtonSelector = "a.s-pagination-next"
	badgeSelector      = "span[aria-label], .s-label-popover"

	// Text nodes carrying the sponsored section wording, either locale.
	labelXPath = `xpath=//*[contains(text(), 'スポンサー') or contains(text(), 'Sponsored')]`

	resultsTimeoutMs = 10000
)

// ancestorTextsJS collects the trimmed text of up to five wrapping
// containers, innermost first.
const ancestorTextsJS = `el => {
	const texts = [];
	let p = el.parentElement;
	for (let i = 0; i < 5 && p; i++) {
		texts.push((p.innerText || '').trim().slice(0, 300));
		p = p.parentElement;
	}
	return texts;
}`

// PlaywrightProvider drives one live amazon.co.jp session. It satisfies
// rank.SnapshotProvider; one provider serves one keyword scan at a time.
type PlaywrightProvider struct {
	browser *browser.Browser
	page    playwright.Page
	logger  *slog.Logger

	keyword     string
	screenshots bool
	shotDir     string
}

type ProviderOption func(*PlaywrightProvider)

// WithScreenshots enables a full-page screenshot per captured page,
// written to dir. Screenshots are taken after the snapshot is read, so
// the scroll they trigger cannot invalidate label coordinates.
func WithScreenshots(dir string) ProviderOption {
	return func(p *PlaywrightProvider) {
		p.screenshots = true
		p.shotDir = dir
	}
}

func NewPlaywrightProvider(b *browser.Browser, logger *slog.Logger, opts ...ProviderOption) *PlaywrightProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PlaywrightProvider{
		browser: b,
		logger:  logger.With("component", "snapshot_provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Search opens a fresh page, navigates to the storefront and submits
// the keyword through the search box.
func (p *PlaywrightProvider) Search(ctx context.Context, keyword string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.page != nil {
		p.page.Close()
		p.page = nil
	}

	page, err := p.browser.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	p.page = page
	p.keyword = keyword

	if err := p.browser.NavigateWithRetry(page, homeURL, 3); err != nil {
		return fmt.Errorf("failed to navigate to storefront: %w", err)
	}
	p.browser.HumanizeInteraction(page)

	box := page.Locator(searchBoxSelector)
	if err := box.Fill(keyword); err != nil {
		return fmt.Errorf("failed to fill search box: %w", err)
	}
	if err := box.Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}

	return nil
}

// Capture reads the current result page into a snapshot. Label hints
// are read first, before the optional screenshot scrolls the page.
func (p *PlaywrightProvider) Capture(ctx context.Context, pageNum int) (*rank.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.page == nil {
		return nil, fmt.Errorf("capture before search")
	}

	if _, err := p.page.WaitForSelector(resultsSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(resultsTimeoutMs),
	}); err != nil {
		return nil, fmt.Errorf("failed to wait for results on page %d: %w", pageNum, err)
	}

	snap := &rank.Snapshot{}

	snap.Labels = p.captureLabels()
	p.logger.Info("cached sponsored labels", "page", pageNum, "count", len(snap.Labels))

	p.captureColumnBounds(snap)

	items, err := p.captureItems()
	if err != nil {
		return nil, err
	}
	snap.Items = items

	p.captureNextState(snap)

	if p.screenshots {
		p.takeScreenshot(pageNum)
	}

	return snap, nil
}

// NextPage clicks the pagination control and waits for the new results.
func (p *PlaywrightProvider) NextPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.page == nil {
		return fmt.Errorf("next page before search")
	}

	next := p.page.Locator(nextButtonSelector).First()
	if err := next.Click(); err != nil {
		return fmt.Errorf("failed to click next page: %w", err)
	}
	time.Sleep(2 * time.Second)

	return nil
}

func (p *PlaywrightProvider) Close() error {
	if p.page != nil {
		err := p.page.Close()
		p.page = nil
		return err
	}
	return nil
}

// captureLabels records (y, text) for every short sponsored marker on
// the page. Long text blocks only mention the word and are skipped.
func (p *PlaywrightProvider) captureLabels() []rank.LabelHint {
	var hints []rank.LabelHint

	labels, err := p.page.Locator(labelXPath).All()
	if err != nil {
		p.logger.Warn("failed to cache sponsored labels", "error", err)
		return nil
	}

	for _, label := range labels {
		text, err := label.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || len(text) >= 50 {
			continue
		}
		box, err := label.BoundingBox()
		if err != nil || box == nil {
			continue
		}
		hints = append(hints, rank.LabelHint{Y: box.Y, Text: text})
	}

	return hints
}

func (p *PlaywrightProvider) captureColumnBounds(snap *rank.Snapshot) {
	slot := p.page.Locator(mainSlotSelector).First()
	box, err := slot.BoundingBox()
	if err != nil || box == nil {
		p.logger.Warn("failed to detect main slot, using fallback bounds", "error", err)
		return
	}
	snap.ColumnLeft = box.X
	snap.ColumnRight = box.X + box.Width
	snap.ColumnKnown = true
	p.logger.Debug("main slot detected", "x", box.X, "width", box.Width)
}

func (p *PlaywrightProvider) captureItems() ([]rank.CandidateItem, error) {
	elements, err := p.page.Locator(resultsSelector).All()
	if err != nil {
		return nil, fmt.Errorf("failed to find result elements: %w", err)
	}

	items := make([]rank.CandidateItem, 0, len(elements))
	for _, el := range elements {
		asin, err := el.GetAttribute("data-asin")
		if err != nil {
			continue
		}

		item := rank.CandidateItem{ASIN: asin}

		if visible, err := el.IsVisible(); err == nil {
			item.Visible = visible
		}
		if box, err := el.BoundingBox(); err == nil && box != nil {
			item.X = box.X
			item.Y = box.Y
			item.Width = box.Width
			item.Height = box.Height
		} else {
			item.Visible = false
		}

		if ct, err := el.GetAttribute("data-component-type"); err == nil {
			item.ComponentType = ct
		}

		if badges, err := el.Locator(badgeSelector).All(); err == nil {
			for _, badge := range badges {
				label, err := badge.GetAttribute("aria-label")
				if err != nil || label == "" {
					label, _ = badge.TextContent()
				}
				if label = strings.TrimSpace(label); label != "" {
					item.BadgeLabels = append(item.BadgeLabels, label)
				}
			}
		}

		if texts, err := el.Evaluate(ancestorTextsJS, nil); err == nil {
			if list, ok := texts.([]interface{}); ok {
				for _, entry := range list {
					if s, ok := entry.(string); ok {
						item.AncestorTexts = append(item.AncestorTexts, s)
					}
				}
			}
		}

		items = append(items, item)
	}

	return items, nil
}

func (p *PlaywrightProvider) captureNextState(snap *rank.Snapshot) {
	next := p.page.Locator(nextButtonSelector).First()
	count, err := next.Count()
	if err != nil || count == 0 {
		return
	}
	snap.HasNextPage = true
	snap.NextEnabled = true

	if class, err := next.GetAttribute("class"); err == nil &&
		strings.Contains(class, "s-pagination-disabled") {
		snap.NextEnabled = false
	}
	if disabled, err := next.GetAttribute("aria-disabled"); err == nil && disabled == "true" {
		snap.NextEnabled = false
	}
}

func (p *PlaywrightProvider) takeScreenshot(pageNum int) {
	if err := os.MkdirAll(p.shotDir, 0o755); err != nil {
		p.logger.Warn("failed to create screenshot dir", "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%d.png",
		time.Now().Format("20060102_150405"), p.keyword, pageNum)
	path := filepath.Join(p.shotDir, name)

	if _, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		p.logger.Warn("failed to take screenshot", "error", err)
		return
	}
	p.logger.Info("full-page screenshot saved", "path", path)
}
