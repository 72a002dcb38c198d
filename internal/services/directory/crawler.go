package directory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
)

// listingEntrySelectors locates provider name anchors on a listing page.
var listingEntrySelectors = SelectorChain{
	"a.prov-name",
	"a.provider-name",
	"[data-testid='provider-name'] a",
	".provider-card a[href*='/doctor/']",
}

const scrollWheelDelta = 2500

// CrawlSummary reports how a directory crawl went.
type CrawlSummary struct {
	PagesRequested int           `json:"pages_requested"`
	PagesSucceeded int           `json:"pages_succeeded"`
	RawEntries     int           `json:"raw_entries"`
	UniqueEntries  int           `json:"unique_entries"`
	Duration       time.Duration `json:"duration"`
}

// Crawler fetches a paginated directory listing through independent browser
// tabs and produces a deduplicated candidate list.
type Crawler struct {
	tabs   browser.TabOpener
	cfg    config.CrawlConfig
	logger *zap.Logger

	// onProgress, if set, is invoked after each page completes with
	// (pagesDone, pagesTotal).
	onProgress func(int, int)
}

// NewCrawler creates a directory crawler over the given tab opener.
func NewCrawler(tabs browser.TabOpener, cfg config.CrawlConfig, logger *zap.Logger) *Crawler {
	return &Crawler{
		tabs:   tabs,
		cfg:    cfg,
		logger: logger,
	}
}

// SetProgressCallback sets a callback for per-page progress updates.
func (c *Crawler) SetProgressCallback(fn func(done, total int)) {
	c.onProgress = fn
}

// Crawl fetches pages 1..MaxPages of the listing concurrently and merges the
// results. Pagination boundaries on the source are unreliable, a page can
// return zero rows mid-sequence without meaning end-of-data, so all pages
// are fetched unconditionally and failures are collected, not propagated.
// Entries are deduplicated by canonical profile URL: the value is
// last-writer-wins, the position is first-seen, so crawl order is stable for
// downstream matching.
func (c *Crawler) Crawl(ctx context.Context, listingURL string) ([]domain.ListingEntry, CrawlSummary) {
	start := time.Now()
	total := c.cfg.MaxPages

	pageResults := make([][]domain.ListingEntry, total)
	pageErrs := make([]error, total)

	var wg sync.WaitGroup
	var doneMu sync.Mutex
	done := 0

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			pageURL := pageAddress(listingURL, idx+1)
			entries, err := c.crawlPage(ctx, pageURL, idx+1)
			pageResults[idx] = entries
			pageErrs[idx] = err

			doneMu.Lock()
			done++
			progress := done
			doneMu.Unlock()
			if c.onProgress != nil {
				c.onProgress(progress, total)
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	raw := 0
	var merged []domain.ListingEntry
	seen := make(map[string]int)
	for i := 0; i < total; i++ {
		if pageErrs[i] != nil {
			c.logger.Warn("listing page failed",
				zap.Int("page", i+1),
				zap.Error(pageErrs[i]),
			)
			continue
		}
		succeeded++
		raw += len(pageResults[i])
		for _, entry := range pageResults[i] {
			if pos, ok := seen[entry.ProfileURL]; ok {
				merged[pos] = entry
				continue
			}
			seen[entry.ProfileURL] = len(merged)
			merged = append(merged, entry)
		}
	}

	summary := CrawlSummary{
		PagesRequested: total,
		PagesSucceeded: succeeded,
		RawEntries:     raw,
		UniqueEntries:  len(merged),
		Duration:       time.Since(start),
	}

	c.logger.Info("directory crawl complete",
		zap.Int("pages_requested", summary.PagesRequested),
		zap.Int("pages_succeeded", summary.PagesSucceeded),
		zap.Int("unique_entries", summary.UniqueEntries),
		zap.Duration("duration", summary.Duration),
	)

	return merged, summary
}

// crawlPage fetches one listing page in its own tab, triggers lazy loading
// with a fixed scroll cadence, and extracts candidate entries. Any failure
// makes the page contribute nothing; the tab is closed on every path.
func (c *Crawler) crawlPage(ctx context.Context, pageURL string, pageNum int) (entries []domain.ListingEntry, err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tab, err := c.tabs.NewTab()
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNum, err)
	}
	defer tab.Close()

	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("page %d: panic: %v", pageNum, r)
		}
	}()

	if err := tab.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNum, err)
	}
	tab.Wait(c.cfg.SettleWait)

	// The listing defers rendering rows until they scroll into view. A fixed
	// cadence, not content-aware.
	for i := 0; i < c.cfg.ScrollCount; i++ {
		tab.ScrollWheel(scrollWheelDelta)
		tab.Wait(c.cfg.ScrollWait)
	}

	content, err := tab.Content()
	if err != nil {
		return nil, fmt.Errorf("page %d: reading content: %w", pageNum, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("page %d: parsing content: %w", pageNum, err)
	}

	entries = ExtractListingEntries(doc, pageURL)
	c.logger.Debug("listing page scraped",
		zap.Int("page", pageNum),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// ExtractListingEntries pulls candidate entries out of a parsed listing
// page. Profile links are resolved against the page URL and canonicalized.
func ExtractListingEntries(doc *goquery.Document, pageURL string) []domain.ListingEntry {
	var entries []domain.ListingEntry
	listingEntrySelectors.EachMatch(doc, func(s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if name == "" || href == "" {
			return
		}
		entries = append(entries, domain.ListingEntry{
			Name:       name,
			ProfileURL: domain.CanonicalProfileURL(absoluteURL(pageURL, href)),
		})
	})
	return entries
}

// pageAddress builds the address of one listing page: page 1 is the bare
// listing URL, later pages carry a pagenumber query parameter.
func pageAddress(listingURL string, page int) string {
	if page <= 1 {
		return listingURL
	}
	sep := "?"
	if strings.Contains(listingURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spagenumber=%d", listingURL, sep, page)
}

// absoluteURL resolves href against the listing page URL.
func absoluteURL(pageURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
