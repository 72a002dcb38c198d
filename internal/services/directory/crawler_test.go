package directory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/config"
)

const listingURL = "https://directory.example/idaho/boise/family-medicine"

func listingHTML(anchors ...string) string {
	html := "<html><body><div class='results'>"
	for _, a := range anchors {
		html += a
	}
	return html + "</div></body></html>"
}

func anchor(name, href string) string {
	return fmt.Sprintf(`<a class="prov-name" href="%s">%s</a>`, href, name)
}

func testCrawlConfig(maxPages int) config.CrawlConfig {
	return config.CrawlConfig{
		BaseURL:     listingURL,
		MaxPages:    maxPages,
		SettleWait:  time.Millisecond,
		ScrollCount: 2,
		ScrollWait:  time.Millisecond,
	}
}

func TestCrawl_DeduplicatesAcrossPages(t *testing.T) {
	opener := newFakeOpener()
	opener.pages[listingURL] = listingHTML(
		anchor("Dr. Sarah K. Johnson, MD", "/doctor/sarah-k-johnson?x=1"),
		anchor("Dr. Alan Ortiz, DO", "/doctor/alan-ortiz"),
	)
	opener.pages[listingURL+"?pagenumber=2"] = listingHTML(
		anchor("Dr. Sarah K. Johnson, MD", "/doctor/sarah-k-johnson?x=2"),
		anchor("Dr. Maya Chen", "/doctor/maya-chen"),
	)

	crawler := NewCrawler(opener, testCrawlConfig(2), zap.NewNop())
	entries, summary := crawler.Crawl(context.Background(), listingURL)

	require.Len(t, entries, 3)
	assert.Equal(t, "https://directory.example/doctor/sarah-k-johnson", entries[0].ProfileURL)
	assert.Equal(t, "https://directory.example/doctor/alan-ortiz", entries[1].ProfileURL)
	assert.Equal(t, "https://directory.example/doctor/maya-chen", entries[2].ProfileURL)

	assert.Equal(t, 2, summary.PagesRequested)
	assert.Equal(t, 2, summary.PagesSucceeded)
	assert.Equal(t, 4, summary.RawEntries)
	assert.Equal(t, 3, summary.UniqueEntries)
	assert.Zero(t, opener.openTabs(), "every tab must be closed")
}

func TestCrawl_PageFailureDoesNotDisturbSiblings(t *testing.T) {
	opener := newFakeOpener()
	opener.pages[listingURL] = listingHTML(
		anchor("Dr. Sarah K. Johnson, MD", "/doctor/sarah-k-johnson"),
	)
	opener.failURLs[listingURL+"?pagenumber=2"] = true
	opener.pages[listingURL+"?pagenumber=3"] = listingHTML(
		anchor("Dr. Maya Chen", "/doctor/maya-chen"),
	)

	crawler := NewCrawler(opener, testCrawlConfig(3), zap.NewNop())
	entries, summary := crawler.Crawl(context.Background(), listingURL)

	assert.Len(t, entries, 2)
	assert.Equal(t, 3, summary.PagesRequested)
	assert.Equal(t, 2, summary.PagesSucceeded)
	assert.Zero(t, opener.openTabs())
}

func TestCrawl_EmptyMidSequencePageIsNotTerminal(t *testing.T) {
	opener := newFakeOpener()
	opener.pages[listingURL] = listingHTML(
		anchor("Dr. Sarah K. Johnson, MD", "/doctor/sarah-k-johnson"),
	)
	opener.pages[listingURL+"?pagenumber=2"] = listingHTML()
	opener.pages[listingURL+"?pagenumber=3"] = listingHTML(
		anchor("Dr. Maya Chen", "/doctor/maya-chen"),
	)

	crawler := NewCrawler(opener, testCrawlConfig(3), zap.NewNop())
	entries, summary := crawler.Crawl(context.Background(), listingURL)

	assert.Len(t, entries, 2)
	assert.Equal(t, 3, summary.PagesSucceeded)
}

func TestCrawl_ProgressCallback(t *testing.T) {
	opener := newFakeOpener()
	opener.pages[listingURL] = listingHTML()
	opener.pages[listingURL+"?pagenumber=2"] = listingHTML()

	crawler := NewCrawler(opener, testCrawlConfig(2), zap.NewNop())

	var mu sync.Mutex
	var calls []int
	crawler.SetProgressCallback(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, total)
		calls = append(calls, done)
	})

	crawler.Crawl(context.Background(), listingURL)
	assert.ElementsMatch(t, []int{1, 2}, calls)
}

func TestCrawl_CancelledContext(t *testing.T) {
	opener := newFakeOpener()
	opener.pages[listingURL] = listingHTML(
		anchor("Dr. Sarah K. Johnson, MD", "/doctor/sarah-k-johnson"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	crawler := NewCrawler(opener, testCrawlConfig(1), zap.NewNop())
	entries, summary := crawler.Crawl(ctx, listingURL)

	assert.Empty(t, entries)
	assert.Equal(t, 0, summary.PagesSucceeded)
}

func TestPageAddress(t *testing.T) {
	assert.Equal(t, listingURL, pageAddress(listingURL, 1))
	assert.Equal(t, listingURL+"?pagenumber=2", pageAddress(listingURL, 2))
	assert.Equal(t, "https://d.example/list?sort=name&pagenumber=3",
		pageAddress("https://d.example/list?sort=name", 3))
}
