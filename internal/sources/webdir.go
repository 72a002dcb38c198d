package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
	"github.com/providerlens/providerlens/internal/resilience"
)

var phonePattern = regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`)

// WebDirClient scrapes a secondary provider directory's search results page
// for contact details. It is a plain HTTP client, no browser involved.
type WebDirClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

func NewWebDirClient(cfg config.WebDirConfig, logger *zap.Logger) *WebDirClient {
	return &WebDirClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 2),
		breaker:    resilience.New(resilience.DefaultConfig("web-directory")),
		logger:     logger.Named("webdir"),
	}
}

// WebDirResult is what a directory search card yields.
type WebDirResult struct {
	Name    string
	Phone   string
	Address string
}

// cardSelectors locate a result card on the search page, most specific
// first.
var cardSelectors = []string{
	"div[data-qa-target='search-result-card']",
	"div.search-result-card",
	"article.provider-card",
	"div.listing-result",
}

// Search fetches the directory search page for the given provider name and
// pulls phone and address out of the first result card.
func (c *WebDirClient) Search(ctx context.Context, name string) (*WebDirResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := c.baseURL + "?what=" + url.QueryEscape(name)

	var doc *goquery.Document
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		doc, fetchErr = c.fetch(ctx, searchURL)
		return fetchErr
	})
	if err != nil {
		return nil, domain.SourceUnavailableError("web_directory", err)
	}

	card := firstCard(doc)
	if card == nil {
		c.logger.Debug("no result cards on search page", zap.String("name", name))
		return nil, domain.ErrNoCandidateFound
	}

	result := &WebDirResult{
		Name:    strings.TrimSpace(card.Find("h3, a[data-qa-target='provider-name']").First().Text()),
		Phone:   phonePattern.FindString(card.Text()),
		Address: extractCardAddress(card),
	}
	if result.Phone == "" && result.Address == "" {
		return nil, domain.ErrNoCandidateFound
	}

	c.logger.Info("directory card extracted",
		zap.String("name", result.Name),
		zap.Bool("has_phone", result.Phone != ""),
		zap.Bool("has_address", result.Address != ""))

	return result, nil
}

func (c *WebDirClient) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func firstCard(doc *goquery.Document) *goquery.Selection {
	for _, sel := range cardSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

var addressSelectors = []string{
	"span[data-qa-target='provider-address']",
	"address",
	"div.location-info",
	"span.address",
}

func extractCardAddress(card *goquery.Selection) string {
	for _, sel := range addressSelectors {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}
