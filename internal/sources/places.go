package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
	"github.com/providerlens/providerlens/internal/resilience"
)

// maxReviews caps how many reviews are carried into the aggregate record.
const maxReviews = 5

// PlacesClient looks up provider practices through the Places text search
// and details APIs. A client with no API key is still usable: lookups
// return ErrNotConfigured and callers skip the source.
type PlacesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// ErrNotConfigured reports that a source was skipped because no credentials
// were provided for it.
var ErrNotConfigured = &domain.DomainError{Code: domain.ErrCodeSourceUnavailable, Message: "source not configured"}

func NewPlacesClient(cfg config.PlacesConfig, logger *zap.Logger) *PlacesClient {
	return &PlacesClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 5),
		breaker:    resilience.New(resilience.DefaultConfig("google-places")),
		logger:     logger.Named("places"),
	}
}

// Configured reports whether an API key is present.
func (c *PlacesClient) Configured() bool {
	return c.apiKey != ""
}

// PlaceDetails is the subset of a place details response the aggregator
// consumes.
type PlaceDetails struct {
	Name    string
	Address string
	Phone   string
	Website string
	Rating  float64
	Hours   []string
	Reviews []domain.Review
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		FormattedPhone   string  `json:"formatted_phone_number"`
		Website          string  `json:"website"`
		Rating           float64 `json:"rating"`
		OpeningHours     struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Reviews []struct {
			AuthorName string  `json:"author_name"`
			Rating     float64 `json:"rating"`
			Text       string  `json:"text"`
			Time       int64   `json:"time"`
		} `json:"reviews"`
	} `json:"result"`
}

// Lookup runs a text search for the provider's practice and fetches details
// for the first hit.
func (c *PlacesClient) Lookup(ctx context.Context, name, specialty string) (*PlaceDetails, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := "Dr " + name
	if specialty != "" {
		query += " " + specialty
	}

	placeID, err := c.textSearch(ctx, query)
	if err != nil {
		return nil, err
	}
	if placeID == "" {
		return nil, domain.ErrNoCandidateFound
	}
	return c.details(ctx, placeID)
}

func (c *PlacesClient) textSearch(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "doctor")
	params.Set("key", c.apiKey)

	var resp textSearchResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, c.baseURL+"/textsearch/json?"+params.Encode(), &resp)
	})
	if err != nil {
		return "", domain.SourceUnavailableError("google_places", err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		c.logger.Debug("text search returned nothing",
			zap.String("status", resp.Status),
			zap.String("query", query))
		return "", nil
	}
	return resp.Results[0].PlaceID, nil
}

func (c *PlacesClient) details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,formatted_address,formatted_phone_number,website,rating,opening_hours,reviews")
	params.Set("key", c.apiKey)

	var resp detailsResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, c.baseURL+"/details/json?"+params.Encode(), &resp)
	})
	if err != nil {
		return nil, domain.SourceUnavailableError("google_places", err)
	}
	if resp.Status != "OK" {
		return nil, domain.ErrNoCandidateFound
	}

	r := resp.Result
	details := &PlaceDetails{
		Name:    r.Name,
		Address: r.FormattedAddress,
		Phone:   r.FormattedPhone,
		Website: r.Website,
		Rating:  r.Rating,
		Hours:   r.OpeningHours.WeekdayText,
	}
	for i, rev := range r.Reviews {
		if i >= maxReviews {
			break
		}
		details.Reviews = append(details.Reviews, domain.Review{
			Author: rev.AuthorName,
			Rating: rev.Rating,
			Text:   rev.Text,
			Time:   rev.Time,
		})
	}

	c.logger.Info("place details fetched",
		zap.String("place_id", placeID),
		zap.Float64("rating", details.Rating),
		zap.Int("reviews", len(details.Reviews)))

	return details, nil
}

func (c *PlacesClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
