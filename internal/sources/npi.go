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

// RegistryClient queries the NPI registry for provider records.
type RegistryClient struct {
	baseURL     string
	resultLimit int
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *resilience.CircuitBreaker
	logger      *zap.Logger
}

func NewRegistryClient(cfg config.RegistryConfig, logger *zap.Logger) *RegistryClient {
	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 60
	}
	return &RegistryClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		resultLimit: cfg.ResultLimit,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
		breaker:     resilience.New(resilience.DefaultConfig("npi-registry")),
		logger:      logger.Named("npi"),
	}
}

// RegistryAddress is one address block on a registry record.
type RegistryAddress struct {
	Address1       string `json:"address_1"`
	Address2       string `json:"address_2"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	AddressPurpose string `json:"address_purpose"`
}

// RegistryIdentifier is a non-NPI identifier attached to a record, such as a
// state license or payer-issued number.
type RegistryIdentifier struct {
	Code       string `json:"code"`
	Desc       string `json:"desc"`
	Issuer     string `json:"issuer"`
	Identifier string `json:"identifier"`
	State      string `json:"state"`
}

// RegistryRecord is a single result from the registry search API.
type RegistryRecord struct {
	Number string `json:"number"`
	Basic  struct {
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Credential string `json:"credential"`
		Status     string `json:"status"`
	} `json:"basic"`
	Addresses   []RegistryAddress    `json:"addresses"`
	Identifiers []RegistryIdentifier `json:"identifiers"`
}

// RegistryLookup is the outcome of a registry search: the raw results plus
// the record selected as the best match and the address derived from it.
type RegistryLookup struct {
	Results  []RegistryRecord
	Selected *RegistryRecord
	NPI      string
	Address  string
}

type registryResponse struct {
	ResultCount int              `json:"result_count"`
	Results     []RegistryRecord `json:"results"`
}

// Search looks up a provider by name and picks the best-matching record.
// Records carrying identifiers are preferred over bare ones; ties break on
// how closely the record's name matches the requested one.
func (c *RegistryClient) Search(ctx context.Context, name, specialty string) (*RegistryLookup, error) {
	first, last := ParseName(name)
	if last == "" {
		return nil, domain.ValidationError("name", "need at least a first and last name for a registry search")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("version", "2.1")
	params.Set("first_name", first)
	params.Set("last_name", last)
	params.Set("limit", fmt.Sprintf("%d", c.resultLimit))
	if specialty != "" {
		params.Set("taxonomy_description", specialty)
	}

	var resp registryResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, c.baseURL+"/?"+params.Encode(), &resp)
	})
	if err != nil {
		return nil, domain.SourceUnavailableError("npi_registry", err)
	}

	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		c.logger.Debug("registry returned no results",
			zap.String("first_name", first),
			zap.String("last_name", last))
		return nil, domain.ErrNoCandidateFound
	}

	selected := selectRecord(resp.Results, first, last)
	lookup := &RegistryLookup{
		Results:  resp.Results,
		Selected: selected,
		NPI:      selected.Number,
		Address:  bestAddress(selected.Addresses),
	}

	c.logger.Info("registry match selected",
		zap.String("npi", lookup.NPI),
		zap.Int("result_count", resp.ResultCount),
		zap.Bool("has_identifiers", len(selected.Identifiers) > 0))

	return lookup, nil
}

func (c *RegistryClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// selectRecord picks the best record: any record with identifiers beats one
// without, then the closest name match wins. Ties keep API order.
func selectRecord(records []RegistryRecord, first, last string) *RegistryRecord {
	best := &records[0]
	bestScore := recordScore(best, first, last)
	for i := 1; i < len(records); i++ {
		if s := recordScore(&records[i], first, last); s > bestScore {
			best = &records[i]
			bestScore = s
		}
	}
	return best
}

func recordScore(r *RegistryRecord, first, last string) int {
	score := 0
	if len(r.Identifiers) > 0 {
		score += 10
	}
	rf := strings.ToLower(r.Basic.FirstName)
	rl := strings.ToLower(r.Basic.LastName)
	first = strings.ToLower(first)
	last = strings.ToLower(last)
	if rf == first {
		score += 3
	} else if strings.Contains(rf, first) || strings.Contains(first, rf) {
		score += 2
	}
	if rl == last {
		score += 3
	} else if strings.Contains(rl, last) || strings.Contains(last, rl) {
		score += 2
	}
	return score
}

// bestAddress formats the most useful address on a record: the practice
// location when present, then the mailing address, then whatever is first.
func bestAddress(addresses []RegistryAddress) string {
	if len(addresses) == 0 {
		return ""
	}
	pick := addresses[0]
	for _, purpose := range []string{"LOCATION", "MAILING"} {
		found := false
		for _, a := range addresses {
			if strings.EqualFold(a.AddressPurpose, purpose) {
				pick = a
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	return formatAddress(pick)
}

func formatAddress(a RegistryAddress) string {
	zip := a.PostalCode
	if len(zip) > 5 {
		zip = zip[:5]
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Address1, a.Address2, a.City, a.State, zip} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
