package aggregate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
	"github.com/providerlens/providerlens/internal/observability"
	"github.com/providerlens/providerlens/internal/sources"
)

// One registry for the whole test binary; promauto panics on duplicates.
var testMetrics = observability.NewMetrics("aggregate_test")

const (
	crawlBase    = "https://directory.example/providers/specialty"
	listingIdaho = crawlBase + "/family-medicine/idaho"
	profileURL   = "https://directory.example/doctor/sarah-k-johnson"
)

// siteOpener serves canned pages per URL and emulates the insurance widget:
// typing a plan into the located input switches the tab's content to the
// canned verification text for that plan.
type siteOpener struct {
	mu     sync.Mutex
	pages  map[string]string
	verify map[string]string
	opened int
	closed int
}

func newSiteOpener() *siteOpener {
	return &siteOpener{
		pages:  make(map[string]string),
		verify: make(map[string]string),
	}
}

func (o *siteOpener) NewTab() (browser.Tab, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	return &siteTab{opener: o}, nil
}

func (o *siteOpener) openTabs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened - o.closed
}

type siteTab struct {
	opener *siteOpener
	url    string
	plan   string
	closed bool
}

func (t *siteTab) Navigate(url string) error {
	t.url = url
	return nil
}

func (t *siteTab) WaitQuiescence(time.Duration) error { return nil }
func (t *siteTab) Wait(time.Duration)                 {}
func (t *siteTab) ScrollWheel(float64)                {}
func (t *siteTab) ScrollToFraction(float64) error     { return nil }
func (t *siteTab) IsVisible(string) bool              { return true }

func (t *siteTab) FirstVisible(selectors []string, _ time.Duration) (browser.Element, error) {
	for _, sel := range selectors {
		if strings.Contains(sel, "input") {
			return &siteInput{tab: t}, nil
		}
	}
	return nil, fmt.Errorf("not visible")
}

func (t *siteTab) Content() (string, error) {
	t.opener.mu.Lock()
	defer t.opener.mu.Unlock()
	if t.plan != "" {
		return t.opener.verify[t.plan], nil
	}
	return t.opener.pages[t.url], nil
}

func (t *siteTab) TextsOf(string) []string { return nil }

func (t *siteTab) Close() {
	t.opener.mu.Lock()
	defer t.opener.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.opener.closed++
}

type siteInput struct {
	tab *siteTab
}

func (i *siteInput) Click() error { return nil }
func (i *siteInput) Clear() error { i.tab.plan = ""; return nil }

func (i *siteInput) TypeSlowly(text string, _ time.Duration) error {
	i.tab.plan += text
	return nil
}

func (i *siteInput) Press(string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		RunTimeout: 30 * time.Second,
		Crawl: config.CrawlConfig{
			BaseURL:     crawlBase,
			MaxPages:    1,
			SettleWait:  time.Millisecond,
			ScrollCount: 1,
			ScrollWait:  time.Millisecond,
		},
		Verify: config.VerifyConfig{
			QuiesceTimeout: time.Millisecond,
			FallbackWait:   time.Millisecond,
			SettleWait:     time.Millisecond,
			LocatorTimeout: time.Millisecond,
			ScrollSteps:    1,
		},
	}
}

func populateSite(opener *siteOpener) {
	opener.pages[listingIdaho] = `
		<html><body>
		<a class="prov-name" href="/doctor/alan-ortiz">Dr. Alan Ortiz, DO</a>
		<a class="prov-name" href="/doctor/sarah-k-johnson?src=list">Dr. Sarah K. Johnson, MD</a>
		</body></html>`
	opener.pages[profileURL] = `
		<html><body>
		<h1>Dr. Sarah K. Johnson, MD</h1>
		<div class="Specialty">Family Medicine</div>
		<address>123 Main St, Boise, ID 83702</address>
		<a href="tel:2085550142">(208) 555-0142</a>
		<li data-testid="insurance-item">Regence BlueShield</li>
		<li data-testid="language-item">English</li>
		<span class="RatingValue">4.5</span>
		</body></html>`
	opener.verify["Aetna"] = "Dr. Johnson accepts Aetna."
	opener.verify["Cigna"] = "Dr. Johnson accepts Cigna."
	opener.verify["Blue Cross Blue Shield"] = "We cannot verify this coverage."
	opener.verify["UnitedHealthcare"] = "We cannot verify this coverage."
	opener.verify["Humana"] = "Nothing conclusive."
}

func testRegistry(t *testing.T) *sources.RegistryClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"result_count": 1,
			"results": [{
				"number": "1234567890",
				"basic": {"first_name": "Sarah", "last_name": "Johnson"},
				"addresses": [{"address_1": "77 Registry Rd", "city": "Boise", "state": "ID", "postal_code": "837011111", "address_purpose": "LOCATION"}],
				"identifiers": [{"code": "05", "state": "ID"}]
			}]
		}`))
	}))
	t.Cleanup(srv.Close)
	return sources.NewRegistryClient(config.RegistryConfig{
		BaseURL: srv.URL, Timeout: 5 * time.Second, ResultLimit: 10, RateLimitRPM: 6000,
	}, zap.NewNop())
}

func testWebDir(t *testing.T) *sources.WebDirClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div class="search-result-card">
				<h3>Dr. Sarah Johnson</h3>
				<address>88 Webdir Way, Boise, ID</address>
				<p>(208) 555-0100</p>
			</div>
		</body></html>`))
	}))
	t.Cleanup(srv.Close)
	return sources.NewWebDirClient(config.WebDirConfig{
		BaseURL: srv.URL, Timeout: 5 * time.Second, RateLimitRPM: 6000,
	}, zap.NewNop())
}

func TestLookup_FullPipeline(t *testing.T) {
	opener := newSiteOpener()
	populateSite(opener)

	svc := NewService(opener, Collaborators{
		Registry: testRegistry(t),
		WebDir:   testWebDir(t),
	}, testConfig(), testMetrics, zap.NewNop())

	result, err := svc.Lookup(context.Background(), LookupRequest{
		Name:      "Sarah Johnson",
		Specialty: "Family Medicine",
		Address:   "Boise, ID",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	assert.True(t, result.Matched)

	record := result.Record
	assert.Equal(t, "Sarah Johnson", record.Name)
	assert.Equal(t, "Family Medicine", record.Specialty)
	assert.Equal(t, profileURL, record.ProfileURL)

	// Caller gave an address, so the registry address must not overwrite it.
	assert.Equal(t, "Boise, ID", record.Address)
	assert.Equal(t, "1234567890", record.LicenseNumber)
	assert.Equal(t, "(208) 555-0100", record.Phone, "web directory outranks the profile page for phone")
	assert.Equal(t, "4.5", record.Rating)

	// Profile plans and verified plans accumulate, no duplicates.
	assert.ElementsMatch(t, []string{"Regence BlueShield", "Aetna", "Cigna"}, record.AcceptedPlans)

	assert.Contains(t, record.Sources, "npi_registry")
	assert.Contains(t, record.Sources, "web_directory")
	assert.Contains(t, record.Sources, "provider_directory")
	assert.Contains(t, record.Sources, "insurance_verification")
	assert.NotContains(t, record.Sources, "google_places")

	require.Len(t, result.Outcomes, 5)
	assert.Zero(t, opener.openTabs(), "all tabs must be closed after a run")
}

func TestLookup_AddressFirstWriterWhenCallerOmitsIt(t *testing.T) {
	opener := newSiteOpener()
	populateSite(opener)
	// Entry listing must exist for the fallback regions too; the first
	// fallback region carries the match.
	opener.pages[crawlBase+"/family-medicine/"+sources.FallbackStateSlugs[0]] = opener.pages[listingIdaho]

	svc := NewService(opener, Collaborators{Registry: testRegistry(t)}, testConfig(), testMetrics, zap.NewNop())

	result, err := svc.Lookup(context.Background(), LookupRequest{
		Name:      "Sarah Johnson",
		Specialty: "Family Medicine",
	})
	require.NoError(t, err)
	assert.Equal(t, "77 Registry Rd, Boise, ID, 83701", result.Record.Address)
}

func TestLookup_NoMatchReturnsPassiveData(t *testing.T) {
	opener := newSiteOpener()
	opener.pages[listingIdaho] = `<html><body>
		<a class="prov-name" href="/doctor/alan-ortiz">Dr. Alan Ortiz, DO</a>
	</body></html>`

	svc := NewService(opener, Collaborators{
		Registry: testRegistry(t),
		WebDir:   testWebDir(t),
	}, testConfig(), testMetrics, zap.NewNop())

	result, err := svc.Lookup(context.Background(), LookupRequest{
		Name:      "Sarah Johnson",
		Specialty: "Family Medicine",
		Address:   "Boise, ID",
	})
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.Outcomes)

	// The collaborators answered even though the directory had no match;
	// their contributions survive in the record.
	record := result.Record
	require.NotNil(t, record)
	assert.Equal(t, "Boise, ID", record.Address)
	assert.Equal(t, "1234567890", record.LicenseNumber)
	assert.Equal(t, "(208) 555-0100", record.Phone)
	assert.Empty(t, record.ProfileURL)
	assert.Empty(t, record.AcceptedPlans)
	assert.Contains(t, record.Sources, "npi_registry")
	assert.Contains(t, record.Sources, "web_directory")
	assert.NotContains(t, record.Sources, "provider_directory")
	assert.NotContains(t, record.Sources, "insurance_verification")
	assert.Zero(t, opener.openTabs(), "all tabs must be closed after a run")
}

func TestLookup_ValidatesRequest(t *testing.T) {
	svc := NewService(newSiteOpener(), Collaborators{}, testConfig(), testMetrics, zap.NewNop())

	_, err := svc.Lookup(context.Background(), LookupRequest{Name: ""})
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))

	_, err = svc.Lookup(context.Background(), LookupRequest{Name: "Cher"})
	assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
}

func TestCandidateRegions(t *testing.T) {
	regions := candidateRegions("Boise, ID")
	require.NotEmpty(t, regions)
	assert.Equal(t, "idaho", regions[0])
	assert.NotContains(t, regions[1:], "idaho")

	assert.Equal(t, sources.FallbackStateSlugs, candidateRegions(""))
}

func TestMerge_PlaceHoursAndReviewTimes(t *testing.T) {
	svc := NewService(newSiteOpener(), Collaborators{}, testConfig(), testMetrics, zap.NewNop())

	findings := restFindings{place: &sources.PlaceDetails{
		Address: "500 Clinic Blvd, Boise, ID",
		Phone:   "(208) 555-0177",
		Rating:  4.2,
		Hours:   []string{"Monday: 9:00 AM - 5:00 PM", "Tuesday: 9:00 AM - 5:00 PM"},
		Reviews: []domain.Review{
			{Author: "A. Patient", Rating: 5, Text: "Very thorough.", Time: 1700000000},
		},
	}}

	record := svc.merge(LookupRequest{Name: "Sarah Johnson"},
		domain.ListingEntry{}, &domain.ProfileRecord{}, nil, findings)

	assert.Equal(t, findings.place.Hours, record.Hours)
	require.Len(t, record.Reviews, 1)
	assert.Equal(t, int64(1700000000), record.Reviews[0].Time)
	require.Len(t, record.PracticeLocations, 1)
	assert.Equal(t, "google_places", record.PracticeLocations[0].Source)
}

func TestSourceStatus(t *testing.T) {
	assert.Equal(t, "ok", sourceStatus(nil))
	assert.Equal(t, "no_match", sourceStatus(domain.ErrNoCandidateFound))
	assert.Equal(t, "unavailable", sourceStatus(domain.SourceUnavailableError("web_directory", fmt.Errorf("status 502"))))
	assert.Equal(t, "error", sourceStatus(fmt.Errorf("connection reset")))
}

func TestLookup_CollaboratorFailureDoesNotFailRun(t *testing.T) {
	opener := newSiteOpener()
	populateSite(opener)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	broken := sources.NewRegistryClient(config.RegistryConfig{
		BaseURL: srv.URL, Timeout: 5 * time.Second, ResultLimit: 10, RateLimitRPM: 6000,
	}, zap.NewNop())

	svc := NewService(opener, Collaborators{Registry: broken}, testConfig(), testMetrics, zap.NewNop())

	result, err := svc.Lookup(context.Background(), LookupRequest{
		Name:      "Sarah Johnson",
		Specialty: "Family Medicine",
		Address:   "Boise, ID",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Record.LicenseNumber)
	assert.NotContains(t, result.Record.Sources, "npi_registry")
}
