package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/domain"
)

// Field selector chains for a provider profile page, most specific layout
// first. The later entries cover older page templates.
var (
	profileNameSelectors = SelectorChain{
		"h1",
		".provider-name",
		".doctor-name",
		"[data-testid='provider-name']",
		".profile-header h1",
	}
	profileSpecialtySelectors = SelectorChain{
		"div.Specialty",
		".specialty",
		"[data-testid='specialty']",
		".provider-specialty",
		".doctor-specialty",
		".profile-specialty",
	}
	profileAddressSelectors = SelectorChain{
		"address",
		".address",
		"[data-testid='address']",
		".provider-address",
		".location-address",
	}
	profilePhoneSelectors = SelectorChain{
		"a[href^='tel']",
		".phone",
		"[data-testid='phone']",
		".provider-phone",
		".contact-phone",
	}
	profileInsuranceSelectors = SelectorChain{
		"li[data-testid='insurance-item']",
		".insurance-item",
		".insurance-plan",
		".accepted-insurance li",
		".insurance-list li",
	}
	profileLanguageSelectors = SelectorChain{
		"li[data-testid='language-item']",
		".language-item",
		".languages li",
		".provider-languages li",
	}
	profileRatingSelectors = SelectorChain{
		"span.RatingValue",
		".rating-value",
		"[data-testid='rating']",
		".provider-rating",
		".star-rating",
	}
)

// ExtractProfile reads the passive profile fields out of a parsed profile
// document. Missing fields come back empty, never as errors.
func ExtractProfile(doc *goquery.Document) *domain.ProfileRecord {
	record := &domain.ProfileRecord{
		Name:      profileNameSelectors.FirstText(doc),
		Specialty: profileSpecialtySelectors.FirstText(doc),
		Addresses: profileAddressSelectors.AllTexts(doc),
		Phones:    profilePhoneSelectors.AllTexts(doc),
		Languages: profileLanguageSelectors.AllTexts(doc),
		Rating:    profileRatingSelectors.FirstText(doc),
	}
	for _, plan := range profileInsuranceSelectors.AllTexts(doc) {
		record.AddAcceptedPlan(plan)
	}
	return record
}

// ProfileFetcher loads a provider profile page and extracts its passive
// fields.
type ProfileFetcher struct {
	tabs           browser.TabOpener
	quiesceTimeout time.Duration
	fallbackWait   time.Duration
	settleWait     time.Duration
	logger         *zap.Logger
}

// NewProfileFetcher creates a profile fetcher over the given tab opener.
func NewProfileFetcher(tabs browser.TabOpener, logger *zap.Logger) *ProfileFetcher {
	return &ProfileFetcher{
		tabs:           tabs,
		quiesceTimeout: 10 * time.Second,
		fallbackWait:   5 * time.Second,
		settleWait:     2 * time.Second,
		logger:         logger,
	}
}

// Fetch navigates to a profile URL in its own tab and extracts the passive
// record. A quiescence timeout is downgraded to a fixed wait; the tab is
// closed on every path.
func (f *ProfileFetcher) Fetch(ctx context.Context, profileURL string) (*domain.ProfileRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tab, err := f.tabs.NewTab()
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer tab.Close()

	if err := tab.Navigate(profileURL); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	if err := tab.WaitQuiescence(f.quiesceTimeout); err != nil {
		f.logger.Debug("profile quiescence timed out, using fixed wait",
			zap.String("url", profileURL),
		)
		tab.Wait(f.fallbackWait)
	}
	tab.Wait(f.settleWait)

	content, err := tab.Content()
	if err != nil {
		return nil, fmt.Errorf("reading profile content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing profile content: %w", err)
	}

	record := ExtractProfile(doc)
	f.logger.Info("profile extracted",
		zap.String("url", profileURL),
		zap.String("name", record.Name),
		zap.Int("addresses", len(record.Addresses)),
		zap.Int("phones", len(record.Phones)),
		zap.Int("plans", len(record.AcceptedPlans)),
		zap.Int("languages", len(record.Languages)),
	)
	return record, nil
}
