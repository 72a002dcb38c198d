// Package aggregate coordinates a full provider lookup: directory crawl,
// candidate matching, profile extraction, insurance verification, and the
// REST collaborators, merged into one aggregate record.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
	"github.com/providerlens/providerlens/internal/observability"
	"github.com/providerlens/providerlens/internal/services/directory"
	"github.com/providerlens/providerlens/internal/services/verification"
	"github.com/providerlens/providerlens/internal/sources"
)

// LookupRequest describes one provider lookup.
type LookupRequest struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Address   string `json:"address,omitempty"`
}

// Validate checks the request fields.
func (r LookupRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.ValidationError("name", "name is required")
	}
	if len(strings.Fields(r.Name)) < 2 {
		return domain.ValidationError("name", "name must include first and last name")
	}
	return nil
}

// RunResult is everything one lookup run produced. Matched is false when no
// directory candidate passed the name match; the record then carries only the
// passive data the collaborators supplied, with no verification outcomes.
type RunResult struct {
	RunID    string                       `json:"run_id"`
	Matched  bool                         `json:"matched"`
	Record   *domain.AggregateRecord      `json:"record"`
	Entry    domain.ListingEntry          `json:"matched_entry"`
	Crawl    directory.CrawlSummary       `json:"crawl_summary"`
	Outcomes []domain.VerificationOutcome `json:"verification_outcomes"`
	Duration time.Duration                `json:"duration"`
}

// Collaborators bundles the REST sources consulted alongside the directory.
// Any of them may be nil, which skips that source.
type Collaborators struct {
	Registry *sources.RegistryClient
	Places   *sources.PlacesClient
	WebDir   *sources.WebDirClient
}

// Service runs lookups. It owns no browser: tabs come from the opener, so
// the same service works against a real session or a fake in tests.
type Service struct {
	crawler  *directory.Crawler
	profiles *directory.ProfileFetcher
	verifier *verification.Verifier
	collab   Collaborators
	cfg      *config.Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewService wires a lookup service over the given tab opener and
// collaborators.
func NewService(tabs browser.TabOpener, collab Collaborators, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		crawler:  directory.NewCrawler(tabs, cfg.Crawl, logger.Named("crawler")),
		profiles: directory.NewProfileFetcher(tabs, logger.Named("profile")),
		verifier: verification.NewVerifier(tabs, cfg.Verify, logger.Named("verifier")),
		collab:   collab,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// SetCrawlProgress forwards a progress callback to the crawler.
func (s *Service) SetCrawlProgress(fn func(done, total int)) {
	s.crawler.SetProgressCallback(fn)
}

// restFindings is what the concurrent REST collaborators gathered. Each
// field is nil when its source failed or was skipped.
type restFindings struct {
	registry *sources.RegistryLookup
	place    *sources.PlaceDetails
	webdir   *sources.WebDirResult
}

// Lookup runs the full pipeline for one provider. The run is bounded by the
// configured run timeout. The directory phase walks candidate regions in
// order until the provider matches; the REST collaborators run concurrently
// with it and fail independently.
func (s *Service) Lookup(ctx context.Context, req LookupRequest) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	s.metrics.LookupRunsActive.Inc()
	defer s.metrics.LookupRunsActive.Dec()

	log.Info("lookup run started",
		zap.String("name", req.Name),
		zap.String("specialty", req.Specialty),
	)

	// The REST collaborators need no browser, so they run while the crawl
	// occupies the tabs.
	var findings restFindings
	var restWG sync.WaitGroup
	restWG.Add(1)
	go func() {
		defer restWG.Done()
		findings = s.consultCollaborators(ctx, req, log)
	}()

	entry, summary, err := s.findProvider(ctx, req, log)
	if err != nil {
		restWG.Wait()
		if domain.GetErrorCode(err) != domain.ErrCodeEntityNotMatched {
			s.metrics.RecordLookupRun("error", time.Since(start))
			return nil, err
		}
		// No profile page means nothing to extract or verify, but the
		// collaborators already answered. The run still returns their
		// passive data.
		record := s.merge(req, domain.ListingEntry{}, &domain.ProfileRecord{}, nil, findings)
		result := &RunResult{
			RunID:    runID,
			Record:   record,
			Crawl:    summary,
			Duration: time.Since(start),
		}
		s.metrics.RecordLookupRun("not_matched", result.Duration)
		log.Info("provider not matched in directory, returning passive data",
			zap.Strings("sources", record.Sources),
			zap.Duration("duration", result.Duration),
		)
		return result, nil
	}
	s.metrics.RecordCrawl(summary.PagesSucceeded, summary.PagesRequested-summary.PagesSucceeded, summary.UniqueEntries, summary.Duration)

	profile, err := s.profiles.Fetch(ctx, entry.ProfileURL)
	if err != nil {
		log.Warn("profile extraction failed, continuing with directory entry only", zap.Error(err))
		profile = &domain.ProfileRecord{}
	}

	outcomes := s.verifyInsurance(ctx, entry.ProfileURL)

	restWG.Wait()

	record := s.merge(req, entry, profile, outcomes, findings)
	result := &RunResult{
		RunID:    runID,
		Matched:  true,
		Record:   record,
		Entry:    entry,
		Crawl:    summary,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}

	s.metrics.RecordLookupRun("ok", result.Duration)
	log.Info("lookup run complete",
		zap.String("profile_url", entry.ProfileURL),
		zap.Int("accepted_plans", len(record.AcceptedPlans)),
		zap.Strings("sources", record.Sources),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// findProvider crawls candidate regions in priority order until the target
// matches a listing entry. The region derived from the caller's address goes
// first; the fallback regions cover callers with no usable address.
func (s *Service) findProvider(ctx context.Context, req LookupRequest, log *zap.Logger) (domain.ListingEntry, directory.CrawlSummary, error) {
	specialtySlug := sources.SpecialtySlug(req.Specialty)
	regions := candidateRegions(req.Address)

	var lastSummary directory.CrawlSummary
	totalCandidates := 0
	for _, region := range regions {
		select {
		case <-ctx.Done():
			return domain.ListingEntry{}, lastSummary, ctx.Err()
		default:
		}

		listingURL := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Crawl.BaseURL, "/"), specialtySlug, region)
		entries, summary := s.crawler.Crawl(ctx, listingURL)
		lastSummary = summary
		totalCandidates += len(entries)

		if entry, ok := directory.MatchCandidate(req.Name, entries); ok {
			log.Info("provider matched in directory",
				zap.String("region", region),
				zap.String("profile_url", entry.ProfileURL),
			)
			return entry, summary, nil
		}
		log.Info("provider not in region, trying next",
			zap.String("region", region),
			zap.Int("candidates", len(entries)),
		)
	}

	return domain.ListingEntry{}, lastSummary, domain.EntityNotMatchedError(req.Name, totalCandidates)
}

// candidateRegions orders the region slugs to crawl: the caller's region
// first when derivable, then the fallback list minus any duplicate.
func candidateRegions(address string) []string {
	primary := sources.StateSlugFromAddress(address)
	if primary == "" {
		return sources.FallbackStateSlugs
	}
	regions := []string{primary}
	for _, slug := range sources.FallbackStateSlugs {
		if slug != primary {
			regions = append(regions, slug)
		}
	}
	return regions
}

func (s *Service) verifyInsurance(ctx context.Context, profileURL string) []domain.VerificationOutcome {
	probeStart := time.Now()
	outcomes := s.verifier.VerifyAll(ctx, profileURL, domain.DefaultChecklist())
	probeDuration := time.Since(probeStart)
	for _, outcome := range outcomes {
		verdict := "rejected"
		if outcome.Accepted {
			verdict = "accepted"
		}
		s.metrics.RecordProbe(outcome.Plan, verdict, probeDuration)
	}
	return outcomes
}

// consultCollaborators queries every configured REST source concurrently.
// Each source fails on its own; a missing or broken source just contributes
// nothing to the merge.
func (s *Service) consultCollaborators(ctx context.Context, req LookupRequest, log *zap.Logger) restFindings {
	var findings restFindings
	var wg sync.WaitGroup

	if s.collab.Registry != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			lookup, err := s.collab.Registry.Search(ctx, req.Name, req.Specialty)
			s.recordSource("npi_registry", err, time.Since(start), log)
			findings.registry = lookup
		}()
	}

	if s.collab.Places != nil && s.collab.Places.Configured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			place, err := s.collab.Places.Lookup(ctx, req.Name, req.Specialty)
			s.recordSource("google_places", err, time.Since(start), log)
			findings.place = place
		}()
	}

	if s.collab.WebDir != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			result, err := s.collab.WebDir.Search(ctx, req.Name)
			s.recordSource("web_directory", err, time.Since(start), log)
			findings.webdir = result
		}()
	}

	wg.Wait()
	return findings
}

func (s *Service) recordSource(source string, err error, duration time.Duration, log *zap.Logger) {
	status := sourceStatus(err)
	if status == "unavailable" || status == "error" {
		log.Warn("collaborating source failed",
			zap.String("source", source),
			zap.Error(err),
		)
	}
	s.metrics.RecordSourceRequest(source, status, duration)
}

// sourceStatus buckets collaborator errors for the source-request metric.
func sourceStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoCandidateFound):
		return "no_match"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// merge folds every contribution into one record. Single-valued fields are
// first-writer-wins in priority order: the caller's own address, then the
// registry, then places, then the web directory, then the profile page.
// Plans and services accumulate across all contributors.
func (s *Service) merge(req LookupRequest, entry domain.ListingEntry, profile *domain.ProfileRecord, outcomes []domain.VerificationOutcome, findings restFindings) *domain.AggregateRecord {
	record := &domain.AggregateRecord{
		Name:        req.Name,
		Specialty:   req.Specialty,
		ProfileURL:  entry.ProfileURL,
		RetrievedAt: time.Now().UTC(),
	}
	if record.Specialty == "" {
		record.Specialty = profile.Specialty
	}

	record.SetAddress(req.Address)

	if findings.registry != nil {
		record.SetAddress(findings.registry.Address)
		if findings.registry.NPI != "" {
			record.LicenseNumber = findings.registry.NPI
		}
		record.AddSource("npi_registry")
	}

	if findings.place != nil {
		record.SetAddress(findings.place.Address)
		record.SetPhone(findings.place.Phone)
		if findings.place.Rating > 0 {
			record.SetRating(fmt.Sprintf("%.1f", findings.place.Rating))
		}
		if record.Website == "" {
			record.Website = findings.place.Website
		}
		if len(record.Hours) == 0 {
			record.Hours = findings.place.Hours
		}
		record.Reviews = append(record.Reviews, findings.place.Reviews...)
		if findings.place.Address != "" || findings.place.Phone != "" {
			record.PracticeLocations = append(record.PracticeLocations, domain.PracticeLocation{
				Address: findings.place.Address,
				Phone:   findings.place.Phone,
				Rating:  findings.place.Rating,
				Source:  "google_places",
			})
		}
		record.AddSource("google_places")
	}

	if findings.webdir != nil {
		record.SetAddress(findings.webdir.Address)
		record.SetPhone(findings.webdir.Phone)
		record.AddSource("web_directory")
	}

	if len(profile.Addresses) > 0 {
		record.SetAddress(profile.Addresses[0])
	}
	if len(profile.Phones) > 0 {
		record.SetPhone(profile.Phones[0])
	}
	record.SetRating(profile.Rating)
	record.Languages = profile.Languages
	record.AddAcceptedPlans(profile.AcceptedPlans...)
	if profile.Name != "" || len(profile.Addresses) > 0 || len(profile.AcceptedPlans) > 0 {
		record.AddSource("provider_directory")
	}

	verified := false
	for _, outcome := range outcomes {
		if outcome.Accepted {
			record.AddAcceptedPlans(outcome.Plan)
			verified = true
		}
	}
	if verified {
		record.AddSource("insurance_verification")
	}

	return record
}
