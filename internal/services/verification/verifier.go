package verification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/browser"
	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
)

// Structural locators for the insurance verification widget. Each list is an
// ordered fallback chain: the site's markup drifts, and the absolute-path
// locator breaks first.
var (
	sectionHeadingSelector = "text='INSURANCE PLANS ACCEPTED'"

	searchInputSelectors = []string{
		"xpath=/html/body/div[1]/main/div[4]/div[19]/div/div[2]/div/div/div[1]/div/div/div[1]/div[1]/input",
		`input.webmd-input__inner[placeholder="Enter Insurance Carrier"]`,
	}

	applyButtonSelectors = []string{
		"xpath=//*[@id='insurance']/div/div[2]/div/div/div[1]/div/div/div[3]/button",
	}

	verifyTextSelector = "div.verify-text"
)

// Verifier runs the insurance verification protocol: one independent tab per
// plan, all plans concurrent against the same profile URL.
type Verifier struct {
	tabs   browser.TabOpener
	cfg    config.VerifyConfig
	logger *zap.Logger
}

// NewVerifier creates a verifier over the given tab opener.
func NewVerifier(tabs browser.TabOpener, cfg config.VerifyConfig, logger *zap.Logger) *Verifier {
	return &Verifier{
		tabs:   tabs,
		cfg:    cfg,
		logger: logger,
	}
}

// VerifyAll probes every checklist plan concurrently and gathers all
// outcomes. One probe's failure never disturbs its siblings; the barrier
// waits for every probe before returning. Outcomes are returned in checklist
// order.
func (v *Verifier) VerifyAll(ctx context.Context, profileURL string, checklist []domain.ChecklistItem) []domain.VerificationOutcome {
	outcomes := make([]domain.VerificationOutcome, len(checklist))

	var wg sync.WaitGroup
	for i, item := range checklist {
		wg.Add(1)
		go func(idx int, plan string) {
			defer wg.Done()
			outcomes[idx] = v.probe(ctx, profileURL, plan)
		}(i, item.Label)
	}
	wg.Wait()

	accepted := 0
	for _, outcome := range outcomes {
		if outcome.Accepted {
			accepted++
		}
	}
	v.logger.Info("insurance verification complete",
		zap.String("profile_url", profileURL),
		zap.Int("plans_checked", len(checklist)),
		zap.Int("plans_accepted", accepted),
	)

	return outcomes
}

// probe runs one plan's verification in its own tab. Every failure path
// degrades to a not-accepted outcome; the tab is closed unconditionally,
// including on panic.
func (v *Verifier) probe(ctx context.Context, profileURL, plan string) (outcome domain.VerificationOutcome) {
	outcome = domain.VerificationOutcome{Plan: plan}
	log := v.logger.With(zap.String("plan", plan))

	defer func() {
		if r := recover(); r != nil {
			log.Warn("probe recovered from panic", zap.Any("panic", r))
			outcome = domain.VerificationOutcome{Plan: plan}
		}
	}()

	select {
	case <-ctx.Done():
		log.Warn("probe skipped, run context done", zap.Error(ctx.Err()))
		return outcome
	default:
	}

	verdict, evidence, err := v.runProbe(profileURL, plan, log)
	if err != nil {
		log.Warn("probe incomplete, counting plan as not accepted", zap.Error(err))
		return outcome
	}
	if verdict == VerdictUnknown {
		log.Debug("result page matched neither acceptance nor rejection",
			zap.String("code", domain.ErrCodeClassificationAmbiguous))
	}

	log.Debug("probe classified", zap.Stringer("verdict", verdict))
	outcome.Accepted = verdict == VerdictAccepted
	outcome.Evidence = evidence
	return outcome
}

// runProbe executes the navigate → locate → submit → classify sequence.
// A step that cannot find its element or action target aborts the sequence
// with a probe-incomplete error naming the step.
func (v *Verifier) runProbe(profileURL, plan string, log *zap.Logger) (Verdict, string, error) {
	// Step 1: open.
	tab, err := v.tabs.NewTab()
	if err != nil {
		return VerdictUnknown, "", domain.ProbeIncompleteError(plan, "open tab", err)
	}
	defer tab.Close()

	if err := tab.Navigate(profileURL); err != nil {
		return VerdictUnknown, "", domain.ProbeIncompleteError(plan, "navigate", err)
	}

	// Step 2: stabilize. A quiescence timeout is downgraded to a fixed wait.
	if err := tab.WaitQuiescence(v.cfg.QuiesceTimeout); err != nil {
		tab.Wait(v.cfg.FallbackWait)
	}

	// Step 3: scroll toward the insurance section. Not finding the heading
	// is non-fatal: the input may already exist off-screen.
	v.scrollToSection(tab, log)

	// Step 4: locate the search input through the fallback chain.
	input, err := tab.FirstVisible(searchInputSelectors, v.cfg.LocatorTimeout)
	if err != nil {
		return VerdictUnknown, "", domain.ProbeIncompleteError(plan, "locate input", err)
	}

	// Step 5: submit the plan name.
	if err := v.submit(tab, input, plan); err != nil {
		return VerdictUnknown, "", domain.ProbeIncompleteError(plan, "submit query", err)
	}

	// Step 6: await the result.
	tab.Wait(v.cfg.SettleWait)
	if err := tab.WaitQuiescence(v.cfg.QuiesceTimeout); err != nil {
		tab.Wait(time.Second)
	}

	// Step 7: classify.
	content, err := tab.Content()
	if err != nil {
		return VerdictUnknown, "", domain.ProbeIncompleteError(plan, "read result", err)
	}
	verdict, evidence := Classify(content, tab.TextsOf(verifyTextSelector), plan)
	return verdict, evidence, nil
}

// scrollToSection walks down the page in fixed fractional steps until the
// section heading becomes visible or the steps run out.
func (v *Verifier) scrollToSection(tab browser.Tab, log *zap.Logger) {
	tab.ScrollToFraction(0)
	tab.Wait(500 * time.Millisecond)

	steps := v.cfg.ScrollSteps
	for step := 1; step <= steps; step++ {
		if err := tab.ScrollToFraction(float64(step) / float64(steps+1)); err != nil {
			continue
		}
		tab.Wait(800 * time.Millisecond)
		if tab.IsVisible(sectionHeadingSelector) {
			return
		}
	}
	log.Debug("insurance section heading not visible, proceeding")
}

// submit types the plan into the input and triggers the search, preferring
// the apply button and falling back to the input's implicit submit.
func (v *Verifier) submit(tab browser.Tab, input browser.Element, plan string) error {
	if err := input.Click(); err != nil {
		return err
	}
	tab.Wait(300 * time.Millisecond)
	if err := input.Clear(); err != nil {
		return err
	}
	tab.Wait(200 * time.Millisecond)
	if err := input.TypeSlowly(plan, v.cfg.TypeDelay); err != nil {
		return err
	}
	tab.Wait(800 * time.Millisecond)

	apply, err := tab.FirstVisible(applyButtonSelectors, v.cfg.LocatorTimeout)
	if err == nil {
		if err := apply.Click(); err == nil {
			return nil
		}
	}
	return input.Press("Enter")
}
