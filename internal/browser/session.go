// Package browser wraps the playwright runtime behind a narrow tab-opening
// surface. Callers get a Tab per task and may never enumerate or touch tabs
// they did not open themselves.
package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/config"
)

// TabOpener spawns independent tabs inside a shared browser context. It is
// the only capability concurrent tasks receive: one probe cannot observe or
// close another probe's tab.
type TabOpener interface {
	NewTab() (Tab, error)
}

// Tab is one independent page session. All waits are bounded; Close is safe
// to call on every exit path and must always be deferred by the opener.
type Tab interface {
	// Navigate loads a URL and waits for minimal content readiness.
	Navigate(url string) error
	// WaitQuiescence waits for background loading to settle, up to timeout.
	WaitQuiescence(timeout time.Duration) error
	// Wait sleeps for a fixed settle delay.
	Wait(d time.Duration)
	// ScrollWheel scrolls the page by deltaY pixels via a wheel gesture.
	ScrollWheel(deltaY float64)
	// ScrollToFraction scrolls to fraction f of the full page height.
	ScrollToFraction(f float64) error
	// IsVisible reports whether the first element matching selector is visible.
	IsVisible(selector string) bool
	// FirstVisible resolves the first selector in the ordered chain whose
	// element becomes visible within timeout per attempt.
	FirstVisible(selectors []string, timeout time.Duration) (Element, error)
	// Content returns the current serialized document.
	Content() (string, error)
	// TextsOf returns the text of every element matching selector.
	TextsOf(selector string) []string
	// Close releases the tab. Idempotent.
	Close()
}

// Element is an input or control located on a Tab.
type Element interface {
	Click() error
	Clear() error
	TypeSlowly(text string, delay time.Duration) error
	Press(key string) error
}

// Session owns one playwright runtime, one browser, and one shared browser
// context for the lifetime of a run. Sharing the context keeps cookies and
// storage warm across tabs; each tab still has independent navigation state.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	ctx     playwright.BrowserContext
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewSession starts playwright, launches Chromium, and opens the shared
// context. The caller must Close the session when the run ends.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(cfg.UserAgent),
		Locale:    playwright.String(cfg.Locale),
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	return &Session{
		pw:      pw,
		browser: browser,
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// NewTab opens an independent tab in the shared context.
func (s *Session) NewTab() (Tab, error) {
	page, err := s.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	return &playwrightTab{page: page, cfg: s.cfg}, nil
}

// Close tears down the context, browser, and playwright runtime.
func (s *Session) Close() error {
	if s.ctx != nil {
		s.ctx.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.pw != nil {
		return s.pw.Stop()
	}
	return nil
}

// playwrightTab adapts a playwright.Page to the Tab interface.
type playwrightTab struct {
	page   playwright.Page
	cfg    config.BrowserConfig
	closed bool
}

func (t *playwrightTab) Navigate(url string) error {
	_, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(t.cfg.NavTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (t *playwrightTab) WaitQuiescence(timeout time.Duration) error {
	return t.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (t *playwrightTab) Wait(d time.Duration) {
	t.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (t *playwrightTab) ScrollWheel(deltaY float64) {
	t.page.Mouse().Wheel(0, deltaY)
}

func (t *playwrightTab) ScrollToFraction(f float64) error {
	_, err := t.page.Evaluate(fmt.Sprintf("window.scrollTo(0, document.body.scrollHeight * %f)", f))
	return err
}

func (t *playwrightTab) IsVisible(selector string) bool {
	visible, err := t.page.Locator(selector).First().IsVisible()
	return err == nil && visible
}

func (t *playwrightTab) FirstVisible(selectors []string, timeout time.Duration) (Element, error) {
	var lastErr error
	for _, selector := range selectors {
		loc := t.page.Locator(selector).First()
		err := loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		})
		if err == nil {
			return &playwrightElement{loc: loc}, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no selectors given")
	}
	return nil, fmt.Errorf("no visible element for %d selectors: %w", len(selectors), lastErr)
}

func (t *playwrightTab) Content() (string, error) {
	return t.page.Content()
}

func (t *playwrightTab) TextsOf(selector string) []string {
	var texts []string
	loc := t.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return nil
	}
	for i := 0; i < count; i++ {
		if text, err := loc.Nth(i).TextContent(); err == nil {
			texts = append(texts, text)
		}
	}
	return texts
}

func (t *playwrightTab) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.page.Close()
}

// playwrightElement adapts a playwright.Locator to the Element interface.
type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Click() error {
	return e.loc.Click()
}

func (e *playwrightElement) Clear() error {
	return e.loc.Fill("")
}

func (e *playwrightElement) TypeSlowly(text string, delay time.Duration) error {
	return e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	})
}

func (e *playwrightElement) Press(key string) error {
	return e.loc.Press(key)
}
