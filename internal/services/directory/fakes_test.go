package directory

import (
	"fmt"
	"sync"
	"time"

	"github.com/providerlens/providerlens/internal/browser"
)

// fakeOpener serves canned HTML per URL through fake tabs. Navigation to a
// URL in failURLs errors; navigation elsewhere succeeds with empty content.
type fakeOpener struct {
	mu       sync.Mutex
	pages    map[string]string
	failURLs map[string]bool
	openErr  error
	opened   int
	closed   int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		pages:    make(map[string]string),
		failURLs: make(map[string]bool),
	}
}

func (o *fakeOpener) NewTab() (browser.Tab, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opened++
	return &fakeTab{opener: o}, nil
}

func (o *fakeOpener) openTabs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened - o.closed
}

type fakeTab struct {
	opener *fakeOpener
	url    string
	closed bool
}

func (t *fakeTab) Navigate(url string) error {
	t.opener.mu.Lock()
	defer t.opener.mu.Unlock()
	if t.opener.failURLs[url] {
		return fmt.Errorf("navigation refused for %s", url)
	}
	t.url = url
	return nil
}

func (t *fakeTab) WaitQuiescence(time.Duration) error { return nil }
func (t *fakeTab) Wait(time.Duration)                 {}
func (t *fakeTab) ScrollWheel(float64)                {}
func (t *fakeTab) ScrollToFraction(float64) error     { return nil }
func (t *fakeTab) IsVisible(string) bool              { return false }

func (t *fakeTab) FirstVisible([]string, time.Duration) (browser.Element, error) {
	return nil, fmt.Errorf("no elements in fake tab")
}

func (t *fakeTab) Content() (string, error) {
	t.opener.mu.Lock()
	defer t.opener.mu.Unlock()
	return t.opener.pages[t.url], nil
}

func (t *fakeTab) TextsOf(string) []string { return nil }

func (t *fakeTab) Close() {
	t.opener.mu.Lock()
	defer t.opener.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.opener.closed++
}
