package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/providerlens/providerlens/internal/config"
	"github.com/providerlens/providerlens/internal/domain"
)

func newTestWebDirClient(t *testing.T, html string) *WebDirClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return NewWebDirClient(config.WebDirConfig{
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		RateLimitRPM: 6000,
	}, zap.NewNop())
}

func TestWebDirSearch_ExtractsFirstCard(t *testing.T) {
	client := newTestWebDirClient(t, `
		<html><body>
		<div data-qa-target="search-result-card">
			<h3>Dr. Sarah Johnson, MD</h3>
			<span data-qa-target="provider-address">321 Birch Rd,
				Boise, ID 83702</span>
			<p>Call (208) 555-0199 to book</p>
		</div>
		<div data-qa-target="search-result-card">
			<h3>Dr. Other Person</h3>
			<p>(208) 555-0000</p>
		</div>
		</body></html>`)

	result, err := client.Search(context.Background(), "Sarah Johnson")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Johnson, MD", result.Name)
	assert.Equal(t, "(208) 555-0199", result.Phone)
	assert.Equal(t, "321 Birch Rd, Boise, ID 83702", result.Address)
}

func TestWebDirSearch_FallbackCardSelector(t *testing.T) {
	client := newTestWebDirClient(t, `
		<html><body>
		<article class="provider-card">
			<h3>Dr. Alan Ortiz</h3>
			<address>400 Clinic Way, Boise, ID</address>
		</article>
		</body></html>`)

	result, err := client.Search(context.Background(), "Alan Ortiz")
	require.NoError(t, err)
	assert.Equal(t, "400 Clinic Way, Boise, ID", result.Address)
	assert.Empty(t, result.Phone)
}

func TestWebDirSearch_NoCards(t *testing.T) {
	client := newTestWebDirClient(t, `<html><body><p>No matches.</p></body></html>`)

	_, err := client.Search(context.Background(), "Nobody")
	assert.ErrorIs(t, err, domain.ErrNoCandidateFound)
}

func TestWebDirSearch_CardWithoutContactDetails(t *testing.T) {
	client := newTestWebDirClient(t, `
		<html><body>
		<div class="search-result-card"><h3>Dr. Empty Card</h3></div>
		</body></html>`)

	_, err := client.Search(context.Background(), "Empty Card")
	assert.ErrorIs(t, err, domain.ErrNoCandidateFound)
}
