package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const profileHTML = `
<html><body>
	<h1>Dr. Sarah K. Johnson, MD</h1>
	<div class="Specialty">Family Medicine</div>
	<address>123 Main St, Boise, ID 83702</address>
	<address>500 Annex Blvd, Meridian, ID 83642</address>
	<a href="tel:2085550142">(208) 555-0142</a>
	<ul>
		<li data-testid="insurance-item">Aetna</li>
		<li data-testid="insurance-item">Cigna</li>
		<li data-testid="insurance-item">Aetna</li>
	</ul>
	<ul>
		<li data-testid="language-item">English</li>
		<li data-testid="language-item">Spanish</li>
	</ul>
	<span class="RatingValue">4.5</span>
</body></html>`

func TestExtractProfile(t *testing.T) {
	record := ExtractProfile(parseDoc(t, profileHTML))

	assert.Equal(t, "Dr. Sarah K. Johnson, MD", record.Name)
	assert.Equal(t, "Family Medicine", record.Specialty)
	assert.Equal(t, []string{
		"123 Main St, Boise, ID 83702",
		"500 Annex Blvd, Meridian, ID 83642",
	}, record.Addresses)
	assert.Equal(t, []string{"(208) 555-0142"}, record.Phones)
	assert.Equal(t, []string{"Aetna", "Cigna"}, record.AcceptedPlans)
	assert.Equal(t, []string{"English", "Spanish"}, record.Languages)
	assert.Equal(t, "4.5", record.Rating)
}

func TestExtractProfile_MissingFieldsComeBackEmpty(t *testing.T) {
	record := ExtractProfile(parseDoc(t, `<html><body><p>Nothing useful.</p></body></html>`))

	assert.Empty(t, record.Name)
	assert.Empty(t, record.Specialty)
	assert.Empty(t, record.Addresses)
	assert.Empty(t, record.AcceptedPlans)
}

func TestProfileFetcher_Fetch(t *testing.T) {
	opener := newFakeOpener()
	url := "https://directory.example/doctor/sarah-k-johnson"
	opener.pages[url] = profileHTML

	fetcher := NewProfileFetcher(opener, zap.NewNop())
	record, err := fetcher.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah K. Johnson, MD", record.Name)
	assert.Zero(t, opener.openTabs())
}

func TestProfileFetcher_NavigationFailure(t *testing.T) {
	opener := newFakeOpener()
	url := "https://directory.example/doctor/gone"
	opener.failURLs[url] = true

	fetcher := NewProfileFetcher(opener, zap.NewNop())
	_, err := fetcher.Fetch(context.Background(), url)
	assert.Error(t, err)
	assert.Zero(t, opener.openTabs())
}
