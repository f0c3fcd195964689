package analysis

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractURLsDeduplicatesAcrossBodies(t *testing.T) {
	text := "Click here: https://example.com/login now"
	html := `<a href="https://example.com/login">Click here</a>`

	evidence := ExtractURLs(text, html)

	require.Equal(t, 1, evidence.URLCount)
	assert.Equal(t, "https://example.com/login", evidence.URLs[0].URL)
	assert.Equal(t, 1, evidence.UniqueDomains)
	assert.Equal(t, 0, evidence.SuspiciousURLCount)
}

func TestExtractURLsShortener(t *testing.T) {
	evidence := ExtractURLs("check http://bit.ly/3xYz", "")

	require.Equal(t, 1, evidence.URLCount)
	assert.True(t, evidence.URLs[0].IsShortener)
	assert.True(t, evidence.HasShorteners)
	assert.Equal(t, 1, evidence.SuspiciousURLCount)
}

func TestExtractURLsIPAddressHost(t *testing.T) {
	evidence := ExtractURLs("login at http://192.168.10.20/verify", "")

	require.Equal(t, 1, evidence.URLCount)
	record := evidence.URLs[0]
	assert.True(t, record.HasIPAddress)
	assert.True(t, evidence.HasIPURLs)
	assert.Equal(t, "192.168.10.20", record.RegisteredDomain)
	assert.Empty(t, record.TLD)
	assert.True(t, record.IsSuspicious())
}

func TestExtractURLsSuspiciousTLDAndSubdomains(t *testing.T) {
	evidence := ExtractURLs("visit http://secure.login.example.tk/account", "")

	require.Equal(t, 1, evidence.URLCount)
	record := evidence.URLs[0]
	assert.Equal(t, "tk", record.TLD)
	assert.True(t, record.IsSuspiciousTLD)
	assert.Equal(t, "example.tk", record.RegisteredDomain)
	assert.Equal(t, "secure.login", record.Subdomain)
	assert.Equal(t, 2, record.SubdomainCount)
	assert.True(t, record.IsSuspicious())
}

func TestExtractURLsHomograph(t *testing.T) {
	// Cyrillic а in place of Latin a
	evidence := ExtractURLs("http://pаypal.com/secure", "")

	require.Equal(t, 1, evidence.URLCount)
	assert.True(t, evidence.URLs[0].HasHomograph)
	assert.True(t, evidence.HasHomographs)
	assert.Equal(t, 1, evidence.SuspiciousURLCount)
}

func TestExtractURLsSchemelessWWW(t *testing.T) {
	evidence := ExtractURLs("see www.example.org/page for details", "")

	require.Equal(t, 1, evidence.URLCount)
	assert.Equal(t, "http://www.example.org/page", evidence.URLs[0].URL)
	assert.Equal(t, "www", evidence.URLs[0].Subdomain)
}

func TestExtractURLsSkipsUnparseableCandidates(t *testing.T) {
	// A host with a space survives the href regex but fails URL parsing.
	html := `<a href="http://bad host/x">x</a><a href="http://good.example.com/x">y</a>`

	evidence := ExtractURLs("", html)

	require.Equal(t, 1, evidence.URLCount)
	assert.Equal(t, "http://good.example.com/x", evidence.URLs[0].URL)
}

func TestExtractURLsDeterministicOrder(t *testing.T) {
	text := "http://zeta.example.com/a http://alpha.example.com/b http://mid.example.com/c"

	evidence := ExtractURLs(text, "")

	require.Equal(t, 3, evidence.URLCount)
	urls := make([]string, 0, 3)
	for _, record := range evidence.URLs {
		urls = append(urls, record.URL)
	}
	assert.True(t, sort.StringsAreSorted(urls), "records must be in lexicographic order, got %v", urls)
}

func TestExtractURLsLongURLIsSuspicious(t *testing.T) {
	long := "http://example.com/"
	for len(long) <= 100 {
		long += "x"
	}

	evidence := ExtractURLs(long, "")

	require.Equal(t, 1, evidence.URLCount)
	assert.Greater(t, evidence.URLs[0].URLLength, 100)
	assert.True(t, evidence.URLs[0].IsSuspicious())
}

func TestExtractURLsEmptyBodies(t *testing.T) {
	evidence := ExtractURLs("", "")

	assert.Equal(t, 0, evidence.URLCount)
	assert.Equal(t, 0, evidence.UniqueDomains)
	assert.Empty(t, evidence.URLs)
}
