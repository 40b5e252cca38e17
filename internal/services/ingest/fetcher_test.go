package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>First Post</title>
      <link>https://example.com/posts/1</link>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/posts/2</link>
    </item>
  </channel>
</rss>`

func newTestFetcher() *Fetcher {
	config := common.NewDefaultConfig()
	return NewFetcher(&config.Ingest, arbor.NewLogger())
}

func TestFetchParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	fetcher := newTestFetcher()
	result := fetcher.Fetch(context.Background(), server.URL, FetchCache{})

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "First Post", result.Entries[0].Title)
	assert.Equal(t, "https://example.com/posts/1", result.Entries[0].URL)
	assert.Equal(t, DedupeHash("First Post", "https://example.com/posts/1"), result.Entries[0].DedupeHash)
	assert.Equal(t, `"v1"`, result.Cache.ETag)
	assert.False(t, result.Unchanged)
}

func TestFetchNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	fetcher := newTestFetcher()
	result := fetcher.Fetch(context.Background(), server.URL, FetchCache{ETag: `"v1"`})

	assert.True(t, result.Unchanged)
	assert.Empty(t, result.Entries)
	assert.Equal(t, `"v1"`, result.Cache.ETag)
}

func TestFetchSampleFallbackForUnreachableHTTP(t *testing.T) {
	fetcher := newTestFetcher()

	// Port 0 is never routable, so every network tier fails
	result := fetcher.Fetch(context.Background(), "http://127.0.0.1:0/feed.xml", FetchCache{})

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "Markets Steady As Traders Await Data", result.Entries[0].Title)
}

func TestFetchLocalFileHasNoSampleFallback(t *testing.T) {
	fetcher := newTestFetcher()

	result := fetcher.Fetch(context.Background(), "/nonexistent/feed.xml", FetchCache{})

	assert.Empty(t, result.Entries)
}

func TestParseBareXMLAtomEntries(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Atom Post</title>
    <link href="https://example.com/atom/1"/>
  </entry>
</feed>`

	entries := parseBareXML(atom)
	require.Len(t, entries, 1)
	assert.Equal(t, "Atom Post", entries[0].Title)
	assert.Equal(t, "https://example.com/atom/1", entries[0].URL)
}

func TestDedupeHashStable(t *testing.T) {
	a := DedupeHash("Title", "https://example.com/1")
	b := DedupeHash("Title", "https://example.com/1")
	c := DedupeHash("Title", "https://example.com/2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLooksLikeFeedURL(t *testing.T) {
	assert.True(t, looksLikeFeedURL("https://example.com/feed.xml"))
	assert.True(t, looksLikeFeedURL("https://example.com/rss"))
	assert.True(t, looksLikeFeedURL("http://example.com/atom"))
	assert.False(t, looksLikeFeedURL("https://example.com/about"))
	assert.False(t, looksLikeFeedURL("ftp://example.com/feed.xml"))
}
