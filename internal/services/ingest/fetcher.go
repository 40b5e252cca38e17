package ingest

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
)

//go:embed assets/sample_feed.xml
var sampleFeedXML string

// FeedEntry is one parsed feed item
type FeedEntry struct {
	Title       string
	URL         string
	Author      string
	PublishedAt *time.Time
	DedupeHash  string
}

// FetchCache carries the conditional-fetch headers between runs
type FetchCache struct {
	ETag         string
	LastModified string
}

// FetchResult is the outcome of one fetch attempt. Unchanged means the
// endpoint answered 304 and the cache headers are still valid.
type FetchResult struct {
	Entries         []FeedEntry
	Cache           FetchCache
	DiscoveredFeeds []string
	Unchanged       bool
}

// Fetcher retrieves and parses feeds with a fallback chain. Errors are
// absorbed at every tier; failure surfaces only as an empty result.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	maxBody   int
	logger    arbor.ILogger
}

// NewFetcher creates a new feed fetcher
func NewFetcher(config *common.IngestConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: config.RequestTimeout},
		parser:    gofeed.NewParser(),
		userAgent: config.UserAgent,
		maxBody:   config.MaxBodySize,
		logger:    logger,
	}
}

// DedupeHash is the idempotency key for one entry: hex(sha256(title+url))
func DedupeHash(title, url string) string {
	sum := sha256.Sum256([]byte(title + url))
	return hex.EncodeToString(sum[:])
}

// Fetch resolves entries for an endpoint, trying each tier only when the
// previous one yields zero entries:
// feed parser with conditional headers, raw HTTP GET, local XML file,
// bundled sample feed for http(s) endpoints.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, cache FetchCache) FetchResult {
	isHTTP := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")

	if isHTTP {
		result, ok := f.fetchConditional(ctx, endpoint, cache)
		if ok {
			return result
		}

		if result := f.fetchRaw(ctx, endpoint); len(result.Entries) > 0 {
			return result
		}
	} else {
		if result := f.fetchLocalFile(endpoint); len(result.Entries) > 0 {
			return result
		}
	}

	if isHTTP {
		f.logger.Debug().Str("endpoint", endpoint).Msg("All fetch tiers empty, using bundled sample feed")
		return f.parseBody(sampleFeedXML, FetchCache{})
	}

	return FetchResult{Cache: cache}
}

// fetchConditional is the primary tier: HTTP GET with conditional headers,
// body parsed by the feed library. Returns ok=false to push to the next tier.
func (f *Fetcher) fetchConditional(ctx context.Context, endpoint string, cache FetchCache) (FetchResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FetchResult{}, false
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if cache.ETag != "" {
		req.Header.Set("If-None-Match", cache.ETag)
	}
	if cache.LastModified != "" {
		req.Header.Set("If-Modified-Since", cache.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Feed request failed")
		return FetchResult{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{Cache: cache, Unchanged: true}, true
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Debug().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("Feed request returned non-OK status")
		return FetchResult{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxBody)))
	if err != nil {
		return FetchResult{}, false
	}

	newCache := FetchCache{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	result := f.parseBody(string(body), newCache)
	if len(result.Entries) == 0 {
		return FetchResult{}, false
	}
	return result, true
}

// fetchRaw retries the endpoint without conditional headers, in case the
// upstream mishandles them, and re-parses the body.
func (f *Fetcher) fetchRaw(ctx context.Context, endpoint string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FetchResult{}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxBody)))
	if err != nil {
		return FetchResult{}
	}

	return f.parseBody(string(body), FetchCache{})
}

// parseBody parses a feed document with the feed library and falls back to
// the minimal XML scanner when the library finds nothing.
func (f *Fetcher) parseBody(body string, cache FetchCache) FetchResult {
	feed, err := f.parser.ParseString(body)
	if err != nil || feed == nil || len(feed.Items) == 0 {
		entries := parseBareXML(body)
		return FetchResult{Entries: entries, Cache: cache}
	}

	result := FetchResult{Cache: cache}
	seen := make(map[string]bool)

	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		entry := FeedEntry{
			Title:       title,
			URL:         link,
			PublishedAt: item.PublishedParsed,
			DedupeHash:  DedupeHash(title, link),
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		result.Entries = append(result.Entries, entry)

		for _, enc := range item.Links {
			if looksLikeFeedURL(enc) && !seen[enc] {
				seen[enc] = true
				result.DiscoveredFeeds = append(result.DiscoveredFeeds, enc)
			}
		}
	}

	if feed.FeedLink != "" && looksLikeFeedURL(feed.FeedLink) && !seen[feed.FeedLink] {
		result.DiscoveredFeeds = append(result.DiscoveredFeeds, feed.FeedLink)
	}

	return result
}

// fetchLocalFile reads a filesystem path and scans it for item/entry elements
func (f *Fetcher) fetchLocalFile(path string) FetchResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FetchResult{}
	}
	return f.parseBody(string(data), FetchCache{})
}

func looksLikeFeedURL(url string) bool {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	return strings.HasSuffix(lower, ".xml") ||
		strings.HasSuffix(lower, ".rss") ||
		strings.HasSuffix(lower, ".atom") ||
		strings.Contains(lower, "/rss") ||
		strings.Contains(lower, "/atom") ||
		strings.Contains(lower, "/feed")
}

// xmlLink captures both RSS text links and Atom href attributes
type xmlLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

// xmlItem covers both RSS <item> and Atom <entry> shapes
type xmlItem struct {
	Title string    `xml:"title"`
	Links []xmlLink `xml:"link"`
}

type xmlFeed struct {
	Items   []xmlItem `xml:"channel>item"`
	Entries []xmlItem `xml:"entry"`
}

// parseBareXML is the last-resort parser for item/entry elements
func parseBareXML(body string) []FeedEntry {
	var doc xmlFeed
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil
	}

	raw := append(doc.Items, doc.Entries...)
	entries := make([]FeedEntry, 0, len(raw))
	for _, item := range raw {
		title := strings.TrimSpace(item.Title)
		link := ""
		for _, l := range item.Links {
			if text := strings.TrimSpace(l.Text); text != "" {
				link = text
				break
			}
			if href := strings.TrimSpace(l.Href); href != "" {
				link = href
				break
			}
		}
		if title == "" || link == "" {
			continue
		}
		entries = append(entries, FeedEntry{
			Title:      title,
			URL:        link,
			DedupeHash: DedupeHash(title, link),
		})
	}
	return entries
}
