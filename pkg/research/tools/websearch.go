package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ddgThrottle enforces one query per second globally. DuckDuckGo's lite
// endpoint starts returning 429s well below that rate.
var ddgThrottle struct {
	mu   sync.Mutex
	last time.Time
}

// WebSearch queries DuckDuckGo's HTML lite interface, which is stable enough
// to scrape and needs no API key.
type WebSearch struct {
	Client   *http.Client
	Endpoint string // overridable for tests
}

func NewWebSearch() *WebSearch {
	return &WebSearch{
		Client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: "https://lite.duckduckgo.com/lite/",
	}
}

func (w *WebSearch) Name() string { return NameWebSearch }

// Search posts the query to the lite endpoint and scrapes the result table.
// On 429 it backs off and retries a bounded number of times.
func (w *WebSearch) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	if err := w.throttle(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	var body []byte
	delay := time.Second
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := w.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("web search request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < 3 {
			resp.Body.Close()
			slog.Warn("Web search rate limited, backing off", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read search response: %w", err)
		}
		break
	}

	results := parseLiteResults(string(body), maxResults)
	slog.Info("Web search complete", "query", query, "results", len(results))
	return results, nil
}

func (w *WebSearch) throttle(ctx context.Context) error {
	ddgThrottle.mu.Lock()
	wait := time.Until(ddgThrottle.last.Add(time.Second))
	if wait > 0 {
		ddgThrottle.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		ddgThrottle.mu.Lock()
	}
	ddgThrottle.last = time.Now()
	ddgThrottle.mu.Unlock()
	return nil
}

var (
	liteLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>(.*?)</a>`)
	liteLinkAltPattern = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>(.*?)</a>`)
	liteSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([\s\S]*?)</td>`)
	anyLinkPattern     = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

// parseLiteResults extracts ranked results from the lite HTML page. The page
// is a plain table of result links and snippet cells.
func parseLiteResults(html string, maxResults int) []Result {
	matches := liteLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = liteLinkAltPattern.FindAllStringSubmatch(html, -1)
	}
	snippets := liteSnippetPattern.FindAllStringSubmatch(html, -1)

	var results []Result
	for i, m := range matches {
		if len(m) < 3 {
			continue
		}
		link := strings.TrimSpace(m[1])
		title := stripTags(m[2])
		if link == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			snippet = stripTags(snippets[i][1])
		}
		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 {
		results = parseAnyLinks(html, maxResults)
	}
	return results
}

// parseAnyLinks is the fallback when the lite markup changes: any external
// link with a plausible title counts.
func parseAnyLinks(html string, maxResults int) []Result {
	var results []Result
	seen := make(map[string]bool)
	for _, m := range anyLinkPattern.FindAllStringSubmatch(html, -1) {
		if len(m) < 3 {
			continue
		}
		link := strings.TrimSpace(m[1])
		title := stripTags(m[2])
		if len(title) < 5 || seen[link] {
			continue
		}
		if strings.Contains(link, "duckduckgo.com") ||
			strings.HasPrefix(link, "/") ||
			strings.HasPrefix(link, "#") ||
			strings.HasPrefix(link, "javascript:") {
			continue
		}
		seen[link] = true
		results = append(results, Result{Title: title, URL: link})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

// stripTags drops markup and decodes the handful of entities the lite page uses.
func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
