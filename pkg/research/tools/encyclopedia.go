package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// wikiSearchResponse holds the list=search part of a MediaWiki API response.
type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// wikiExtractResponse holds the prop=extracts part of a MediaWiki API response.
type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Encyclopedia searches Wikipedia through the MediaWiki API: one search call
// for ranked titles, one batched extracts call for intro summaries. An
// ambiguous topic simply yields its candidate titles as results instead of
// failing.
type Encyclopedia struct {
	Client   *http.Client
	Endpoint string // overridable for tests
	PageBase string // prefix for article URLs
}

func NewEncyclopedia() *Encyclopedia {
	return &Encyclopedia{
		Client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: "https://en.wikipedia.org/w/api.php",
		PageBase: "https://en.wikipedia.org/wiki/",
	}
}

func (e *Encyclopedia) Name() string { return NameEncyclopedia }

func (e *Encyclopedia) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(maxResults))
	params.Set("srprop", "snippet")
	params.Set("format", "json")

	var searchResp wikiSearchResponse
	if err := e.get(ctx, params, &searchResp); err != nil {
		return nil, fmt.Errorf("encyclopedia search failed: %w", err)
	}
	if len(searchResp.Query.Search) == 0 {
		slog.Info("Encyclopedia search returned no pages", "query", query)
		return nil, nil
	}

	titles := make([]string, 0, len(searchResp.Query.Search))
	for _, hit := range searchResp.Query.Search {
		titles = append(titles, hit.Title)
	}
	extracts := e.fetchExtracts(ctx, titles)

	results := make([]Result, 0, len(searchResp.Query.Search))
	for _, hit := range searchResp.Query.Search {
		summary := extracts[hit.Title]
		if summary == "" {
			// Extract lookup failed or the page has no intro; the stripped
			// search snippet is still a usable summary.
			summary = stripTags(hit.Snippet)
		}
		results = append(results, Result{
			Title:   hit.Title,
			URL:     e.PageBase + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_")),
			Snippet: summary,
		})
	}

	slog.Info("Encyclopedia search complete", "query", query, "results", len(results))
	return results, nil
}

// fetchExtracts loads plain-text intro summaries for a batch of titles.
// Failure here is not fatal: callers fall back to search snippets.
func (e *Encyclopedia) fetchExtracts(ctx context.Context, titles []string) map[string]string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exsentences", "3")
	params.Set("redirects", "1")
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("format", "json")

	var extractResp wikiExtractResponse
	if err := e.get(ctx, params, &extractResp); err != nil {
		slog.Warn("Encyclopedia extract lookup failed", "error", err)
		return nil
	}

	out := make(map[string]string, len(extractResp.Query.Pages))
	for _, page := range extractResp.Query.Pages {
		out[page.Title] = strings.TrimSpace(page.Extract)
	}
	return out
}

func (e *Encyclopedia) get(ctx context.Context, params url.Values, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := e.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
