package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Fetcher downloads a page and extracts its readable text, markup stripped.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *Fetcher) Name() string { return NameFetchContent }

// Fetch retrieves the URL and runs readability extraction over the HTML,
// keeping the leading maxLength runes. Content is typically front-loaded, so
// truncating the tail loses the least relevant material.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}
	if maxLength <= 0 {
		maxLength = 2000
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", trimmed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	// Cap the body read; pathological pages should not blow up memory.
	body := io.LimitReader(resp.Body, 2<<20)

	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}

	text := collapseWhitespace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", trimmed)
	}

	runes := []rune(text)
	if len(runes) > maxLength {
		text = string(runes[:maxLength]) + "..."
	}
	return text, nil
}

var (
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

func collapseWhitespace(s string) string {
	s = spaceRuns.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
