package tools

import "context"

// Tool names as they appear in configuration. The set is closed: the config
// layer rejects anything else, and dispatch is a static mapping rather than a
// runtime lookup.
const (
	NameWebSearch    = "web_search"
	NameFetchContent = "fetch_content"
	NameEncyclopedia = "encyclopedia"
)

// Result is a single ranked hit from a lookup tool.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher is the capability interface shared by the web and encyclopedia
// lookups. Implementations are stateless and safe for concurrent use.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// ContentFetcher extracts readable plain text from a URL.
type ContentFetcher interface {
	Name() string
	Fetch(ctx context.Context, url string, maxLength int) (string, error)
}
