package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const literesultsPage = `<html><body><table>
<tr><td><a rel="nofollow" href="https://go.dev/" class='result-link'>The Go Programming <b>Language</b></a></td></tr>
<tr><td class='result-snippet'>Go is an open source programming language &amp; toolchain.</td></tr>
<tr><td><a rel="nofollow" href="https://pkg.go.dev/" class='result-link'>Go Packages</a></td></tr>
<tr><td class='result-snippet'>Discover <b>packages</b> for Go.</td></tr>
<tr><td><a rel="nofollow" href="https://go.dev/doc/" class='result-link'>Documentation</a></td></tr>
<tr><td class='result-snippet'>Official documentation.</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results := parseLiteResults(literesultsPage, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].URL != "https://go.dev/" {
		t.Errorf("first URL = %q", results[0].URL)
	}
	if results[0].Title != "The Go Programming Language" {
		t.Errorf("first title = %q, want tags stripped", results[0].Title)
	}
	if results[0].Snippet != "Go is an open source programming language & toolchain." {
		t.Errorf("first snippet = %q, want entity decoded", results[0].Snippet)
	}
	if results[1].URL != "https://pkg.go.dev/" {
		t.Errorf("second URL = %q", results[1].URL)
	}
}

func TestParseLiteResultsFallsBackToAnyLinks(t *testing.T) {
	page := `<html><body>
<a href="/settings">ignore internal</a>
<a href="https://duckduckgo.com/about">ignore self</a>
<a href="https://example.org/article">A relevant article</a>
</body></html>`

	results := parseLiteResults(page, 5)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].URL != "https://example.org/article" {
		t.Errorf("URL = %q", results[0].URL)
	}
}

func TestWebSearchAgainstTestServer(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		gotQuery = r.FormValue("q")
		w.Write([]byte(literesultsPage))
	}))
	defer srv.Close()

	ws := &WebSearch{Client: srv.Client(), Endpoint: srv.URL}
	results, err := ws.Search(context.Background(), "golang", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "golang" {
		t.Errorf("posted query = %q", gotQuery)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestWebSearchRejectsEmptyQuery(t *testing.T) {
	ws := &WebSearch{Client: &http.Client{Timeout: time.Second}, Endpoint: "http://invalid.test"}
	if _, err := ws.Search(context.Background(), "   ", 3); err == nil {
		t.Error("expected an error for a blank query")
	}
}
