package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newWikiTestServer(t *testing.T, extractsOK bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("list") {
		case "search":
			w.Write([]byte(`{"query":{"search":[
				{"title":"Mercury (planet)","snippet":"<span class=\"searchmatch\">Mercury</span> is the first planet"},
				{"title":"Mercury (element)","snippet":"chemical element with symbol Hg"}
			]}}`))
		default:
			if !extractsOK {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"query":{"pages":{
				"1":{"title":"Mercury (planet)","extract":"Mercury is the smallest planet in the Solar System."},
				"2":{"title":"Mercury (element)","extract":"Mercury is a chemical element."}
			}}}`))
		}
	}))
}

func TestEncyclopediaSearch(t *testing.T) {
	srv := newWikiTestServer(t, true)
	defer srv.Close()

	enc := &Encyclopedia{Client: srv.Client(), Endpoint: srv.URL, PageBase: "https://en.wikipedia.org/wiki/"}
	results, err := enc.Search(context.Background(), "mercury", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Mercury (planet)" {
		t.Errorf("first title = %q, want search ranking preserved", results[0].Title)
	}
	if results[0].Snippet != "Mercury is the smallest planet in the Solar System." {
		t.Errorf("first snippet = %q, want intro extract", results[0].Snippet)
	}
	want := "https://en.wikipedia.org/wiki/Mercury_(planet)"
	if results[0].URL != want {
		t.Errorf("URL = %q, want %q", results[0].URL, want)
	}
}

func TestEncyclopediaFallsBackToSearchSnippet(t *testing.T) {
	srv := newWikiTestServer(t, false)
	defer srv.Close()

	enc := &Encyclopedia{Client: srv.Client(), Endpoint: srv.URL, PageBase: "https://en.wikipedia.org/wiki/"}
	results, err := enc.Search(context.Background(), "mercury", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Snippet != "Mercury is the first planet" {
		t.Errorf("snippet = %q, want stripped search snippet", results[0].Snippet)
	}
}

func TestEncyclopediaNoPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"search":[]}}`))
	}))
	defer srv.Close()

	enc := &Encyclopedia{Client: srv.Client(), Endpoint: srv.URL, PageBase: "https://en.wikipedia.org/wiki/"}
	results, err := enc.Search(context.Background(), "zzzznonsense", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want none", len(results))
	}
}
