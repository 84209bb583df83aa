package research

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/mikeboe/answer-agent/pkg/config"
	"github.com/mikeboe/answer-agent/pkg/research/tools"
)

// Aggregator fans out to the enabled lookup tools, merges their results into
// a bounded evidence set, and never fails: every tool error is absorbed and
// recorded.
type Aggregator struct {
	Web          tools.Searcher
	Encyclopedia tools.Searcher
	Fetcher      tools.ContentFetcher
	Logger       *slog.Logger
}

// Gather runs one aggregation pass. Enabled tools are invoked at most once
// each, concurrently, every call under its own timeout. A failed or timed-out
// tool contributes nothing; partial success is the normal path. The returned
// set may be empty, which is not an error.
func (a *Aggregator) Gather(ctx context.Context, query, hint string, cfg *config.Config) (EvidenceSet, []ToolFailure) {
	effective := refineQuery(query, hint)

	type slot struct {
		kind    SourceKind
		name    string
		search  tools.Searcher
		results []tools.Result
		err     error
	}

	// Fixed slot order keeps evidence ordering deterministic even though the
	// tools run concurrently.
	slots := []*slot{
		{kind: SourceEncyclopedia, name: tools.NameEncyclopedia, search: a.Encyclopedia},
		{kind: SourceWeb, name: tools.NameWebSearch, search: a.Web},
	}

	var wg sync.WaitGroup
	for _, s := range slots {
		tc := cfg.Tool(s.name)
		if !tc.Enabled || s.search == nil {
			continue
		}
		if s.kind == SourceEncyclopedia && hintWantsRecency(hint) {
			// Encyclopedia articles lag; a recency hint restricts the pass
			// to web results.
			a.Logger.Info("Skipping encyclopedia for recency hint", "hint", hint)
			continue
		}

		wg.Add(1)
		go func(s *slot, tc config.ToolConfig) {
			defer wg.Done()
			toolCtx, cancel := context.WithTimeout(ctx, tc.Timeout)
			defer cancel()
			s.results, s.err = s.search.Search(toolCtx, effective, tc.MaxResults)
		}(s, tc)
	}
	wg.Wait()

	var failures []ToolFailure
	var set EvidenceSet
	seen := make(map[string]bool)

	for _, s := range slots {
		if s.err != nil {
			a.Logger.Warn("Lookup tool failed", "tool", s.name, "error", s.err)
			failures = append(failures, ToolFailure{Tool: s.name, Error: s.err.Error()})
			continue
		}
		for _, r := range s.results {
			key := normalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			set = append(set, EvidenceItem{
				Kind:    s.kind,
				Title:   r.Title,
				Snippet: truncateRunes(r.Snippet, cfg.Research.MaxEvidenceTextLen),
				URL:     r.URL,
			})
			if len(set) >= cfg.Research.MaxEvidenceItems {
				break
			}
		}
		if len(set) >= cfg.Research.MaxEvidenceItems {
			break
		}
	}

	failures = append(failures, a.enrichWebResults(ctx, set, cfg)...)

	a.Logger.Info("Gathering complete", "evidence", len(set), "failures", len(failures))
	return set, failures
}

// enrichWebResults fetches and extracts full text for the leading web items.
// Extraction failures leave the snippet in place and are recorded only.
func (a *Aggregator) enrichWebResults(ctx context.Context, set EvidenceSet, cfg *config.Config) []ToolFailure {
	tc := cfg.Tool(tools.NameFetchContent)
	if !tc.Enabled || a.Fetcher == nil || cfg.Research.FetchTopResults <= 0 {
		return nil
	}

	var failures []ToolFailure
	fetched := 0
	for i := range set {
		if fetched >= cfg.Research.FetchTopResults {
			break
		}
		if set[i].Kind != SourceWeb || set[i].URL == "" {
			continue
		}
		fetched++

		maxLen := tc.MaxLength
		if maxLen > cfg.Research.MaxEvidenceTextLen {
			maxLen = cfg.Research.MaxEvidenceTextLen
		}
		fetchCtx, cancel := context.WithTimeout(ctx, tc.Timeout)
		text, err := a.Fetcher.Fetch(fetchCtx, set[i].URL, maxLen)
		cancel()
		if err != nil {
			a.Logger.Warn("Content extraction failed", "url", set[i].URL, "error", err)
			failures = append(failures, ToolFailure{Tool: tools.NameFetchContent, Error: err.Error()})
			continue
		}
		set[i].ExtractedText = text
	}
	return failures
}

// refineQuery folds the evaluator's hint into the search terms.
func refineQuery(query, hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" || hint == hintBroadenSearch {
		return query
	}
	return query + " " + hint
}

var recencyWords = []string{"recent", "current", "latest", "today", "news", "up to date", "up-to-date"}

func hintWantsRecency(hint string) bool {
	h := strings.ToLower(hint)
	for _, w := range recencyWords {
		if strings.Contains(h, w) {
			return true
		}
	}
	return false
}

// normalizeURL produces the deduplication key for an evidence URL: scheme
// differences, default ports, fragments, and trailing slashes do not make two
// URLs distinct sources.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	path := strings.TrimSuffix(u.Path, "/")

	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
