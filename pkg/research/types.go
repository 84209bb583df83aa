package research

// SourceKind identifies which class of lookup produced an evidence item.
type SourceKind string

const (
	SourceWeb          SourceKind = "web"
	SourceEncyclopedia SourceKind = "encyclopedia"
)

// EvidenceItem is a single attributed snippet retrieved from an external lookup.
// Items are read-only once created; uniqueness is keyed on the normalized URL.
type EvidenceItem struct {
	Kind          SourceKind `json:"kind"`
	Title         string     `json:"title"`
	Snippet       string     `json:"snippet"`
	URL           string     `json:"url"`
	ExtractedText string     `json:"extracted_text,omitempty"`
}

// EvidenceSet is an ordered collection of evidence, insertion order matching
// retrieval order across tools. Only the aggregator mutates it.
type EvidenceSet []EvidenceItem

func (s EvidenceSet) Empty() bool { return len(s) == 0 }

// URLs returns the source URL of every item, in order.
func (s EvidenceSet) URLs() []string {
	out := make([]string, 0, len(s))
	for _, item := range s {
		out = append(out, item.URL)
	}
	return out
}

// ToolFailure records a lookup tool that failed during one aggregator pass.
// Failures degrade evidence quality but never abort the pass.
type ToolFailure struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
}

// IterationRecord captures one full gather-synthesize-evaluate pass.
// Records are immutable once the pass completes.
type IterationRecord struct {
	Index        int           `json:"index"`
	Evidence     EvidenceSet   `json:"evidence"`
	ToolFailures []ToolFailure `json:"tool_failures,omitempty"`
	Draft        string        `json:"draft"`
	Sufficient   bool          `json:"sufficient"`
	Hint         string        `json:"hint,omitempty"`
}

// ResearchResult is the terminal output of one research cycle.
type ResearchResult struct {
	Query       string            `json:"query"`
	FinalAnswer string            `json:"final_answer"`
	Degraded    bool              `json:"degraded"`
	Iterations  []IterationRecord `json:"iterations"`
	SourceURLs  []string          `json:"source_urls"`
}

// collectSourceURLs builds the union of every evidence URL across all
// iterations, first-seen order preserved.
func collectSourceURLs(iterations []IterationRecord) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, rec := range iterations {
		for _, item := range rec.Evidence {
			if item.URL == "" || seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			urls = append(urls, item.URL)
		}
	}
	return urls
}
