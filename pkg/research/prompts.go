package research

import (
	"fmt"
	"strings"
)

const synthesisSystemPrompt = `You are a research assistant that answers questions using the provided sources.

Rules:
1. Every factual claim taken from a source must cite that source's URL inline, e.g. (https://example.com/page).
2. Claims not grounded in any source must be marked as general knowledge, never presented as sourced fact.
3. If sources conflict or are uncertain, say so.
4. If no sources are provided, answer from your own knowledge and state clearly that the answer is unverified by external sources.
5. Structure the answer clearly; keep it focused on the question.`

const reviseInstruction = `Revise your previous draft rather than starting over. Keep what is correct, incorporate the new sources, and address the refinement note.`

// buildSynthesisInput assembles the user message for one generation request:
// the query, numbered source blocks, and on later passes the prior draft plus
// the refinement hint.
func buildSynthesisInput(query string, evidence EvidenceSet, prior, hint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)

	if evidence.Empty() {
		b.WriteString("No external sources are available. Answer from general knowledge and flag the answer as unverified by external sources.\n")
	} else {
		b.WriteString("Sources:\n\n")
		for i, item := range evidence {
			fmt.Fprintf(&b, "Source %d (%s)\nTitle: %s\nContent: %s\n", i+1, item.Kind, item.Title, item.Snippet)
			if item.ExtractedText != "" {
				fmt.Fprintf(&b, "Full text: %s\n", item.ExtractedText)
			}
			fmt.Fprintf(&b, "URL: %s\n\n", item.URL)
		}
	}

	if prior != "" {
		fmt.Fprintf(&b, "Previous draft:\n%s\n\n", prior)
		if hint != "" {
			fmt.Fprintf(&b, "Refinement note: %s\n\n", hint)
		}
		b.WriteString(reviseInstruction)
		b.WriteString("\n")
	}
	return b.String()
}

const evaluationSystemPrompt = `You judge whether a draft answer adequately resolves the user's question.

Consider whether it addresses all aspects of the question, with sufficient detail and accuracy, and with current information where the question needs it.

Respond with exactly one of:
SUFFICIENT
NEEDS_MORE_RESEARCH: <one short note on what further research should focus on>`

const (
	markerSufficient = "SUFFICIENT"
	markerNeedsMore  = "NEEDS_MORE_RESEARCH"
)

func buildEvaluationInput(query, draft string, evidence EvidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	fmt.Fprintf(&b, "Draft answer:\n%s\n\n", draft)
	fmt.Fprintf(&b, "Sources consulted: %d\n", len(evidence))
	return b.String()
}

// hintBroadenSearch is the fixed refinement hint of the deterministic
// evaluator policy.
const hintBroadenSearch = "broaden search"
