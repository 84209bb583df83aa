package research

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Evaluator decides whether the current draft adequately answers the query.
// The default policy delegates the judgment to the backend; the deterministic
// fallback policy keeps the loop verdict independent of a live model. Neither
// path can fail hard: anything unparseable counts as sufficient so the loop
// always terminates.
type Evaluator struct {
	LLM             llms.Model
	Logger          *slog.Logger
	UseLLM          bool
	MinAnswerLength int
}

// Evaluate returns the sufficiency verdict and an optional refinement hint
// for the next gathering pass.
func (ev *Evaluator) Evaluate(ctx context.Context, query, draft string, evidence EvidenceSet) (bool, string) {
	if !ev.UseLLM || ev.LLM == nil {
		return ev.fallback(draft, evidence)
	}

	resp, err := ev.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, evaluationSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildEvaluationInput(query, draft, evidence)),
	})
	if err != nil {
		ev.Logger.Warn("Sufficiency judgment failed, using fallback policy", "error", err)
		return ev.fallback(draft, evidence)
	}
	if len(resp.Choices) == 0 {
		ev.Logger.Warn("Sufficiency judgment returned no choices, defaulting to sufficient")
		return true, ""
	}

	return parseVerdict(resp.Choices[0].Content, ev.Logger)
}

// parseVerdict reads the structured yes/no plus hint from the judgment
// response. An unrecognized response defaults to sufficient.
func parseVerdict(content string, logger *slog.Logger) (bool, string) {
	upper := strings.ToUpper(content)

	if idx := strings.Index(upper, markerNeedsMore); idx >= 0 {
		hint := content[idx+len(markerNeedsMore):]
		hint = strings.TrimLeft(hint, ":-– \t\n")
		if nl := strings.IndexByte(hint, '\n'); nl >= 0 {
			hint = hint[:nl]
		}
		return false, strings.TrimSpace(hint)
	}
	if strings.Contains(upper, markerSufficient) {
		return true, ""
	}

	logger.Warn("Unparseable sufficiency verdict, defaulting to sufficient", "response", truncateRunes(content, 120))
	return true, ""
}

// fallback is the deterministic policy: sufficient when there is evidence,
// the draft is long enough, and it carries at least one citation marker.
func (ev *Evaluator) fallback(draft string, evidence EvidenceSet) (bool, string) {
	if !evidence.Empty() && len(draft) >= ev.MinAnswerLength && hasCitation(draft) {
		return true, ""
	}
	return false, hintBroadenSearch
}

func hasCitation(draft string) bool {
	return strings.Contains(draft, "http://") || strings.Contains(draft, "https://")
}
