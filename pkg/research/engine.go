package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/answer-agent/pkg/config"
	"github.com/mikeboe/answer-agent/pkg/research/tools"
)

// State names the phases of the iteration controller.
type State string

const (
	StateStart        State = "start"
	StateGathering    State = "gathering"
	StateSynthesizing State = "synthesizing"
	StateEvaluating   State = "evaluating"
	StateDone         State = "done"
)

// Engine is the iteration controller: it sequences gather, synthesize, and
// evaluate for one query, owns the loop bound, and decides continue or stop.
// One engine instance serves one query at a time; concurrent queries get
// independent instances.
type Engine struct {
	Aggregator  *Aggregator
	Synthesizer *Synthesizer
	Evaluator   *Evaluator
	Config      *config.Config
	Logger      *slog.Logger

	// OnStateChange, when set, observes every controller transition.
	OnStateChange func(state State, iteration int)

	state State
}

// NewEngine wires the controller against the real lookup tools and the given
// generation backend, using one configuration snapshot for its whole life.
func NewEngine(cfg *config.Config, model llms.Model) *Engine {
	logger := slog.Default()
	return &Engine{
		Aggregator: &Aggregator{
			Web:          tools.NewWebSearch(),
			Encyclopedia: tools.NewEncyclopedia(),
			Fetcher:      tools.NewFetcher(),
			Logger:       logger,
		},
		Synthesizer: &Synthesizer{
			LLM:            model,
			Logger:         logger,
			MaxRetries:     cfg.LLM.MaxRetries,
			RetryBaseDelay: cfg.LLM.RetryBaseDelay,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxTokens,
		},
		Evaluator: &Evaluator{
			LLM:             model,
			Logger:          logger,
			UseLLM:          cfg.Research.UseLLMEvaluator,
			MinAnswerLength: cfg.Research.MinAnswerLength,
		},
		Config: cfg,
		Logger: logger,
		state:  StateStart,
	}
}

// State reports the controller's current phase.
func (e *Engine) State() State { return e.state }

// SetLogger routes the whole cycle's logging through l, components included.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.Logger = l
	if e.Aggregator != nil {
		e.Aggregator.Logger = l
	}
	if e.Synthesizer != nil {
		e.Synthesizer.Logger = l
	}
	if e.Evaluator != nil {
		e.Evaluator.Logger = l
	}
}

func (e *Engine) transition(s State, iteration int) {
	e.state = s
	e.Logger.Info("Controller transition", "state", s, "iteration", iteration)
	if e.OnStateChange != nil {
		e.OnStateChange(s, iteration)
	}
}

// Run executes the research cycle for one query and always produces a usable
// result: lookup failures degrade evidence quality, and even generation
// backend exhaustion yields a degraded answer assembled from raw evidence.
// The loop halts after at most MaxIterations passes regardless of verdicts.
func (e *Engine) Run(ctx context.Context, query string) *ResearchResult {
	e.Logger.Info("Starting research cycle", "query", query, "max_iterations", e.Config.Research.MaxIterations)

	var (
		history  []IterationRecord
		draft    string
		hint     string
		degraded bool
	)

	maxIterations := e.Config.Research.MaxIterations

	for iteration := 1; iteration <= maxIterations; iteration++ {
		iterCtx, cancel := e.iterationContext(ctx)

		e.transition(StateGathering, iteration)
		evidence, failures := e.Aggregator.Gather(iterCtx, query, hint, e.Config)

		e.transition(StateSynthesizing, iteration)
		newDraft, err := e.Synthesizer.Synthesize(iterCtx, query, evidence, draft, hint)
		if err != nil {
			cancel()
			var genErr *GenerationError
			if errors.As(err, &genErr) {
				e.Logger.Error("Generation backend exhausted, producing degraded answer", "kind", genErr.Kind, "error", genErr.Err)
			} else {
				e.Logger.Error("Synthesis failed, producing degraded answer", "error", err)
			}
			history = append(history, IterationRecord{
				Index:        iteration,
				Evidence:     evidence,
				ToolFailures: failures,
			})
			degraded = true
			break
		}
		draft = newDraft

		e.transition(StateEvaluating, iteration)
		sufficient, newHint := e.Evaluator.Evaluate(iterCtx, query, draft, evidence)
		cancel()

		history = append(history, IterationRecord{
			Index:        iteration,
			Evidence:     evidence,
			ToolFailures: failures,
			Draft:        draft,
			Sufficient:   sufficient,
			Hint:         newHint,
		})

		if sufficient {
			e.Logger.Info("Draft judged sufficient", "iteration", iteration)
			break
		}
		if iteration == maxIterations {
			e.Logger.Info("Iteration bound reached, forcing stop", "iterations", iteration)
			break
		}
		hint = newHint
	}

	final := draft
	if degraded {
		final = degradedAnswer(query, history)
	}

	e.transition(StateDone, len(history))
	return &ResearchResult{
		Query:       query,
		FinalAnswer: final,
		Degraded:    degraded,
		Iterations:  history,
		SourceURLs:  collectSourceURLs(history),
	}
}

// iterationContext applies the per-iteration wall-clock budget; a budget
// breach surfaces through the synthesizer as a timed-out generation.
func (e *Engine) iterationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := e.Config.Research.IterationBudget
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

// degradedAnswer assembles a best-effort answer purely from raw evidence
// snippets when no synthesized draft is available.
func degradedAnswer(query string, history []IterationRecord) string {
	var b strings.Builder
	b.WriteString("[DEGRADED ANSWER] The language model backend was unreachable, so this answer was assembled directly from raw source material without synthesis. Treat it as lower confidence.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", query)

	seen := make(map[string]bool)
	n := 0
	for _, rec := range history {
		for _, item := range rec.Evidence {
			key := normalizeURL(item.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			n++
			fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", n, item.Title, item.Snippet, item.URL)
		}
	}
	if n == 0 {
		b.WriteString("No external sources could be consulted either; no answer is available.\n")
	}
	return strings.TrimSpace(b.String())
}
