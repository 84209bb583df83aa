package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Synthesizer turns a query plus gathered evidence into a cited draft answer
// by calling the generation backend. Backend failures are retried with linear
// backoff; exhaustion surfaces as a GenerationError.
type Synthesizer struct {
	LLM            llms.Model
	Logger         *slog.Logger
	MaxRetries     int
	RetryBaseDelay time.Duration
	Temperature    float64
	MaxTokens      int
}

// Synthesize builds one generation request from the query, the evidence set,
// and on later passes the prior draft plus refinement hint, instructing the
// backend to revise rather than restart.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, evidence EvidenceSet, prior, hint string) (string, error) {
	input := buildSynthesisInput(query, evidence, prior, hint)

	content, err := s.generateWithRetry(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, synthesisSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// generateWithRetry calls the backend up to MaxRetries times with linear
// backoff. A context cancellation or deadline stops the retries immediately.
func (s *Synthesizer) generateWithRetry(ctx context.Context, prompts []llms.MessageContent) (string, error) {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := s.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			s.Logger.Warn("Retrying generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", &GenerationError{Kind: GenTimeout, Err: ctx.Err()}
			case <-time.After(baseDelay * time.Duration(i)):
			}
		}

		resp, err := s.LLM.GenerateContent(ctx, prompts,
			llms.WithTemperature(s.Temperature),
			llms.WithMaxTokens(s.MaxTokens),
		)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}
		return resp.Choices[0].Content, nil
	}

	return "", &GenerationError{
		Kind: classifyGenerationError(lastErr),
		Err:  fmt.Errorf("exhausted %d attempts: %w", maxRetries, lastErr),
	}
}
