package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestSynthesizer(model *fakeModel) *Synthesizer {
	return &Synthesizer{
		LLM:            model,
		Logger:         slog.New(slog.DiscardHandler),
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		Temperature:    0.1,
		MaxTokens:      1000,
	}
}

func TestSynthesizeRetriesThenSucceeds(t *testing.T) {
	model := &fakeModel{respond: func(call int, input string) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("transient failure")
		}
		return "a cited answer (https://example.com)", nil
	}}

	s := newTestSynthesizer(model)
	draft, err := s.Synthesize(context.Background(), "q", EvidenceSet{{URL: "https://example.com"}}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 2 {
		t.Errorf("calls = %d, want 2", model.calls)
	}
	if draft == "" {
		t.Error("expected a draft")
	}
}

func TestSynthesizeExhaustionSurfacesGenerationError(t *testing.T) {
	model := &fakeModel{respond: func(call int, input string) (string, error) {
		return "", fmt.Errorf("429 rate limit exceeded")
	}}

	s := newTestSynthesizer(model)
	_, err := s.Synthesize(context.Background(), "q", nil, "", "")
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T", err)
	}
	if genErr.Kind != GenRateLimited {
		t.Errorf("kind = %q, want %q", genErr.Kind, GenRateLimited)
	}
	if model.calls != 3 {
		t.Errorf("calls = %d, want 3", model.calls)
	}
}

func TestSynthesizeEmptyChoicesIsMalformed(t *testing.T) {
	model := &fakeModel{respond: func(call int, input string) (string, error) {
		return "", nil
	}}

	s := newTestSynthesizer(model)
	_, err := s.Synthesize(context.Background(), "q", nil, "", "")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %v", err)
	}
	if genErr.Kind != GenMalformed {
		t.Errorf("kind = %q, want %q", genErr.Kind, GenMalformed)
	}
}

func TestSynthesisInputRevisesPriorDraft(t *testing.T) {
	evidence := EvidenceSet{{Kind: SourceWeb, Title: "T", Snippet: "S", URL: "https://e.test"}}

	first := buildSynthesisInput("q", evidence, "", "")
	if strings.Contains(first, "Previous draft") {
		t.Error("first pass must not reference a prior draft")
	}

	second := buildSynthesisInput("q", evidence, "old draft", "need depth")
	for _, want := range []string{"Previous draft", "old draft", "need depth", "Revise"} {
		if !strings.Contains(second, want) {
			t.Errorf("revision input missing %q", want)
		}
	}
}

func TestSynthesisInputFlagsEmptyEvidence(t *testing.T) {
	input := buildSynthesisInput("q", nil, "", "")
	if !strings.Contains(input, "unverified") {
		t.Error("empty-evidence input must instruct the unverified flag")
	}
	if strings.Contains(input, "Source 1") {
		t.Error("no source blocks expected")
	}
}

func TestClassifyGenerationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want GenerationErrorKind
	}{
		{"deadline", context.DeadlineExceeded, GenTimeout},
		{"auth status", fmt.Errorf("API returned 401 Unauthorized"), GenAuth},
		{"invalid key", fmt.Errorf("invalid api key provided"), GenAuth},
		{"rate limit", fmt.Errorf("429 Too Many Requests"), GenRateLimited},
		{"quota", fmt.Errorf("you exceeded your quota"), GenRateLimited},
		{"timeout text", fmt.Errorf("request timeout after 30s"), GenTimeout},
		{"no choices", fmt.Errorf("llm returned no choices"), GenMalformed},
		{"parse", fmt.Errorf("failed to parse completion"), GenMalformed},
		{"other", fmt.Errorf("connection refused"), GenUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyGenerationError(tt.err); got != tt.want {
				t.Errorf("classifyGenerationError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
