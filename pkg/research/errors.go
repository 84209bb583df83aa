package research

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// GenerationErrorKind distinguishes backend failure classes.
type GenerationErrorKind string

const (
	GenAuth        GenerationErrorKind = "auth"
	GenRateLimited GenerationErrorKind = "rate_limited"
	GenTimeout     GenerationErrorKind = "timeout"
	GenMalformed   GenerationErrorKind = "malformed_response"
	GenUnavailable GenerationErrorKind = "unavailable"
)

// GenerationError is the only failure that escalates to the engine. It means
// the generation backend could not produce a usable draft, retries included.
type GenerationError struct {
	Kind GenerationErrorKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// classifyGenerationError maps a backend error to a kind. Classification is
// best effort: provider SDKs surface HTTP status only in the error text.
func classifyGenerationError(err error) GenerationErrorKind {
	if err == nil {
		return GenMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return GenTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return GenTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return GenAuth
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return GenRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return GenTimeout
	case strings.Contains(msg, "no choices") || strings.Contains(msg, "empty completion") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "parse"):
		return GenMalformed
	default:
		return GenUnavailable
	}
}
