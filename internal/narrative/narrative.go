// Package narrative turns stage outputs into coaching prose through an
// external text generation capability.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedutinova/speechcoach/internal/common"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are an expert speech coach analyzing audio recordings. " +
	"Provide detailed, actionable insights based on the metrics provided."

// ReasonNotConfigured marks a narrative skipped because no capability is set.
const ReasonNotConfigured = "not configured"

type Request struct {
	System string
	Prompt string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Generation struct {
	Text  string
	Model string
	Usage Usage
}

// Capability generates text for a prompt.
type Capability interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// Narrative is either generated text with its metadata or an unavailable
// marker carrying the reason.
type Narrative struct {
	Available bool   `json:"available"`
	Text      string `json:"text,omitempty"`
	Model     string `json:"model,omitempty"`
	Usage     *Usage `json:"usage,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func Unavailable(reason string) Narrative {
	return Narrative{Reason: reason}
}

type Synthesizer struct {
	capability Capability
	timeout    time.Duration
}

// NewSynthesizer wraps capability, which may be nil. A zero timeout means
// one minute.
func NewSynthesizer(capability Capability, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Synthesizer{capability: capability, timeout: timeout}
}

// Configured reports whether a capability is attached.
func (s *Synthesizer) Configured() bool {
	return s != nil && s.capability != nil
}

// Synthesize never returns a zero Narrative. A non-nil error is always a
// capability error and comes with an unavailable narrative.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (Narrative, error) {
	if !s.Configured() {
		return Unavailable(ReasonNotConfigured), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	gen, err := s.capability.Generate(ctx, Request{System: SystemPrompt, Prompt: BuildPrompt(in)})
	latency := time.Since(start)
	if err == nil && gen.Text == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		slog.Warn("narrative synthesis failed", "error", err, "latency_ms", latency.Milliseconds())
		return Unavailable(err.Error()), common.WrapCapability("narrative", err)
	}

	usage := gen.Usage
	return Narrative{
		Available: true,
		Text:      gen.Text,
		Model:     gen.Model,
		Usage:     &usage,
		LatencyMs: latency.Milliseconds(),
	}, nil
}
