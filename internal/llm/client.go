package llm

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"github.com/agenthands/storyforge/internal/errs"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse is wrapped in the provider error returned when a backend
// answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Options are the per-call generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Provider is a single text generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, user string, opts Options) (string, error)
}

// Client wraps the selected Provider with option clamping, outbound
// throttling and error normalization. It is safe for concurrent use.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewClient wraps p. requestsPerMinute <= 0 disables throttling.
func NewClient(p Provider, requestsPerMinute int) *Client {
	c := &Client{provider: p}
	if requestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return c
}

// Name reports which provider serves generation.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Generate returns the model's text for the given prompts. Every failure is an
// errs.KindProvider error.
func (c *Client) Generate(ctx context.Context, system, user string, opts Options) (string, error) {
	opts.Temperature = ClampTemperature(opts.Temperature)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", errs.Provider("AI provider request timed out", err).WithOp("llm.Generate")
		}
	}

	text, err := c.provider.Generate(ctx, system, user, opts)
	if err != nil {
		return "", c.normalize(ctx, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.Provider("AI provider returned an empty response", ErrEmptyResponse).WithOp("llm.Generate")
	}
	return text, nil
}

// Close releases the provider's resources when it holds any.
func (c *Client) Close() error {
	if cl, ok := c.provider.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *Client) normalize(ctx context.Context, err error) error {
	var e *errs.Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, ErrEmptyResponse):
		return errs.Provider("AI provider returned an empty response", err).WithOp("llm.Generate")
	case isModelNotFound(err):
		return errs.Provider(modelUnavailable(c.provider.Name()), err).WithOp("llm.Generate")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errs.Provider("AI provider request timed out", err).WithOp("llm.Generate")
	default:
		return errs.Provider("AI provider request failed", err).WithOp("llm.Generate")
	}
}

// ClampTemperature bounds t to [0,1].
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	return math.Max(0, math.Min(1, t))
}

func modelUnavailable(provider string) string {
	example := "GEMINI_MODEL=gemini-2.5-flash"
	switch provider {
	case ProviderOpenAI:
		example = "OPENAI_MODEL=gpt-4o-mini"
	case ProviderAnthropic:
		example = "ANTHROPIC_MODEL=claude-3-5-haiku-latest"
	}
	return "AI model unavailable. Check the model name configuration (e.g. " + example + ")."
}
