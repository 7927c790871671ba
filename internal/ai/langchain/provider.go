package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Options selects and configures the underlying langchain model backend.
type Options struct {
	Backend     string // "googleai" or "openai"
	Model       string
	APIKey      string
	Temperature float64
}

// Provider implements ai.Provider on top of langchaingo abstractions so the
// pipeline stays model-agnostic.
type Provider struct {
	llm         llms.Model
	backend     string
	model       string
	temperature float64
}

// New constructs a provider for the configured backend.
func New(ctx context.Context, opts Options) (*Provider, error) {
	var (
		model llms.Model
		err   error
	)

	switch opts.Backend {
	case "googleai", "gemini":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(opts.APIKey),
			googleai.WithDefaultModel(opts.Model),
		)
	case "openai":
		model, err = openai.New(
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported model backend: %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s model: %w", opts.Backend, err)
	}

	return &Provider{
		llm:         model,
		backend:     opts.Backend,
		model:       opts.Model,
		temperature: opts.Temperature,
	}, nil
}

// Complete sends one prompt and returns the raw text response.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt,
		llms.WithTemperature(p.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("model completion: %w", err)
	}
	return response, nil
}

// Name identifies the backend and model for logging.
func (p *Provider) Name() string {
	return p.backend + "/" + p.model
}
