package ai

import "context"

// Provider is a text-in/text-out generative model client. One call per
// prompt; the caller owns parsing of whatever comes back.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}
