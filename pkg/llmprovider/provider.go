// Package llmprovider declares the LLM provider contract the core
// consumes, plus OpenAICompatible, a client that relays requests to an
// OpenAI-style endpoint (per spec.md §1 Non-goals: the core does not run
// model inference or choose prompt text). Agent bodies are handed
// a Provider; everything downstream of the raw string it returns --
// schema validation, scope evaluation, determinism checks, hashing -- is
// the Envelope Runtime's and Agent Host's job, not the provider's.
package llmprovider

import "context"

// Request is the input bundle for one completion call. Timeouts and
// retries are the caller's concern, not the provider's: a Provider
// implementation should fail fast on ctx cancellation and never retry
// silently underneath the Agent Host.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	Model        string
}

// Usage carries optional token accounting, surfaced for budget/cost
// tracking but never consulted by the core's correctness logic.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider's raw output. Content is untyped text; the
// Envelope Runtime is solely responsible for parsing and validating it.
type Response struct {
	Content string
	Usage   *Usage
}

// Provider is the narrow interface the core consumes. OpenAICompatible in
// this package is the implementation shipped with the module; tests use
// stub implementations.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to Provider, mirroring the adapter pattern
// used for http.HandlerFunc; handy for wiring a deterministic stub in
// tests without a struct.
type Func func(ctx context.Context, req Request) (*Response, error)

func (f Func) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
