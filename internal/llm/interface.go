package llm

import "context"

// Client is the uniform call contract every provider adapter implements.
type Client interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// Request is one chat-style generation call.
type Request struct {
	// Model overrides the adapter's default model when non-empty.
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider to bias its reply toward a valid JSON object.
	JSON bool
}
