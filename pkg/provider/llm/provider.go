// Package llm defines the Provider interface for the language-model backends
// that voice scene participants and judge scene completion.
//
// Sceneforge only needs one-shot text completions: each participant is asked
// once per beat and answers with a single reply. Streaming and tool calling
// are deliberately absent from the interface.
//
// Implementations must be safe for concurrent use; the moderator invokes one
// completion per participant in parallel.
package llm

import "context"

// Provider is the abstraction over any text-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply.
	//
	// Returns an error if the request fails or if ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would occupy in the
	// model's context window. The estimate should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static limits of the underlying model.
	Capabilities() ModelCapabilities
}

// EstimateTokens is the shared ~4 characters per token heuristic used by
// providers without a local tokenizer. Each message adds a fixed overhead for
// role and formatting tokens.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}
