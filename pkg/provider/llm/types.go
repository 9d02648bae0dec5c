package llm

import "strings"

// Roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a completion request.
type Message struct {
	// Role is one of [RoleSystem], [RoleUser], or [RoleAssistant].
	Role string

	// Content is the text of the message.
	Content string

	// Name optionally identifies the speaker in multi-party prompts.
	Name string
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is injected before Messages. Providers without a dedicated
	// system field prepend it as a system-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// Temperature controls randomness in [0.0, 2.0]. Zero keeps the provider
	// default.
	Temperature float64

	// MaxTokens caps the reply length. Zero keeps the provider default.
	MaxTokens int
}

// Usage is token accounting for one request/response pair.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// CompletionResponse is the full reply of a [Provider.Complete] call.
type CompletionResponse struct {
	// Content is the reply text. It may be empty.
	Content string

	// FinishReason is the backend's stop reason, e.g. "stop" or "length".
	FinishReason string

	Usage Usage
}

// ModelCapabilities describes static model limits.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input plus output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens generated in one completion.
	MaxOutputTokens int
}

// capabilityRule maps a model-name prefix to its limits.
type capabilityRule struct {
	prefix string
	caps   ModelCapabilities
}

// knownModels is checked in order, so more specific prefixes come first.
var knownModels = []capabilityRule{
	{"gpt-4o-mini", ModelCapabilities{128_000, 16_384}},
	{"gpt-4o", ModelCapabilities{128_000, 16_384}},
	{"gpt-4.1", ModelCapabilities{1_047_576, 32_768}},
	{"gpt-4-turbo", ModelCapabilities{128_000, 4_096}},
	{"gpt-4", ModelCapabilities{8_192, 4_096}},
	{"gpt-3.5-turbo", ModelCapabilities{16_385, 4_096}},
	{"o1-mini", ModelCapabilities{128_000, 65_536}},
	{"o1", ModelCapabilities{200_000, 100_000}},
	{"o3", ModelCapabilities{200_000, 100_000}},
	{"claude-3-opus", ModelCapabilities{200_000, 4_096}},
	{"claude", ModelCapabilities{200_000, 8_192}},
	{"gemini-1.5-pro", ModelCapabilities{2_097_152, 8_192}},
	{"gemini", ModelCapabilities{1_048_576, 8_192}},
}

// DefaultCapabilities is returned for models not in the known list.
var DefaultCapabilities = ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

// LookupCapabilities returns the limits for model, matched by
// case-insensitive prefix. Provider-qualified names such as
// "anthropic/claude-3-opus" are matched on the part after the last slash.
func LookupCapabilities(model string) ModelCapabilities {
	name := strings.ToLower(model)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, r := range knownModels {
		if strings.HasPrefix(name, r.prefix) {
			return r.caps
		}
	}
	return DefaultCapabilities
}
