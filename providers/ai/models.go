package ai

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest represents a single canonical chat request handed to a provider.
// It is created fresh per call and owned by the caller until passed to a
// provider; providers never retain it across calls.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`             // Model name or identifier (may carry a namespace prefix, e.g. "minimax/minimax-m2.5")
	Messages         []Message         `json:"messages"`                    // Contains all messages in the conversation except system prompt
	SystemPrompt     string            `json:"system_prompt,omitempty"`     // Optional system prompt
	ThinkingEnabled  bool              `json:"thinking_enabled,omitempty"`  // Whether the model should produce reasoning output
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"` // Optional generation configuration
}

// Message represents a single message in a conversation. Content is a tagged
// union decoded once at the wire boundary; see [MessageContent].
type Message struct {
	Role    MessageRole    `json:"role"`
	Content MessageContent `json:"content"`
}

// GenerationConfig carries caller-requested sampling parameters. Fields are
// pointers so that "not set" is distinguishable from an explicit zero; absent
// fields fall back to provider defaults, and provider policy may override any
// of them regardless of what the caller requested.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`       // Sampling temperature [0..2]. Higher => more random; lower => more deterministic.
	TopP             *float64 `json:"top_p,omitempty"`             // Nucleus (top-p) sampling [0..1].
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"` // Penalty [-2..2]. Positive values reduce repetition by penalizing frequent tokens.
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`  // Penalty [-2..2]. Positive values encourage new topics by penalizing tokens that already appeared.
}

/*
	##### ENUMS #####
*/

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
)
