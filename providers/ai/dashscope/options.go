package dashscope

import (
	"strings"

	"github.com/lectio/dashrelay/providers/ai"
)

const (
	defaultMaxToolCalls      = 3
	maxToolCalls             = 10
	maxAssignedSiteCount     = 25
	maxPromptInterveneLength = 240
	maxReasoningBudget       = 128000
	maxInstructionsLength    = 24000
	maxPreviousResponseIDLen = 160
)

// Options configures a single StreamChat call. The zero value is valid: chat
// protocol, no thinking budget, no web search, no usage tracking. Values are
// sanitized once, here at the boundary, before any payload is built.
type Options struct {
	// Protocol is the requested wire protocol ("chat", "responses",
	// "dashscope"; aliases "response" and "native" are accepted). Model
	// policy may silently override it.
	Protocol string

	// ThinkingBudget caps reasoning tokens. Only positive values are sent.
	ThinkingBudget int

	// RelayReasoning forwards reasoning deltas as reasoning_token events.
	RelayReasoning bool

	// TrackSearchUsage requests the terminal search_usage event. When set,
	// exactly one search_usage event is emitted per stream, even when no
	// search occurred.
	TrackSearchUsage bool

	// PreviousResponseID continues a stored conversation (responses protocol
	// only).
	PreviousResponseID string

	// ForceStore sets store=true on the responses payload.
	ForceStore bool

	// Search configures web search for this call.
	Search SearchConfig

	// ResponsesInput overrides the default messages-to-input-items mapper for
	// the responses protocol.
	ResponsesInput func(messages []ai.Message) any
}

// SearchConfig carries the caller's web-search settings. Invalid values
// collapse to safe defaults rather than failing the call.
type SearchConfig struct {
	Enabled         bool     // Caller requested web search; policy may still disallow it
	MaxToolCalls    int      // Tool-call budget for the responses protocol; 0 means the default of 3, clamped to [1, 10]
	Strategy        string   // "turbo" (default), "max", "agent" or "agent_max"
	Forced          bool     // Force a search even when the model would not choose one
	EnableExtension bool     // Enable the search extension
	FreshnessDays   int      // Result freshness window: 7, 30, 180 or 365; anything else means no constraint
	AssignedSites   []string // Restrict search to these hostnames (deduplicated, capped at 25)
	PromptIntervene string   // Free-text search intervention prompt (capped at 240 chars)

	// Native protocol extras.
	EnableSource        bool   // Include source metadata in results
	EnableCitation      bool   // Enable citations with CitationFormat
	CitationFormat      string // "[<number>]" (default) or "[ref_<number>]"
	PrependSearchResult bool   // Prepend raw search results to the answer

	// Responses protocol extras.
	EnableWebExtractor    bool // Add the web_extractor tool after web_search
	EnableCodeInterpreter bool // Add the code_interpreter tool last
}

var searchStrategies = []string{"turbo", "max", "agent", "agent_max"}

var searchFreshnessDays = []int{7, 30, 180, 365}

var searchCitationFormats = []string{"[<number>]", "[ref_<number>]"}

// sanitizeSearchStrategy collapses unknown strategies to "turbo", the least
// aggressive one.
func sanitizeSearchStrategy(value string) string {
	key := strings.ToLower(strings.TrimSpace(value))
	for _, strategy := range searchStrategies {
		if key == strategy {
			return key
		}
	}
	return "turbo"
}

// sanitizeFreshness collapses values outside the fixed freshness set to 0,
// meaning no freshness constraint.
func sanitizeFreshness(days int) int {
	for _, allowed := range searchFreshnessDays {
		if days == allowed {
			return days
		}
	}
	return 0
}

func sanitizeCitationFormat(value string) string {
	key := strings.TrimSpace(value)
	for _, format := range searchCitationFormats {
		if key == format {
			return key
		}
	}
	return "[<number>]"
}

// sanitizePromptIntervene normalizes line endings and caps the intervention
// text at maxPromptInterveneLength.
func sanitizePromptIntervene(value string) string {
	text := strings.ReplaceAll(value, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if len(text) > maxPromptInterveneLength {
		text = text[:maxPromptInterveneLength]
	}
	return text
}

// sanitizeText trims value and caps it at maxLength bytes; blank input yields
// the empty string.
func sanitizeText(value string, maxLength int) string {
	text := strings.TrimSpace(value)
	if len(text) > maxLength {
		text = text[:maxLength]
	}
	return text
}

// clampFloat returns fallback when value is nil, otherwise value clamped to
// [min, max].
func clampFloat(value *float64, fallback, min, max float64) float64 {
	v := fallback
	if value != nil {
		v = *value
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clampInt returns fallback when value is zero, otherwise value clamped to
// [min, max].
func clampInt(value, fallback, min, max int) int {
	if value == 0 {
		value = fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
