package ai

// StreamEventType identifies the kind of payload carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventToken indicates a final-answer text delta.
	StreamEventToken StreamEventType = "token"
	// StreamEventReasoningToken indicates a reasoning/thinking text delta.
	StreamEventReasoningToken StreamEventType = "reasoning_token"
	// StreamEventSearchUsage carries the terminal web-search usage summary.
	// Emitted exactly once per stream when usage tracking is requested.
	StreamEventSearchUsage StreamEventType = "search_usage"
)

// SearchUsage summarizes web-search activity for one completed stream. A
// zero-value SearchUsage is valid and emittable: it reports that no search
// was triggered.
type SearchUsage struct {
	WebSearchCalls int            `json:"webSearchCalls"`
	Details        map[string]int `json:"details"`
	SourceCount    int            `json:"sourceCount"`
	Text           string         `json:"text"`
}

// StreamEvent represents a single normalized event relayed from an upstream
// stream. Each event carries exactly one type of payload, identified by Type:
// Text for token and reasoning_token events, Usage for search_usage events.
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Text  string          `json:"text,omitempty"`
	Usage *SearchUsage    `json:"usage,omitempty"`
}

// EmitFunc delivers one normalized event to the original caller's own
// response stream. It is invoked synchronously from within the relay loop, in
// the exact order the source frames were parsed; a slow EmitFunc stalls that
// request's pipeline and nothing else. Returning a non-nil error aborts the
// relay, which stops reading from upstream and returns the error.
type EmitFunc func(event StreamEvent) error
