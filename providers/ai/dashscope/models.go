package dashscope

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lectio/dashrelay/providers/ai"
)

/*
	REQUEST PAYLOADS

	One payload shape per wire protocol. All three are assembled by the
	builders in conversion.go from the same canonical request.
*/

// chatPayload is the OpenAI-compatible chat completions request body.
type chatPayload struct {
	Model            string         `json:"model"`
	Stream           bool           `json:"stream"`
	Messages         []ai.Message   `json:"messages"`
	Temperature      float64        `json:"temperature"`
	TopP             float64        `json:"top_p"`
	FrequencyPenalty float64        `json:"frequency_penalty"`
	PresencePenalty  float64        `json:"presence_penalty"`
	EnableThinking   bool           `json:"enable_thinking"`
	ThinkingBudget   int            `json:"thinking_budget,omitempty"`
	EnableSearch     bool           `json:"enable_search,omitempty"`
	SearchOptions    map[string]any `json:"search_options,omitempty"`
}

// responsesPayload is the OpenAI Responses-compatible request body.
type responsesPayload struct {
	Model              string `json:"model"`
	Stream             bool   `json:"stream"`
	Input              any    `json:"input"`
	EnableThinking     bool   `json:"enable_thinking"`
	Instructions       string `json:"instructions,omitempty"`
	ThinkingBudget     int    `json:"thinking_budget,omitempty"`
	Tools              []Tool `json:"tools,omitempty"`
	MaxToolCalls       int    `json:"max_tool_calls,omitempty"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
	Store              bool   `json:"store,omitempty"`
}

// responsesInputItem is one entry of the default responses input mapping.
type responsesInputItem struct {
	Role    ai.MessageRole `json:"role"`
	Content any            `json:"content"`
}

// responsesInputText is the input_text content unit of the responses protocol.
type responsesInputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// nativePayload is the native DashScope generation request body, shared by the
// text-generation and multimodal-generation endpoints.
type nativePayload struct {
	Model      string           `json:"model"`
	Input      nativeInput      `json:"input"`
	Parameters nativeParameters `json:"parameters"`
}

// nativeInput wraps the message list. Messages is either []ai.Message
// (text endpoint, content passed through unmodified) or []nativeMessage
// (multimodal endpoint, content normalized to typed units).
type nativeInput struct {
	Messages any `json:"messages"`
}

type nativeParameters struct {
	ResultFormat      string         `json:"result_format"`
	IncrementalOutput bool           `json:"incremental_output"`
	EnableThinking    bool           `json:"enable_thinking"`
	Temperature       float64        `json:"temperature"`
	TopP              float64        `json:"top_p"`
	ThinkingBudget    int            `json:"thinking_budget,omitempty"`
	EnableSearch      bool           `json:"enable_search,omitempty"`
	SearchOptions     map[string]any `json:"search_options,omitempty"`
}

// nativeMessage is one multimodal-endpoint message with normalized content.
type nativeMessage struct {
	Role    ai.MessageRole      `json:"role"`
	Content []nativeContentUnit `json:"content"`
}

// nativeContentUnit is one typed content unit of the multimodal endpoint.
// Text is a pointer so the empty placeholder unit {"text":""} survives
// marshaling; Video is a string or a list of frame URLs.
type nativeContentUnit struct {
	Text  *string `json:"text,omitempty"`
	Image string  `json:"image,omitempty"`
	Audio string  `json:"audio,omitempty"`
	Video any     `json:"video,omitempty"`
	File  string  `json:"file,omitempty"`
}

/*
	STREAM RESPONSE TYPES

	One chunk shape covers all three protocols: the native protocol nests
	choices under output, the chat and responses protocols carry them at the
	top level with message or delta. Error frames arrive in the same stream
	with HTTP 200, so the error fields live on the chunk itself.
*/

// streamChunk is a single parsed SSE data frame.
type streamChunk struct {
	StatusCode flexInt        `json:"status_code"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Error      *streamError   `json:"error"`
	RequestID  string         `json:"request_id"`
	Output     *streamOutput  `json:"output"`
	Choices    []streamChoice `json:"choices"`
	Usage      *streamUsage   `json:"usage"`
}

// streamError is the OpenAI-style nested error object some compatible
// gateways use instead of top-level code/message.
type streamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type streamOutput struct {
	Choices    []streamChoice `json:"choices"`
	SearchInfo *searchInfo    `json:"search_info"`
}

type searchInfo struct {
	SearchResults []json.RawMessage `json:"search_results"`
}

// streamChoice carries either a full message (native protocol,
// result_format=message) or an incremental delta (chat protocol).
type streamChoice struct {
	Message         *streamMessage `json:"message"`
	Delta           *streamMessage `json:"delta"`
	FinishReason    string         `json:"finish_reason"`
	FinishReasonAlt string         `json:"finishReason"`
}

// finish returns the normalized finish reason, preferring the snake_case
// field.
func (c streamChoice) finish() string {
	reason := c.FinishReason
	if reason == "" {
		reason = c.FinishReasonAlt
	}
	return strings.ToLower(strings.TrimSpace(reason))
}

type streamMessage struct {
	Content             messageText `json:"content"`
	ReasoningContent    messageText `json:"reasoning_content"`
	ReasoningContentAlt messageText `json:"reasoningContent"`
}

// reasoning returns the reasoning delta, whichever field spelling carried it.
func (m streamMessage) reasoning() string {
	if m.ReasoningContent != "" {
		return string(m.ReasoningContent)
	}
	return string(m.ReasoningContentAlt)
}

// messageText decodes the string-or-structured-array content shapes into one
// string. Array elements may be plain strings or objects carrying the text
// under "text" or "content"; anything else contributes nothing.
type messageText string

func (t *messageText) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = messageText(text)
		return nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		*t = ""
		return nil
	}

	var builder strings.Builder
	for _, element := range elements {
		var item string
		if err := json.Unmarshal(element, &item); err == nil {
			builder.WriteString(item)
			continue
		}
		var structured struct {
			Text    string `json:"text"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(element, &structured); err != nil {
			continue
		}
		if structured.Text != "" {
			builder.WriteString(structured.Text)
		} else if structured.Content != "" {
			builder.WriteString(structured.Content)
		}
	}
	*t = messageText(builder.String())
	return nil
}

type streamUsage struct {
	Plugins *streamPlugins `json:"plugins"`
}

type streamPlugins struct {
	Search *searchPlugin `json:"search"`
}

type searchPlugin struct {
	Count flexInt `json:"count"`
}

// flexInt tolerates numeric fields that arrive as JSON numbers or as numeric
// strings. Unparseable values decode to zero rather than failing the chunk.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*f = flexInt(number)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			*f = flexInt(parsed)
			return nil
		}
	}
	*f = 0
	return nil
}
