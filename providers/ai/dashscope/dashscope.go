package dashscope

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/lectio/dashrelay/internal/utils"
	"github.com/lectio/dashrelay/providers/ai"
)

// Beijing-region endpoint defaults; all four can be overridden per provider.
const (
	defaultChatEndpoint             = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultResponsesEndpoint        = "https://dashscope.aliyuncs.com/api/v2/apps/protocols/compatible-mode/v1/responses"
	defaultNativeTextEndpoint       = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	defaultNativeMultimodalEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"
)

const missingKeyMessage = "no DashScope API key configured: set ALIYUN_API_KEY (or DASHSCOPE_API_KEY) in the environment"

// Endpoints holds the four upstream endpoint URLs. Zero or non-http(s)
// values fall back to the Beijing-region defaults.
type Endpoints struct {
	Chat             string
	Responses        string
	NativeText       string
	NativeMultimodal string
}

// sanitized returns the endpoint set with defaults applied.
func (e Endpoints) sanitized() Endpoints {
	return Endpoints{
		Chat:             sanitizeEndpoint(e.Chat, defaultChatEndpoint),
		Responses:        sanitizeEndpoint(e.Responses, defaultResponsesEndpoint),
		NativeText:       sanitizeEndpoint(e.NativeText, defaultNativeTextEndpoint),
		NativeMultimodal: sanitizeEndpoint(e.NativeMultimodal, defaultNativeMultimodalEndpoint),
	}
}

// sanitizeEndpoint accepts value only when it is an absolute http(s) URL,
// falling back otherwise.
func sanitizeEndpoint(value, fallback string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return fallback
	}
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fallback
	}
	return text
}

// Provider implements ai.StreamProvider against the DashScope backend. It
// holds only configuration; a single Provider is safe to use from any number
// of concurrent request pipelines.
type Provider struct {
	apiKey    string
	endpoints Endpoints
	client    *http.Client
	defaults  Options
}

// New creates a DashScope provider with default endpoints, reading the API
// key from ALIYUN_API_KEY or DASHSCOPE_API_KEY and endpoint overrides from
// ALIYUN_CHAT_ENDPOINT, ALIYUN_RESPONSES_ENDPOINT, ALIYUN_DASHSCOPE_ENDPOINT
// and ALIYUN_DASHSCOPE_MULTIMODAL_ENDPOINT.
func New() *Provider {
	apiKey := os.Getenv("ALIYUN_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	return &Provider{
		apiKey: strings.TrimSpace(apiKey),
		endpoints: Endpoints{
			Chat:             os.Getenv("ALIYUN_CHAT_ENDPOINT"),
			Responses:        os.Getenv("ALIYUN_RESPONSES_ENDPOINT"),
			NativeText:       os.Getenv("ALIYUN_DASHSCOPE_ENDPOINT"),
			NativeMultimodal: os.Getenv("ALIYUN_DASHSCOPE_MULTIMODAL_ENDPOINT"),
		}.sanitized(),
		client: &http.Client{},
	}
}

// WithAPIKey sets the API key used for authenticating requests.
func (p *Provider) WithAPIKey(apiKey string) *Provider {
	p.apiKey = strings.TrimSpace(apiKey)
	return p
}

// WithEndpoints overrides the upstream endpoints.
func (p *Provider) WithEndpoints(endpoints Endpoints) *Provider {
	p.endpoints = endpoints.sanitized()
	return p
}

// WithHTTPClient sets the HTTP client used for outbound requests. Timeouts
// are the client's responsibility; the relay itself imposes none.
func (p *Provider) WithHTTPClient(client *http.Client) *Provider {
	p.client = client
	return p
}

// WithDefaultOptions sets the Options used by StreamChat.
func (p *Provider) WithDefaultOptions(defaults Options) *Provider {
	p.defaults = defaults
	return p
}

// StreamChat implements ai.StreamProvider using the provider's default
// options.
func (p *Provider) StreamChat(ctx context.Context, request ai.ChatRequest, emit ai.EmitFunc) error {
	return p.StreamChatWithOptions(ctx, request, p.defaults, emit)
}

// StreamChatWithOptions runs one full request pipeline: resolve the model
// policy, build the protocol payload, issue the streaming call, and relay the
// upstream frames to emit as normalized events. It blocks until the stream
// completes, the context is cancelled, or a terminal failure occurs.
func (p *Provider) StreamChatWithOptions(ctx context.Context, request ai.ChatRequest, opts Options, emit ai.EmitFunc) error {
	if p.apiKey == "" {
		return errors.New(missingKeyMessage)
	}
	if emit == nil {
		return errors.New("emit callback is required")
	}

	policy := ResolveModelPolicy(request.Model)
	if !policy.Supported {
		return &PolicyError{Policy: policy}
	}

	protocol := ResolveProtocol(opts.Protocol)
	if policy.ForceProtocol != "" {
		protocol = policy.ForceProtocol
	}

	search := ResolveWebSearchRuntime(protocol, policy, opts.Search)

	var payload any
	var endpoint string
	switch protocol {
	case ProtocolResponses:
		payload = buildResponsesPayload(request, opts, search)
		endpoint = p.endpoints.Responses
	case ProtocolNative:
		nativeBody, multimodal := buildNativePayload(request, policy, opts, search)
		payload = nativeBody
		if multimodal {
			endpoint = p.endpoints.NativeMultimodal
		} else {
			endpoint = p.endpoints.NativeText
		}
	default:
		payload = buildChatPayload(request, policy, opts, search)
		endpoint = p.endpoints.Chat
	}

	slog.Debug("dashscope request",
		"model", request.Model,
		"protocol", protocol,
		"policy", policy.Key,
		"search_enabled", search.Enabled,
		"payload", utils.TruncateString(utils.JSONToString(payload), utils.DefaultMaxStringLength),
	)

	response, err := utils.DoPostStream(ctx, p.client, endpoint, payload, buildHeaders(p.apiKey, protocol)...)
	if err != nil {
		return classifyHTTPError(err)
	}
	defer utils.CloseWithLog(response.Body)

	return relayStream(ctx, response.Body, relayOptions{
		relayReasoning: opts.RelayReasoning,
		trackUsage:     opts.TrackSearchUsage,
	}, emit)
}
