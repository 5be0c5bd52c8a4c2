package dashscope

import (
	"github.com/lectio/dashrelay/internal/utils"
)

// buildHeaders returns the protocol-specific header set. All protocols
// authenticate with a bearer credential; the chat protocol negotiates pure
// SSE while responses and native also accept application/json, and the native
// protocol requires its own SSE-enable header on top.
func buildHeaders(apiKey string, protocol Protocol) []utils.HeaderOption {
	headers := []utils.HeaderOption{
		{Key: "Authorization", Value: "Bearer " + apiKey},
	}

	switch protocol {
	case ProtocolNative:
		headers = append(headers,
			utils.HeaderOption{Key: "Accept", Value: "text/event-stream, application/json"},
			utils.HeaderOption{Key: "X-DashScope-SSE", Value: "enable"},
		)
	case ProtocolResponses:
		headers = append(headers, utils.HeaderOption{Key: "Accept", Value: "text/event-stream, application/json"})
	default:
		headers = append(headers, utils.HeaderOption{Key: "Accept", Value: "text/event-stream"})
	}

	return headers
}
