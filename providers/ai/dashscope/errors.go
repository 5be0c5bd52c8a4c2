package dashscope

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lectio/dashrelay/internal/utils"
)

// Content-completeness failures. The two conditions are distinct so the
// caller can present "no answer" and "thinking leaked without an answer"
// differently.
var (
	// ErrNoContent reports a stream that ended without any final-answer text.
	ErrNoContent = errors.New("upstream returned no answer content")
	// ErrReasoningOnly reports a stream that produced reasoning text but
	// never a final answer.
	ErrReasoningOnly = errors.New("upstream returned only reasoning content, no final answer")
)

// PolicyError is returned when model policy rejects a request before any
// network call. It is never retried.
type PolicyError struct {
	Policy ModelPolicy
}

func (e *PolicyError) Error() string {
	if e.Policy.ErrorMessage != "" {
		return e.Policy.ErrorMessage
	}
	return "model is not supported by the current policy"
}

// UpstreamError is a classified upstream failure: a non-2xx HTTP response or
// an in-band error frame delivered with HTTP 200. Error() renders the stable
// user-facing message for the observed {status, code, message} triple.
type UpstreamError struct {
	Status  int
	Code    string
	Message string
	Raw     string
}

var urlErrorPattern = regexp.MustCompile(`(?i)url error`)

func (e *UpstreamError) Error() string {
	key := strings.ToLower(strings.TrimSpace(e.Code))
	detail := strings.TrimSpace(e.Message)
	if detail == "" {
		detail = strings.TrimSpace(e.Raw)
	}

	switch {
	case e.Status == 401 || strings.Contains(key, "invalidapikey") || strings.Contains(key, "apikeyinvalid"):
		return "DashScope authentication failed: check that ALIYUN_API_KEY (or DASHSCOPE_API_KEY) is present and still valid"
	case e.Status == 403 || strings.Contains(key, "accessdenied"):
		return "DashScope denied the request: check API key permissions, model availability and workspace configuration"
	case e.Status == 429 || strings.Contains(key, "ratelimit") || strings.Contains(key, "throttled"):
		return "DashScope rate limit reached, retry after a short backoff"
	case strings.Contains(key, "modelnotfound"):
		return "DashScope model does not exist or is unavailable in this region, check the model ID"
	case urlErrorPattern.MatchString(detail):
		return "DashScope URL error: confirm the model matches the endpoint (text-only models use text-generation or the OpenAI-compatible chat protocol, multimodal models use multimodal-generation)"
	}

	if detail == "" {
		detail = "unknown error"
	}
	return fmt.Sprintf("dashscope error (%d): %s", e.Status, utils.TruncateString(detail, utils.DefaultMaxStringLength))
}

// errorBody models the error shapes upstream endpoints put in a failed
// response body: top-level code/message (native) or a nested error object
// (OpenAI-compatible).
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyHTTPError converts a transport-level failure into an UpstreamError
// when it carries an HTTP status, parsing the body leniently for the code and
// message detail. Other errors (network, context) pass through unchanged.
func classifyHTTPError(err error) error {
	var statusErr *utils.HTTPStatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	upstream := &UpstreamError{Status: statusErr.StatusCode, Raw: statusErr.Body}
	if body, parseErr := utils.ParseJSONLenient[errorBody](statusErr.Body); parseErr == nil {
		upstream.Code = body.Code
		upstream.Message = body.Message
		if body.Error != nil {
			if upstream.Code == "" {
				upstream.Code = body.Error.Code
			}
			if upstream.Message == "" {
				upstream.Message = body.Error.Message
			}
		}
	}
	return upstream
}
