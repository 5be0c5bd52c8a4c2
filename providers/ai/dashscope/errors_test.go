package dashscope

import (
	"errors"
	"strings"
	"testing"

	"github.com/lectio/dashrelay/internal/utils"
)

// TestUpstreamError_Classification verifies the stable user-facing message
// for each recognized {status, code, detail} class.
func TestUpstreamError_Classification(t *testing.T) {
	tests := []struct {
		name     string
		err      UpstreamError
		wantPart string
	}{
		{
			name:     "401 status",
			err:      UpstreamError{Status: 401},
			wantPart: "authentication failed",
		},
		{
			name:     "InvalidApiKey code without status",
			err:      UpstreamError{Status: 500, Code: "InvalidApiKey"},
			wantPart: "authentication failed",
		},
		{
			name:     "403 access denied",
			err:      UpstreamError{Status: 403},
			wantPart: "denied the request",
		},
		{
			name:     "429 rate limit",
			err:      UpstreamError{Status: 429},
			wantPart: "rate limit",
		},
		{
			name:     "throttled code",
			err:      UpstreamError{Status: 500, Code: "Throttled.RateQuota"},
			wantPart: "rate limit",
		},
		{
			name:     "model not found",
			err:      UpstreamError{Status: 400, Code: "ModelNotFound"},
			wantPart: "does not exist",
		},
		{
			name:     "url error detail",
			err:      UpstreamError{Status: 400, Message: "InvalidParameter: Url error, please check url!"},
			wantPart: "confirm the model matches the endpoint",
		},
		{
			name:     "generic fallback with detail",
			err:      UpstreamError{Status: 400, Message: "something odd"},
			wantPart: "dashscope error (400): something odd",
		},
		{
			name:     "generic fallback without detail",
			err:      UpstreamError{Status: 502},
			wantPart: "dashscope error (502): unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if !strings.Contains(got, tt.wantPart) {
				t.Errorf("Error() = %q, want substring %q", got, tt.wantPart)
			}
		})
	}
}

// TestUpstreamError_RawFallbackTruncated verifies that a missing message
// falls back to the raw body, truncated for display.
func TestUpstreamError_RawFallbackTruncated(t *testing.T) {
	err := UpstreamError{Status: 500, Raw: strings.Repeat("x", 2000)}
	got := err.Error()
	if !strings.Contains(got, "truncated") {
		t.Errorf("Error() = %q, want truncation marker", got)
	}
	if len(got) > 700 {
		t.Errorf("len(Error()) = %d, want bounded output", len(got))
	}
}

// TestClassifyHTTPError verifies the conversion of HTTP status failures into
// UpstreamError, including lenient body parsing and nested error objects.
func TestClassifyHTTPError(t *testing.T) {
	statusErr := &utils.HTTPStatusError{
		StatusCode: 400,
		Body:       `{"code":"InvalidParameter","message":"bad payload"}`,
	}
	err := classifyHTTPError(statusErr)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("classifyHTTPError returned %T, want *UpstreamError", err)
	}
	if upstream.Status != 400 || upstream.Code != "InvalidParameter" || upstream.Message != "bad payload" {
		t.Errorf("upstream = %+v", upstream)
	}
}

// TestClassifyHTTPError_NestedErrorBody verifies the OpenAI-compatible error
// body shape.
func TestClassifyHTTPError_NestedErrorBody(t *testing.T) {
	statusErr := &utils.HTTPStatusError{
		StatusCode: 401,
		Body:       `{"error":{"code":"invalid_api_key","message":"Incorrect API key"}}`,
	}
	err := classifyHTTPError(statusErr)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("classifyHTTPError returned %T, want *UpstreamError", err)
	}
	if upstream.Code != "invalid_api_key" {
		t.Errorf("Code = %q, want invalid_api_key", upstream.Code)
	}
	if !strings.Contains(upstream.Error(), "authentication failed") {
		t.Errorf("Error() = %q, want authentication message", upstream.Error())
	}
}

// TestClassifyHTTPError_PassThrough verifies that non-HTTP errors pass
// through unchanged.
func TestClassifyHTTPError_PassThrough(t *testing.T) {
	sentinel := errors.New("connection refused")
	if got := classifyHTTPError(sentinel); got != sentinel {
		t.Errorf("classifyHTTPError = %v, want sentinel unchanged", got)
	}
}

// TestPolicyError_Message verifies that the policy rejection message is the
// policy's own user-facing reason.
func TestPolicyError_Message(t *testing.T) {
	policy := ResolveModelPolicy("glm-4")
	err := &PolicyError{Policy: policy}
	if err.Error() != policy.ErrorMessage {
		t.Errorf("Error() = %q, want %q", err.Error(), policy.ErrorMessage)
	}

	empty := &PolicyError{}
	if empty.Error() == "" {
		t.Errorf("empty policy error message should have a fallback")
	}
}
