package utils

import (
	"testing"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TestParseJSONLenient_ValidJSON verifies that well-formed JSON parses on the
// strict path.
func TestParseJSONLenient_ValidJSON(t *testing.T) {
	got, err := ParseJSONLenient[errorPayload](`{"code":"Throttling","message":"slow down"}`)
	if err != nil {
		t.Fatalf("ParseJSONLenient returned %v", err)
	}
	if got.Code != "Throttling" || got.Message != "slow down" {
		t.Errorf("got %+v", got)
	}
}

// TestParseJSONLenient_RepairableJSON verifies malformed-but-repairable
// inputs: single quotes, unquoted keys, trailing commas.
func TestParseJSONLenient_RepairableJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "single quotes", input: `{'code':'InvalidParameter','message':'bad'}`},
		{name: "unquoted keys", input: `{code:"InvalidParameter",message:"bad"}`},
		{name: "trailing comma", input: `{"code":"InvalidParameter","message":"bad",}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONLenient[errorPayload](tt.input)
			if err != nil {
				t.Fatalf("ParseJSONLenient(%q) returned %v", tt.input, err)
			}
			if got.Code != "InvalidParameter" {
				t.Errorf("Code = %q, want InvalidParameter", got.Code)
			}
		})
	}
}

// TestParseJSONLenient_Unrepairable verifies that hopeless input surfaces an
// error instead of a zero value masquerading as success.
func TestParseJSONLenient_Unrepairable(t *testing.T) {
	if _, err := ParseJSONLenient[errorPayload](`<html>502 Bad Gateway</html>`); err == nil {
		t.Fatalf("ParseJSONLenient accepted HTML, want error")
	}
}

// TestTruncateString verifies the length cap and the omission suffix.
func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString(short) = %q", got)
	}

	long := "abcdefghij"
	got := TruncateString(long, 4)
	if got != "abcd... (truncated, total: 10 chars)" {
		t.Errorf("TruncateString = %q", got)
	}

	// Non-positive max falls back to the default.
	if got := TruncateString("x", -1); got != "x" {
		t.Errorf("TruncateString with negative max = %q", got)
	}
}
