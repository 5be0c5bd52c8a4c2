package dashscope

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lectio/dashrelay/providers/ai"
)

// collectEvents runs relayStream over raw and records every emitted event.
func collectEvents(t *testing.T, raw string, opts relayOptions) ([]ai.StreamEvent, error) {
	t.Helper()
	var events []ai.StreamEvent
	err := relayStream(context.Background(), strings.NewReader(raw), opts, func(event ai.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	return events, err
}

// TestRelayStream_TokensThenDone verifies ordered token delivery and the
// exactly-once zero-valued search_usage event on a [DONE]-terminated stream
// with no search activity.
func TestRelayStream_TokensThenDone(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"Hel\"}}]}}\n\n" +
		"data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"lo\"}}]}}\n\n" +
		"data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"!\"}}]}}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{trackUsage: true})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}

	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 3 tokens + 1 usage", len(events))
	}
	var text strings.Builder
	for _, event := range events[:3] {
		if event.Type != ai.StreamEventToken {
			t.Fatalf("event type = %q, want token", event.Type)
		}
		text.WriteString(event.Text)
	}
	if text.String() != "Hello!" {
		t.Errorf("assembled text = %q, want Hello!", text.String())
	}

	usage := events[3]
	if usage.Type != ai.StreamEventSearchUsage {
		t.Fatalf("final event type = %q, want search_usage", usage.Type)
	}
	if usage.Usage == nil || usage.Usage.WebSearchCalls != 0 {
		t.Errorf("usage = %+v, want zero-valued snapshot", usage.Usage)
	}
}

// TestRelayStream_UsageEmittedOnce verifies that a stream carrying a final
// finish_reason chunk followed by [DONE] still produces exactly one
// search_usage event.
func TestRelayStream_UsageEmittedOnce(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"hi\"},\"finish_reason\":\"stop\"}]},\"usage\":{\"plugins\":{\"search\":{\"count\":2}}}}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{trackUsage: true})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}

	usageEvents := 0
	for _, event := range events {
		if event.Type == ai.StreamEventSearchUsage {
			usageEvents++
			if event.Usage.WebSearchCalls != 2 {
				t.Errorf("WebSearchCalls = %d, want 2", event.Usage.WebSearchCalls)
			}
		}
	}
	if usageEvents != 1 {
		t.Errorf("search_usage events = %d, want exactly 1", usageEvents)
	}
}

// TestRelayStream_NoUsageWithoutTracking verifies that no search_usage event
// is emitted when tracking is off.
func TestRelayStream_NoUsageWithoutTracking(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"hi\"}}]}}\n\ndata: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}
	for _, event := range events {
		if event.Type == ai.StreamEventSearchUsage {
			t.Errorf("search_usage emitted with tracking off")
		}
	}
}

// TestRelayStream_ReasoningRelay verifies reasoning deltas are forwarded only
// when requested and that a reasoning-only stream fails with ErrReasoningOnly
// at natural end.
func TestRelayStream_ReasoningRelay(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"reasoning_content\":\"thinking...\"}}]}}\n\n"

	events, err := collectEvents(t, raw, relayOptions{relayReasoning: true})
	if !errors.Is(err, ErrReasoningOnly) {
		t.Fatalf("relayStream returned %v, want ErrReasoningOnly", err)
	}
	if len(events) != 1 || events[0].Type != ai.StreamEventReasoningToken || events[0].Text != "thinking..." {
		t.Errorf("events = %+v, want single reasoning_token", events)
	}

	// With relaying off the delta is suppressed and the stream counts as empty.
	events, err = collectEvents(t, raw, relayOptions{})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("relayStream returned %v, want ErrNoContent", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none", events)
	}
}

// TestRelayStream_EmptyStream verifies that a stream with no frames at all
// fails with ErrNoContent.
func TestRelayStream_EmptyStream(t *testing.T) {
	_, err := collectEvents(t, "", relayOptions{})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("relayStream returned %v, want ErrNoContent", err)
	}
}

// TestRelayStream_InBandError verifies that an error frame delivered with
// HTTP 200 aborts the relay with a classified UpstreamError.
func TestRelayStream_InBandError(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"par\"}}]}}\n\n" +
		"data: {\"status_code\":429,\"code\":\"Throttling.RateQuota\",\"message\":\"Requests throttled\"}\n\n"

	events, err := collectEvents(t, raw, relayOptions{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("relayStream returned %v, want *UpstreamError", err)
	}
	if upstream.Status != 429 {
		t.Errorf("Status = %d, want 429", upstream.Status)
	}
	if len(events) != 1 || events[0].Text != "par" {
		t.Errorf("events before error = %+v, want the single partial token", events)
	}
}

// TestRelayStream_NestedErrorObject verifies detection of the OpenAI-style
// nested error object with no top-level status.
func TestRelayStream_NestedErrorObject(t *testing.T) {
	raw := "data: {\"error\":{\"code\":\"invalid_api_key\",\"message\":\"Incorrect API key provided\"}}\n\n"

	_, err := collectEvents(t, raw, relayOptions{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("relayStream returned %v, want *UpstreamError", err)
	}
	if upstream.Status != 500 {
		t.Errorf("Status = %d, want 500 fallback", upstream.Status)
	}
	if upstream.Code != "invalid_api_key" {
		t.Errorf("Code = %q, want invalid_api_key", upstream.Code)
	}
}

// TestRelayStream_MalformedFrameDropped verifies that an unparsable frame is
// skipped without killing the stream.
func TestRelayStream_MalformedFrameDropped(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"a\"}}]}}\n\n" +
		"data: {not json at all\n\n" +
		"data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"b\"}}]}}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}
	if len(events) != 2 || events[0].Text != "a" || events[1].Text != "b" {
		t.Errorf("events = %+v, want tokens a then b", events)
	}
}

// TestRelayStream_ChatProtocolDeltas verifies the top-level choices shape
// with incremental deltas used by the chat and responses protocols.
func TestRelayStream_ChatProtocolDeltas(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}
	if len(events) != 1 || events[0].Type != ai.StreamEventToken || events[0].Text != "Hi" {
		t.Errorf("events = %+v, want single Hi token", events)
	}
}

// TestRelayStream_ResidualFrameWithoutSeparator verifies that a final frame
// missing its trailing separator is still delivered.
func TestRelayStream_ResidualFrameWithoutSeparator(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"a\"}}]}}\n\n" +
		"data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"b\"}}]}}"

	events, err := collectEvents(t, raw, relayOptions{})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}
	if len(events) != 2 || events[1].Text != "b" {
		t.Errorf("events = %+v, want trailing b token delivered", events)
	}
}

// TestRelayStream_StructuredContentArray verifies that array-shaped content
// fields are flattened to their text.
func TestRelayStream_StructuredContentArray(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":[{\"text\":\"Hello \"},{\"text\":\"world\"}]}}]}}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}
	if len(events) != 1 || events[0].Text != "Hello world" {
		t.Errorf("events = %+v, want flattened Hello world token", events)
	}
}

// TestRelayStream_ContextCancellation verifies that a cancelled context stops
// the relay with the context error.
func TestRelayStream_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := relayStream(ctx, strings.NewReader("data: [DONE]\n\n"), relayOptions{}, func(ai.StreamEvent) error {
		t.Fatalf("emit called after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("relayStream returned %v, want context.Canceled", err)
	}
}

// TestRelayStream_EmitFailureAborts verifies that an emit callback error
// aborts the relay and propagates unchanged.
func TestRelayStream_EmitFailureAborts(t *testing.T) {
	raw := "data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"a\"}}]}}\n\n" +
		"data: {\"output\":{\"choices\":[{\"message\":{\"content\":\"b\"}}]}}\n\n"

	sink := errors.New("client went away")
	calls := 0
	err := relayStream(context.Background(), strings.NewReader(raw), relayOptions{}, func(ai.StreamEvent) error {
		calls++
		return sink
	})
	if !errors.Is(err, sink) {
		t.Fatalf("relayStream returned %v, want sink error", err)
	}
	if calls != 1 {
		t.Errorf("emit called %d times after failure, want 1", calls)
	}
}

// TestRelayStream_SearchUsageFromResults verifies that attached search
// results imply one search call when the plugin counter is absent.
func TestRelayStream_SearchUsageFromResults(t *testing.T) {
	raw := "data: {\"output\":{\"search_info\":{\"search_results\":[{},{}]},\"choices\":[{\"message\":{\"content\":\"cited answer\"},\"finish_reason\":\"stop\"}]}}\n\n" +
		"data: [DONE]\n\n"

	events, err := collectEvents(t, raw, relayOptions{trackUsage: true})
	if err != nil {
		t.Fatalf("relayStream returned %v, want nil", err)
	}

	var usage *ai.SearchUsage
	for _, event := range events {
		if event.Type == ai.StreamEventSearchUsage {
			usage = event.Usage
		}
	}
	if usage == nil {
		t.Fatalf("no search_usage event emitted")
	}
	if usage.WebSearchCalls != 1 {
		t.Errorf("WebSearchCalls = %d, want 1 implied by attached results", usage.WebSearchCalls)
	}
	if usage.SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2", usage.SourceCount)
	}
}
