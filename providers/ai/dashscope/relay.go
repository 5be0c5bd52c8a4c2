package dashscope

import (
	"context"
	"encoding/json"
	"io"

	"github.com/lectio/dashrelay/internal/utils"
	"github.com/lectio/dashrelay/providers/ai"
)

// relayOptions configures one relay run.
type relayOptions struct {
	relayReasoning bool // forward reasoning deltas as reasoning_token events
	trackUsage     bool // emit the terminal search_usage event
}

// relayState is the per-stream bookkeeping of the relay loop.
type relayState struct {
	sawContent   bool
	sawReasoning bool
	usageEmitted bool
	pendingUsage *ai.SearchUsage
}

// finishReasons that mark the final chunk of a completed answer.
func isFinalChunk(finishReason string) bool {
	return finishReason == "stop" || finishReason == "length" || finishReason == "tool_calls"
}

// relayStream consumes the upstream byte stream frame by frame and emits
// normalized events in source order. It returns nil on a clean stream, an
// *UpstreamError for an in-band error frame, ErrReasoningOnly/ErrNoContent
// for content-completeness failures, and the context error on cancellation.
// No events are emitted after it returns; at most one frame is buffered ahead
// of the caller's emit callback.
func relayStream(ctx context.Context, body io.Reader, opts relayOptions, emit ai.EmitFunc) error {
	scanner := utils.NewFrameScanner(body)
	state := &relayState{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := scanner.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		done, err := processFrame(frame, opts, state, emit)
		if err != nil {
			return err
		}
		if done {
			// [DONE] sentinel: flush the usage snapshot and finish.
			return emitUsage(opts, state, emit)
		}
	}

	// Natural stream end without the sentinel.
	if err := emitUsage(opts, state, emit); err != nil {
		return err
	}
	if !state.sawContent && state.sawReasoning {
		return ErrReasoningOnly
	}
	if !state.sawContent {
		return ErrNoContent
	}
	return nil
}

// processFrame handles one complete frame. The first return value reports the
// [DONE] sentinel. Frames that are empty or fail to parse as JSON are
// discarded silently so a partial or malformed chunk never kills the stream;
// frames carrying an in-band error payload abort the relay with a classified
// failure.
func processFrame(frame []byte, opts relayOptions, state *relayState, emit ai.EmitFunc) (bool, error) {
	data := utils.FrameData(frame)
	if data == "" {
		return false, nil
	}
	if data == utils.DoneSentinel {
		return true, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return false, nil
	}

	if err := chunkError(&chunk, data); err != nil {
		return false, err
	}

	if opts.trackUsage {
		state.pendingUsage = extractSearchUsage(&chunk)
	}

	choice := firstChoice(&chunk)
	if choice == nil {
		return false, nil
	}
	message := choice.Message
	if message == nil {
		message = choice.Delta
	}

	if message != nil {
		if content := string(message.Content); content != "" {
			state.sawContent = true
			if err := emit(ai.StreamEvent{Type: ai.StreamEventToken, Text: content}); err != nil {
				return false, err
			}
		}
		if reasoning := message.reasoning(); opts.relayReasoning && reasoning != "" {
			state.sawReasoning = true
			if err := emit(ai.StreamEvent{Type: ai.StreamEventReasoningToken, Text: reasoning}); err != nil {
				return false, err
			}
		}
	}

	if opts.trackUsage && !state.usageEmitted && isFinalChunk(choice.finish()) {
		if err := emitUsage(opts, state, emit); err != nil {
			return false, err
		}
	}

	return false, nil
}

// emitUsage emits the pending usage snapshot, or a zero-value one when no
// snapshot was captured. It is a no-op when usage tracking was not requested
// or the event already went out, so the search_usage event fires exactly once
// per stream lifecycle.
func emitUsage(opts relayOptions, state *relayState, emit ai.EmitFunc) error {
	if !opts.trackUsage || state.usageEmitted {
		return nil
	}
	usage := state.pendingUsage
	if usage == nil {
		usage = zeroSearchUsage()
	}
	state.usageEmitted = true
	return emit(ai.StreamEvent{Type: ai.StreamEventSearchUsage, Usage: usage})
}

// firstChoice returns the first choice of a chunk, looking under output
// (native protocol) before the top level (chat and responses protocols).
func firstChoice(chunk *streamChunk) *streamChoice {
	if chunk.Output != nil && len(chunk.Output.Choices) > 0 {
		return &chunk.Output.Choices[0]
	}
	if len(chunk.Choices) > 0 {
		return &chunk.Choices[0]
	}
	return nil
}

// chunkError detects in-band error frames: a status field of 400 or above,
// both a nonempty code and message, or an OpenAI-style nested error object.
func chunkError(chunk *streamChunk, raw string) error {
	status := int(chunk.StatusCode)
	code := sanitizeText(chunk.Code, 120)
	message := sanitizeText(chunk.Message, 500)

	isError := status >= 400 || (code != "" && message != "")
	if !isError && chunk.Error != nil && (chunk.Error.Code != "" || chunk.Error.Message != "") {
		isError = true
		code = sanitizeText(chunk.Error.Code, 120)
		message = sanitizeText(chunk.Error.Message, 500)
	}
	if !isError {
		return nil
	}

	if status < 100 || status > 599 {
		status = 500
	}
	return &UpstreamError{Status: status, Code: code, Message: message, Raw: raw}
}
