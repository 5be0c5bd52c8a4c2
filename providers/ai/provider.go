package ai

import (
	"context"
)

// StreamProvider is the interface a protocol adapter must satisfy to drive a
// chat request against an upstream backend and relay its incremental output.
// It covers the full lifecycle of a single request: policy resolution, payload
// construction, the outbound streaming call, and event normalization.
//
// Implementations hold no per-request state; a single provider value is safe
// to use from any number of concurrent pipelines. Each call runs one
// independent, sequential pipeline: pre-stream failures (unsupported model,
// auth, bad request, network) and terminal stream failures are returned as a
// normal error after zero or more events have been emitted.
type StreamProvider interface {
	// StreamChat sends a chat request and relays the upstream stream through
	// emit as normalized events until the stream ends, the context is
	// cancelled, or a terminal failure occurs. No events are emitted after
	// StreamChat returns.
	StreamChat(ctx context.Context, request ChatRequest, emit EmitFunc) error
}
