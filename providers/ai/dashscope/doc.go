// Package dashscope implements ai.StreamProvider against Alibaba Cloud
// DashScope, which exposes three mutually incompatible wire protocols: an
// OpenAI-compatible chat completions protocol, an OpenAI Responses-compatible
// protocol, and the native generation protocol with separate text and
// multimodal endpoints.
//
// A call flows through [ResolveModelPolicy] (which may reject the model,
// force a protocol, pin sampling, or gate features), the protocol-specific
// payload builder, [ResolveWebSearchRuntime], and finally the streaming
// relay, which splits the upstream SSE body into frames, detects in-band
// error payloads that arrive with HTTP 200, and emits token /
// reasoning_token / search_usage events in source order with exactly one
// terminal usage event per stream.
//
// The package holds no per-request state and performs no retries; retry
// policy, persistence and timeouts belong to the caller.
package dashscope
