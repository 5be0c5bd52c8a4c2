// Package ai defines the provider-agnostic chat model shared by all protocol
// adapters: the canonical [ChatRequest] with its ordered [Message] list, the
// [MessageContent] tagged union that decodes heterogeneous wire content shapes
// exactly once at the boundary, and the normalized outbound event contract
// ([StreamEvent], [EmitFunc]) through which adapters relay upstream output to
// the caller's own stream.
//
// The package holds no state and performs no I/O; concrete adapters such as
// dashscope implement [StreamProvider] on top of it.
package ai
