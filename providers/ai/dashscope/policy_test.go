package dashscope

import (
	"testing"
)

// TestResolveProtocol_Aliases verifies that protocol names and their aliases
// normalize to the three supported protocols, with unknown values falling
// back to chat.
func TestResolveProtocol_Aliases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Protocol
	}{
		{name: "empty defaults to chat", input: "", want: ProtocolChat},
		{name: "chat", input: "chat", want: ProtocolChat},
		{name: "responses", input: "responses", want: ProtocolResponses},
		{name: "response alias", input: "response", want: ProtocolResponses},
		{name: "dashscope", input: "dashscope", want: ProtocolNative},
		{name: "native alias", input: "native", want: ProtocolNative},
		{name: "mixed case", input: " Responses ", want: ProtocolResponses},
		{name: "unknown falls back to chat", input: "grpc", want: ProtocolChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveProtocol(tt.input); got != tt.want {
				t.Errorf("ResolveProtocol(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestResolveModelPolicy_GLMBlocked verifies that the GLM family is rejected
// regardless of casing or namespace prefix, and that lookalike names are not
// caught by the prefix match.
func TestResolveModelPolicy_GLMBlocked(t *testing.T) {
	blocked := []string{
		"glm-4",
		"GLM-4.5-Air",
		"chatglm3-6b",
		"zhipu/glm-4-plus",
		"ZHIPU/ChatGLM-Turbo",
	}
	for _, model := range blocked {
		policy := ResolveModelPolicy(model)
		if policy.Supported {
			t.Errorf("ResolveModelPolicy(%q).Supported = true, want blocked", model)
		}
		if policy.Key != "glm_blocked" {
			t.Errorf("ResolveModelPolicy(%q).Key = %q, want glm_blocked", model, policy.Key)
		}
		if policy.ErrorMessage == "" {
			t.Errorf("ResolveModelPolicy(%q) missing error message", model)
		}
	}

	// Prefix matching is anchored: a name merely containing "glm" passes.
	policy := ResolveModelPolicy("foglmore-7b")
	if !policy.Supported {
		t.Errorf("ResolveModelPolicy(foglmore-7b) blocked, want supported")
	}
	if policy.Key != "default" {
		t.Errorf("ResolveModelPolicy(foglmore-7b).Key = %q, want default", policy.Key)
	}
}

// TestResolveModelPolicy_KimiFamily verifies that only kimi-k2.5 survives the
// Kimi family filter, and that the surviving model is forced onto the native
// multimodal endpoint with web search disallowed.
func TestResolveModelPolicy_KimiFamily(t *testing.T) {
	tests := []struct {
		name          string
		model         string
		wantSupported bool
		wantKey       string
	}{
		{name: "kimi-k2 blocked", model: "kimi-k2", wantKey: "kimi_blocked"},
		{name: "kimi-latest blocked", model: "kimi-latest", wantKey: "kimi_blocked"},
		{name: "namespaced kimi-k2 blocked", model: "moonshot/kimi-k2-instruct", wantKey: "kimi_blocked"},
		{name: "kimi-k2.5 allowed", model: "kimi-k2.5", wantSupported: true, wantKey: "kimi_k2_5"},
		{name: "kimi-k2.5 variant allowed", model: "kimi-k2.5-turbo", wantSupported: true, wantKey: "kimi_k2_5"},
		{name: "kimi-2.5 alias allowed", model: "kimi-2.5", wantSupported: true, wantKey: "kimi_k2_5"},
		{name: "namespaced kimi-k2.5 allowed", model: "moonshot/kimi-k2.5", wantSupported: true, wantKey: "kimi_k2_5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := ResolveModelPolicy(tt.model)
			if policy.Supported != tt.wantSupported {
				t.Fatalf("Supported = %v, want %v", policy.Supported, tt.wantSupported)
			}
			if policy.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", policy.Key, tt.wantKey)
			}
			if tt.wantSupported {
				if policy.ForceProtocol != ProtocolNative {
					t.Errorf("ForceProtocol = %q, want %q", policy.ForceProtocol, ProtocolNative)
				}
				if !policy.ForceNativeMultimodal {
					t.Errorf("ForceNativeMultimodal = false, want true")
				}
				if policy.AllowWebSearch {
					t.Errorf("AllowWebSearch = true, want false")
				}
			}
		})
	}
}

// TestResolveModelPolicy_MiniMaxM2 verifies the MiniMax M2 policy: forced
// chat protocol and pinned sampling parameters.
func TestResolveModelPolicy_MiniMaxM2(t *testing.T) {
	for _, model := range []string{"minimax-m2.5", "minimax/minimax-m2.1", "MiniMax-M2.5-highres"} {
		policy := ResolveModelPolicy(model)
		if !policy.Supported {
			t.Fatalf("ResolveModelPolicy(%q) blocked, want supported", model)
		}
		if policy.Key != "minimax_m2" {
			t.Errorf("Key = %q, want minimax_m2", policy.Key)
		}
		if policy.ForceProtocol != ProtocolChat {
			t.Errorf("ForceProtocol = %q, want %q", policy.ForceProtocol, ProtocolChat)
		}
		if policy.FixedSampling == nil {
			t.Fatalf("FixedSampling = nil, want pinned values")
		}
		if policy.FixedSampling.Temperature != 1 || policy.FixedSampling.TopP != 0.95 {
			t.Errorf("FixedSampling = %+v, want temperature 1 top_p 0.95", *policy.FixedSampling)
		}
		if policy.AllowWebSearch {
			t.Errorf("AllowWebSearch = true, want false")
		}
	}
}

// TestResolveModelPolicy_Default verifies that unmatched models get the
// permissive default policy with no forced protocol.
func TestResolveModelPolicy_Default(t *testing.T) {
	policy := ResolveModelPolicy("qwen-max")
	if !policy.Supported {
		t.Fatalf("Supported = false, want true")
	}
	if policy.Key != "default" {
		t.Errorf("Key = %q, want default", policy.Key)
	}
	if policy.ForceProtocol != "" {
		t.Errorf("ForceProtocol = %q, want empty", policy.ForceProtocol)
	}
	if !policy.AllowWebSearch || !policy.AllowImageInput {
		t.Errorf("default policy should allow web search and image input, got %+v", policy)
	}
}

// TestClassifyNativeModel_PrefixTables verifies the text/multimodal endpoint
// classification, including the qwen3-vl vs qwen3- ordering (multimodal table
// wins) and the unknown outcome for unlisted models.
func TestClassifyNativeModel_PrefixTables(t *testing.T) {
	tests := []struct {
		model string
		want  modelClass
	}{
		{model: "qwen3-vl-plus", want: modelClassMultimodal},
		{model: "qwen-vl-max", want: modelClassMultimodal},
		{model: "qvq-72b-preview", want: modelClassMultimodal},
		{model: "qwen2.5-omni-7b", want: modelClassMultimodal},
		{model: "kimi-k2.5", want: modelClassMultimodal},
		{model: "qwen3-max", want: modelClassText},
		{model: "qwen-turbo-latest", want: modelClassText},
		{model: "deepseek-v3", want: modelClassText},
		{model: "minimax-m2.5", want: modelClassText},
		{model: "alibaba/qwen-plus", want: modelClassText},
		{model: "llama-3-70b", want: modelClassUnknown},
		{model: "", want: modelClassUnknown},
	}

	for _, tt := range tests {
		if got := classifyNativeModel(tt.model); got != tt.want {
			t.Errorf("classifyNativeModel(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}
