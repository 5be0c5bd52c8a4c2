package dashscope

import (
	"strings"
)

// Protocol identifies one of the three DashScope wire protocols.
type Protocol string

const (
	// ProtocolChat is the OpenAI-compatible chat completions protocol.
	ProtocolChat Protocol = "chat"
	// ProtocolResponses is the OpenAI Responses-compatible protocol.
	ProtocolResponses Protocol = "responses"
	// ProtocolNative is the native DashScope generation protocol
	// (text-generation and multimodal-generation endpoints).
	ProtocolNative Protocol = "dashscope"
)

// ResolveProtocol normalizes a free-form protocol name to one of the three
// supported protocols. Unknown values fall back to the chat protocol.
func ResolveProtocol(value string) Protocol {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "responses", "response":
		return ProtocolResponses
	case "dashscope", "native":
		return ProtocolNative
	default:
		return ProtocolChat
	}
}

// FixedSampling pins sampling parameters for model families whose upstream
// rejects anything else. When present on a policy it always overrides
// caller-requested values, never the reverse.
type FixedSampling struct {
	Temperature float64
	TopP        float64
}

// ModelPolicy is the result of classifying a model identifier. It decides
// whether the model may be called at all, whether a specific protocol is
// forced, which features are available, and whether sampling is pinned.
// Policies are pure values recomputed per call and never mutated.
type ModelPolicy struct {
	Key                   string         // Policy family identifier (for logs)
	Supported             bool           // False blocks the call before any network I/O
	ForceProtocol         Protocol       // Non-empty overrides the requested protocol
	AllowWebSearch        bool           // Whether web search may be enabled for this model
	AllowImageInput       bool           // Whether image input is accepted
	FixedSampling         *FixedSampling // Non-nil pins temperature/top_p
	ForceNativeMultimodal bool           // Forces the native multimodal endpoint
	MatchedModelID        string         // Normalized identifier the tables matched against
	ErrorMessage          string         // User-facing rejection reason when Supported is false
}

const (
	minimaxFixedTemperature = 1
	minimaxFixedTopP        = 0.95

	kimiFamilyPrefix = "kimi-"
)

var (
	glmPrefixes       = []string{"glm-", "chatglm"}
	kimiK25Prefixes   = []string{"kimi-k2.5", "kimi-2.5"}
	minimaxM2Prefixes = []string{
		"minimax/minimax-m2.5",
		"minimax/minimax-m2.1",
		"minimax-m2.5",
		"minimax-m2.1",
	}
)

// ResolveModelPolicy classifies a model identifier into a ModelPolicy. The
// identifier may carry a namespace prefix separated by "/"; both the full
// lowercased string and the substring after the last "/" are matched against
// the prefix tables. Pure function, safe to call concurrently.
func ResolveModelPolicy(model string) ModelPolicy {
	candidates := modelCandidates(model)
	normalizedModel := ""
	if len(candidates) > 0 {
		normalizedModel = candidates[0]
	}

	if anyCandidateMatches(candidates, glmPrefixes) {
		return ModelPolicy{
			Key:            "glm_blocked",
			MatchedModelID: normalizedModel,
			ErrorMessage:   "the GLM model family is disabled on this DashScope deployment; please choose another model",
		}
	}

	kimiFamily := false
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, kimiFamilyPrefix) {
			kimiFamily = true
			break
		}
	}
	kimiK25 := anyCandidateMatches(candidates, kimiK25Prefixes)
	if kimiFamily && !kimiK25 {
		return ModelPolicy{
			Key:            "kimi_blocked",
			MatchedModelID: normalizedModel,
			ErrorMessage:   "DashScope only serves Kimi as kimi-k2.5 (multimodal); please choose another model",
		}
	}
	if kimiK25 {
		return ModelPolicy{
			Key:                   "kimi_k2_5",
			Supported:             true,
			ForceProtocol:         ProtocolNative,
			AllowImageInput:       true,
			ForceNativeMultimodal: true,
			MatchedModelID:        normalizedModel,
		}
	}

	if anyCandidateMatches(candidates, minimaxM2Prefixes) {
		return ModelPolicy{
			Key:           "minimax_m2",
			Supported:     true,
			ForceProtocol: ProtocolChat,
			FixedSampling: &FixedSampling{
				Temperature: minimaxFixedTemperature,
				TopP:        minimaxFixedTopP,
			},
			MatchedModelID: normalizedModel,
		}
	}

	return ModelPolicy{
		Key:             "default",
		Supported:       true,
		AllowWebSearch:  true,
		AllowImageInput: true,
		MatchedModelID:  normalizedModel,
	}
}

// modelCandidates builds the candidate set for prefix matching: the full
// lowercased identifier, plus the part after the last "/" when a namespace
// prefix is present.
func modelCandidates(model string) []string {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return nil
	}
	candidates := []string{normalized}
	if slash := strings.LastIndex(normalized, "/"); slash > -1 && slash < len(normalized)-1 {
		bare := normalized[slash+1:]
		if bare != normalized {
			candidates = append(candidates, bare)
		}
	}
	return candidates
}

func anyCandidateMatches(candidates, prefixes []string) bool {
	for _, candidate := range candidates {
		if matchesAnyPrefix(candidate, prefixes) {
			return true
		}
	}
	return false
}

// matchesAnyPrefix reports whether value equals a prefix, continues it after a
// hyphen, or simply starts with it. Matching is anchored at the start of the
// string; a prefix appearing mid-string never matches.
func matchesAnyPrefix(value string, prefixes []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return false
	}
	for _, raw := range prefixes {
		prefix := strings.ToLower(strings.TrimSpace(raw))
		if prefix == "" {
			continue
		}
		if normalized == prefix || strings.HasPrefix(normalized, prefix+"-") || strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// modelClass is the outcome of the native-endpoint content classification.
type modelClass int

const (
	modelClassUnknown modelClass = iota
	modelClassMultimodal
	modelClassText
)

// Native endpoint classification tables. A model matching neither table is
// classified by structurally scanning its messages for multimodal content.
var (
	nativeMultimodalPrefixes = []string{
		"qwen3.5-plus",
		"kimi-k2.5",
		"kimi-2.5",
		"qwen3-vl",
		"qwen-vl",
		"qvq",
		"qwen-omni",
		"qwen3-omni",
		"qwen2.5-omni",
		"qwen-audio",
		"qwen2-audio",
		"qwen2-vl",
		"qwen2.5-vl",
		"qwen3-livetranslate",
	}
	nativeTextPrefixes = []string{
		"qwen3-max",
		"qwen-max",
		"qwen-plus",
		"qwen-flash",
		"qwen-turbo",
		"qwen-long",
		"qwen-coder",
		"qwen-math",
		"qwen-mt-",
		"qwen3-coder",
		"qwen3-",
		"qwen2.5-",
		"qwen2-",
		"qwen-",
		"deepseek-",
		"kimi-",
		"glm-",
		"minimax-",
	}
)

// classifyNativeModel places a model on the native text-generation or
// multimodal-generation endpoint by prefix table. Plain prefix matching here,
// as both tables carry their own hyphenation.
func classifyNativeModel(model string) modelClass {
	candidates := modelCandidates(model)
	if len(candidates) == 0 {
		return modelClassUnknown
	}
	for _, candidate := range candidates {
		for _, prefix := range nativeMultimodalPrefixes {
			if strings.HasPrefix(candidate, prefix) {
				return modelClassMultimodal
			}
		}
	}
	for _, candidate := range candidates {
		for _, prefix := range nativeTextPrefixes {
			if strings.HasPrefix(candidate, prefix) {
				return modelClassText
			}
		}
	}
	return modelClassUnknown
}
