package dashscope

import (
	"github.com/lectio/dashrelay/internal/utils"
	"github.com/lectio/dashrelay/providers/ai"
)

// Default sampling values applied when the caller does not set them.
const (
	defaultTemperature      = 0.6
	defaultTopP             = 1
	defaultFrequencyPenalty = 0
	defaultPresencePenalty  = 0
)

// sampling resolves the effective temperature/top_p pair: caller values
// clamped to the protocol-documented ranges, with policy FixedSampling
// overriding unconditionally when present.
func sampling(config *ai.GenerationConfig, policy ModelPolicy) (temperature, topP float64) {
	var requestedTemperature, requestedTopP *float64
	if config != nil {
		requestedTemperature = config.Temperature
		requestedTopP = config.TopP
	}
	if policy.FixedSampling != nil {
		requestedTemperature = &policy.FixedSampling.Temperature
		requestedTopP = &policy.FixedSampling.TopP
	}
	temperature = clampFloat(requestedTemperature, defaultTemperature, 0, 2)
	topP = clampFloat(requestedTopP, defaultTopP, 0, 1)
	return temperature, topP
}

// withSystemPrompt returns the message list with the system prompt prefixed
// as a system message when one is present.
func withSystemPrompt(request ai.ChatRequest) []ai.Message {
	if request.SystemPrompt == "" {
		return request.Messages
	}
	messages := make([]ai.Message, 0, len(request.Messages)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: ai.TextContent(request.SystemPrompt)})
	return append(messages, request.Messages...)
}

// buildChatPayload assembles the OpenAI-compatible chat completions body.
// Message content passes through unmodified; this protocol accepts the wire
// shapes as-is.
func buildChatPayload(request ai.ChatRequest, policy ModelPolicy, opts Options, search WebSearchRuntime) chatPayload {
	temperature, topP := sampling(request.GenerationConfig, policy)

	var frequencyPenalty, presencePenalty *float64
	if request.GenerationConfig != nil {
		frequencyPenalty = request.GenerationConfig.FrequencyPenalty
		presencePenalty = request.GenerationConfig.PresencePenalty
	}

	payload := chatPayload{
		Model:            request.Model,
		Stream:           true,
		Messages:         withSystemPrompt(request),
		Temperature:      temperature,
		TopP:             topP,
		FrequencyPenalty: clampFloat(frequencyPenalty, defaultFrequencyPenalty, -2, 2),
		PresencePenalty:  clampFloat(presencePenalty, defaultPresencePenalty, -2, 2),
		EnableThinking:   request.ThinkingEnabled,
		ThinkingBudget:   clampInt(opts.ThinkingBudget, 0, 0, maxReasoningBudget),
	}

	if search.Enabled {
		payload.EnableSearch = true
		if len(search.Options) > 0 {
			payload.SearchOptions = search.Options
		}
	}

	return payload
}

// buildResponsesPayload assembles the OpenAI Responses-compatible body. The
// system prompt travels as length-capped instructions; tools are attached
// only when search is enabled and produced a non-empty tool list.
func buildResponsesPayload(request ai.ChatRequest, opts Options, search WebSearchRuntime) responsesPayload {
	inputBuilder := opts.ResponsesInput
	if inputBuilder == nil {
		inputBuilder = defaultResponsesInput
	}

	payload := responsesPayload{
		Model:          request.Model,
		Stream:         true,
		Input:          inputBuilder(request.Messages),
		EnableThinking: request.ThinkingEnabled,
		Instructions:   sanitizeText(request.SystemPrompt, maxInstructionsLength),
		ThinkingBudget: clampInt(opts.ThinkingBudget, 0, 0, maxReasoningBudget),
	}

	if search.Enabled && len(search.Tools) > 0 {
		payload.Tools = search.Tools
		payload.MaxToolCalls = search.MaxToolCalls
	}

	payload.PreviousResponseID = sanitizeText(opts.PreviousResponseID, maxPreviousResponseIDLen)
	payload.Store = opts.ForceStore

	return payload
}

// defaultResponsesInput maps messages to responses input items: plain-text
// content becomes a single input_text unit, anything else passes through in
// its original wire shape.
func defaultResponsesInput(messages []ai.Message) any {
	items := make([]responsesInputItem, 0, len(messages))
	for _, message := range messages {
		if message.Content.IsText() {
			items = append(items, responsesInputItem{
				Role:    message.Role,
				Content: []responsesInputText{{Type: "input_text", Text: message.Content.PlainText()}},
			})
			continue
		}
		items = append(items, responsesInputItem{Role: message.Role, Content: message.Content})
	}
	return items
}

// buildNativePayload assembles the native DashScope generation body. The
// second return value reports whether the multimodal-generation endpoint must
// be used; when it is, message content is normalized to typed units,
// otherwise the messages pass through unmodified.
func buildNativePayload(request ai.ChatRequest, policy ModelPolicy, opts Options, search WebSearchRuntime) (nativePayload, bool) {
	messages := withSystemPrompt(request)
	multimodal := useNativeMultimodal(policy, request.Model, messages)

	input := nativeInput{}
	if multimodal {
		normalized := make([]nativeMessage, 0, len(messages))
		for _, message := range messages {
			normalized = append(normalized, normalizeNativeMessage(message))
		}
		input.Messages = normalized
	} else {
		input.Messages = messages
	}

	temperature, topP := sampling(request.GenerationConfig, policy)
	parameters := nativeParameters{
		ResultFormat:      "message",
		IncrementalOutput: true,
		EnableThinking:    request.ThinkingEnabled,
		Temperature:       temperature,
		TopP:              topP,
		ThinkingBudget:    clampInt(opts.ThinkingBudget, 0, 0, maxReasoningBudget),
	}

	if search.Enabled {
		parameters.EnableSearch = true
		if len(search.Options) > 0 {
			parameters.SearchOptions = search.Options
		}
	}

	return nativePayload{Model: request.Model, Input: input, Parameters: parameters}, multimodal
}

// useNativeMultimodal decides between the native text-generation and
// multimodal-generation endpoints: policy forcing first, then the per-model
// prefix tables, then a structural scan of the message contents for any
// multimodal parts.
func useNativeMultimodal(policy ModelPolicy, model string, messages []ai.Message) bool {
	if policy.ForceNativeMultimodal {
		return true
	}
	switch classifyNativeModel(model) {
	case modelClassMultimodal:
		return true
	case modelClassText:
		return false
	}
	for _, message := range messages {
		if message.Content.HasMultimodal() {
			return true
		}
	}
	return false
}

// normalizeNativeMessage converts one message to the multimodal endpoint
// shape. Unknown roles collapse to user. A message whose content normalized
// to nothing gets a single empty text unit so the protocol still receives a
// well-formed message.
func normalizeNativeMessage(message ai.Message) nativeMessage {
	role := message.Role
	if role != ai.RoleAssistant && role != ai.RoleSystem {
		role = ai.RoleUser
	}

	var units []nativeContentUnit
	for _, part := range message.Content.Parts() {
		if unit, ok := nativeUnit(part); ok {
			units = append(units, unit)
		}
	}
	if len(units) == 0 {
		units = []nativeContentUnit{{Text: utils.Ptr("")}}
	}

	return nativeMessage{Role: role, Content: units}
}

// nativeUnit maps one decoded content part to a native content unit.
func nativeUnit(part ai.ContentPart) (nativeContentUnit, bool) {
	switch part.Type {
	case ai.ContentTypeText:
		return nativeContentUnit{Text: utils.Ptr(part.Text)}, true
	case ai.ContentTypeImage:
		return nativeContentUnit{Image: part.URL}, true
	case ai.ContentTypeAudio:
		return nativeContentUnit{Audio: part.URL}, true
	case ai.ContentTypeVideo:
		if len(part.URLs) > 0 {
			return nativeContentUnit{Video: part.URLs}, true
		}
		return nativeContentUnit{Video: part.URL}, true
	case ai.ContentTypeFile:
		return nativeContentUnit{File: part.URL}, true
	}
	return nativeContentUnit{}, false
}
