package dashscope

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lectio/dashrelay/providers/ai"
)

// Tool is one entry of the responses-protocol tool list.
type Tool struct {
	Type string `json:"type"`
}

// WebSearchRuntime is the resolved web-search decision for one call: whether
// search is actually on, the protocol-appropriate options object and tool
// list, and a user-facing note when a requested search was forced off by
// model policy.
type WebSearchRuntime struct {
	Requested       bool
	Enabled         bool
	MaxToolCalls    int
	Protocol        Protocol
	Options         map[string]any
	Tools           []Tool
	ForcedOffReason string
}

// ResolveWebSearchRuntime computes the web-search runtime for one call.
// Search is enabled only when the caller requested it and the model policy
// allows it; a requested-but-disallowed search populates ForcedOffReason so
// the UI can explain the silent downgrade.
func ResolveWebSearchRuntime(protocol Protocol, policy ModelPolicy, search SearchConfig) WebSearchRuntime {
	runtime := WebSearchRuntime{
		Requested:    search.Enabled,
		Enabled:      search.Enabled && policy.AllowWebSearch,
		MaxToolCalls: clampInt(search.MaxToolCalls, defaultMaxToolCalls, 1, maxToolCalls),
		Protocol:     protocol,
	}

	if runtime.Enabled {
		runtime.Options = buildSearchOptions(search, protocol)
		if protocol == ProtocolResponses {
			runtime.Tools = append(runtime.Tools, Tool{Type: "web_search"})
			if search.EnableWebExtractor {
				runtime.Tools = append(runtime.Tools, Tool{Type: "web_extractor"})
			}
			if search.EnableCodeInterpreter {
				runtime.Tools = append(runtime.Tools, Tool{Type: "code_interpreter"})
			}
		}
	}

	if runtime.Requested && !runtime.Enabled {
		runtime.ForcedOffReason = "web search is not supported by the current model policy and has been turned off for this request"
	}

	return runtime
}

// buildSearchOptions assembles the search_options object shared by the chat
// and native payloads. Defaults are omitted; only the native protocol gets
// the citation/source/prepend extras.
func buildSearchOptions(search SearchConfig, protocol Protocol) map[string]any {
	options := map[string]any{}

	if search.Forced {
		options["forced_search"] = true
	}
	if strategy := sanitizeSearchStrategy(search.Strategy); strategy != "turbo" {
		options["search_strategy"] = strategy
	}
	if search.EnableExtension {
		options["enable_search_extension"] = true
	}
	if freshness := sanitizeFreshness(search.FreshnessDays); freshness > 0 {
		options["freshness"] = freshness
	}
	if sites := sanitizeAssignedSites(search.AssignedSites); len(sites) > 0 {
		options["assigned_site_list"] = sites
	}
	if intervene := sanitizePromptIntervene(search.PromptIntervene); intervene != "" {
		options["intention_options"] = map[string]any{"prompt_intervene": intervene}
	}

	if protocol == ProtocolNative {
		if search.EnableSource {
			options["enable_source"] = true
		}
		if search.EnableCitation {
			options["enable_citation"] = true
			options["citation_format"] = sanitizeCitationFormat(search.CitationFormat)
		}
		if search.PrependSearchResult {
			options["prepend_search_result"] = true
		}
	}

	return options
}

var assignedSitePattern = regexp.MustCompile(`^[a-z0-9.-]+$`)

// sanitizeAssignedSites normalizes the assigned-site allow-list: each entry is
// stripped of scheme and path and lowercased, entries that are not bare
// hostnames are dropped, duplicates are removed, and the list is capped at
// maxAssignedSiteCount entries.
func sanitizeAssignedSites(sites []string) []string {
	seen := map[string]bool{}
	var list []string
	limit := maxAssignedSiteCount * 2
	for index, site := range sites {
		if index >= limit || len(list) >= maxAssignedSiteCount {
			break
		}
		normalized := normalizeAssignedSite(site)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		list = append(list, normalized)
	}
	return list
}

// normalizeAssignedSite reduces one allow-list entry to a bare lowercase
// hostname. Entries without a dot or with characters outside [a-z0-9.-] are
// rejected.
func normalizeAssignedSite(site string) string {
	stripped := strings.ToLower(strings.TrimSpace(site))
	stripped = strings.TrimPrefix(stripped, "https://")
	stripped = strings.TrimPrefix(stripped, "http://")
	if slash := strings.Index(stripped, "/"); slash > -1 {
		stripped = stripped[:slash]
	}
	if stripped == "" {
		return ""
	}
	if !assignedSitePattern.MatchString(stripped) {
		return ""
	}
	if !strings.Contains(stripped, ".") {
		return ""
	}
	if len(stripped) > 120 {
		stripped = stripped[:120]
	}
	return stripped
}

// zeroSearchUsage is the terminal usage snapshot for a stream during which no
// search was triggered. Always emittable.
func zeroSearchUsage() *ai.SearchUsage {
	return &ai.SearchUsage{
		Details: map[string]int{},
		Text:    "web search usage: web_search=0 (no search triggered this turn)",
	}
}

// extractSearchUsage builds a usage snapshot from one native stream chunk.
// The call count comes from the search plugin counter; when the counter is
// absent but search results are attached, the search counts as one call.
func extractSearchUsage(chunk *streamChunk) *ai.SearchUsage {
	count := 0
	if chunk.Usage != nil && chunk.Usage.Plugins != nil && chunk.Usage.Plugins.Search != nil {
		count = int(chunk.Usage.Plugins.Search.Count)
		if count < 0 {
			count = 0
		}
	}

	sourceCount := 0
	if chunk.Output != nil && chunk.Output.SearchInfo != nil {
		sourceCount = len(chunk.Output.SearchInfo.SearchResults)
	}

	webSearchCalls := count
	if webSearchCalls == 0 && sourceCount > 0 {
		webSearchCalls = 1
	}
	if webSearchCalls == 0 {
		return zeroSearchUsage()
	}

	details := map[string]int{}
	if count > 0 {
		details["search"] = count
	}

	return &ai.SearchUsage{
		WebSearchCalls: webSearchCalls,
		Details:        details,
		SourceCount:    sourceCount,
		Text:           fmt.Sprintf("web search usage: web_search=%d, search_results=%d", webSearchCalls, sourceCount),
	}
}
