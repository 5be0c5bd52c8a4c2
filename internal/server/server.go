package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lectio/dashrelay/internal/config"
	"github.com/lectio/dashrelay/providers/ai"
	"github.com/lectio/dashrelay/providers/ai/dashscope"
)

const (
	maxRequestBody      = "1M"
	shutdownGracePeriod = 10 * time.Second
)

// Server exposes the DashScope relay as an SSE endpoint. It is the
// surrounding-application boundary: it owns routing, request decoding and
// timeouts, and forwards normalized relay events onto the caller's own
// event stream.
type Server struct {
	cfg      config.Config
	provider *dashscope.Provider
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, provider *dashscope.Provider) (*Server, error) {
	if provider == nil {
		return nil, errors.New("provider must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxRequestBody))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:      cfg,
		provider: provider,
		app:      e,
		address:  fmt.Sprintf(":%d", cfg.Server.Port),
	}
	srv.registerRoutes()
	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/chat/stream", s.handleChatStream)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// streamRequest is the inbound request body of the SSE endpoint.
type streamRequest struct {
	Model            string               `json:"model"`
	Messages         []ai.Message         `json:"messages"`
	SystemPrompt     string               `json:"system_prompt"`
	ThinkingEnabled  bool                 `json:"thinking_enabled"`
	GenerationConfig *ai.GenerationConfig `json:"generation_config"`

	Protocol           string `json:"protocol"`
	ThinkingBudget     int    `json:"thinking_budget"`
	RelayReasoning     bool   `json:"relay_reasoning"`
	TrackSearchUsage   bool   `json:"track_search_usage"`
	PreviousResponseID string `json:"previous_response_id"`

	Search searchRequest `json:"search"`
}

// searchRequest mirrors dashscope.SearchConfig on the wire.
type searchRequest struct {
	Enabled               bool     `json:"enabled"`
	MaxToolCalls          int      `json:"max_tool_calls"`
	Strategy              string   `json:"strategy"`
	Forced                bool     `json:"forced"`
	EnableExtension       bool     `json:"enable_extension"`
	FreshnessDays         int      `json:"freshness_days"`
	AssignedSites         []string `json:"assigned_sites"`
	PromptIntervene       string   `json:"prompt_intervene"`
	EnableSource          bool     `json:"enable_source"`
	EnableCitation        bool     `json:"enable_citation"`
	CitationFormat        string   `json:"citation_format"`
	PrependSearchResult   bool     `json:"prepend_search_result"`
	EnableWebExtractor    bool     `json:"enable_web_extractor"`
	EnableCodeInterpreter bool     `json:"enable_code_interpreter"`
}

func (r searchRequest) toConfig() dashscope.SearchConfig {
	return dashscope.SearchConfig{
		Enabled:               r.Enabled,
		MaxToolCalls:          r.MaxToolCalls,
		Strategy:              r.Strategy,
		Forced:                r.Forced,
		EnableExtension:       r.EnableExtension,
		FreshnessDays:         r.FreshnessDays,
		AssignedSites:         r.AssignedSites,
		PromptIntervene:       r.PromptIntervene,
		EnableSource:          r.EnableSource,
		EnableCitation:        r.EnableCitation,
		CitationFormat:        r.CitationFormat,
		PrependSearchResult:   r.PrependSearchResult,
		EnableWebExtractor:    r.EnableWebExtractor,
		EnableCodeInterpreter: r.EnableCodeInterpreter,
	}
}

// handleChatStream drives one relay pipeline and forwards its events to the
// client as SSE. Pre-stream failures return a JSON error; failures after the
// stream has started are delivered as a terminal error event.
func (s *Server) handleChatStream(c echo.Context) error {
	var req streamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Model == "" || len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "model and messages are required")
	}

	requestID := uuid.NewString()
	opts := dashscope.Options{
		Protocol:           req.Protocol,
		ThinkingBudget:     req.ThinkingBudget,
		RelayReasoning:     req.RelayReasoning,
		TrackSearchUsage:   req.TrackSearchUsage,
		PreviousResponseID: req.PreviousResponseID,
		Search:             req.Search.toConfig(),
	}

	// Reject unsupported models before committing to an SSE response, so the
	// client still gets a proper HTTP error.
	policy := dashscope.ResolveModelPolicy(req.Model)
	if !policy.Supported {
		return echo.NewHTTPError(http.StatusBadRequest, policy.ErrorMessage)
	}

	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing", "request_id", requestID)
		return echo.NewHTTPError(http.StatusInternalServerError, "server does not support streaming responses")
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Request-Id", requestID)
	c.Response().WriteHeader(http.StatusOK)

	// Surface the silent search downgrade to the UI before any token flows.
	protocol := dashscope.ResolveProtocol(req.Protocol)
	if policy.ForceProtocol != "" {
		protocol = policy.ForceProtocol
	}
	runtime := dashscope.ResolveWebSearchRuntime(protocol, policy, opts.Search)
	if runtime.ForcedOffReason != "" {
		if err := writeEvent(writer, flusher, "notice", map[string]string{"text": runtime.ForcedOffReason}); err != nil {
			return err
		}
	}

	request := ai.ChatRequest{
		Model:            req.Model,
		Messages:         req.Messages,
		SystemPrompt:     req.SystemPrompt,
		ThinkingEnabled:  req.ThinkingEnabled,
		GenerationConfig: req.GenerationConfig,
	}

	streamErr := s.provider.StreamChatWithOptions(c.Request().Context(), request, opts, func(event ai.StreamEvent) error {
		var payload any
		if event.Type == ai.StreamEventSearchUsage {
			payload = event.Usage
		} else {
			payload = map[string]string{"text": event.Text}
		}
		return writeEvent(writer, flusher, string(event.Type), payload)
	})
	if streamErr != nil {
		slog.Warn("stream failed", "request_id", requestID, "model", req.Model, "error", streamErr)
		// The SSE response is already committed; deliver the failure in-band.
		if err := writeEvent(writer, flusher, "error", map[string]string{"text": streamErr.Error()}); err != nil {
			return err
		}
	}

	return writeEvent(writer, flusher, "done", map[string]string{})
}

// writeEvent writes one named SSE event and flushes it to the client.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	flusher.Flush()
	return nil
}
