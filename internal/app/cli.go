package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lectio/dashrelay/internal/config"
	"github.com/lectio/dashrelay/internal/server"
	"github.com/lectio/dashrelay/providers/ai"
	"github.com/lectio/dashrelay/providers/ai/dashscope"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dashrelay",
		Short:         "Stream DashScope chat completions over a normalized SSE relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var cfgPath string
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SSE relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if overridePort != 0 {
				if overridePort <= 0 || overridePort > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
				}
				cfg.Server.Port = overridePort
			}

			srv, err := server.New(cfg, providerFromConfig(cfg))
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Run(ctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to YAML configuration file")
	cmd.Flags().IntVar(&overridePort, "port", 0, "Override server port from configuration")
	return cmd
}

func newChatCmd() *cobra.Command {
	var model string
	var protocol string
	var system string
	var thinking bool
	var reasoning bool
	var search bool

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Send one prompt and stream the reply to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" {
				return errors.New("chat command requires --model")
			}
			prompt := strings.Join(args, " ")

			provider := dashscope.New()
			request := ai.ChatRequest{
				Model:           model,
				SystemPrompt:    system,
				ThinkingEnabled: thinking,
				Messages: []ai.Message{
					{Role: ai.RoleUser, Content: ai.TextContent(prompt)},
				},
			}
			opts := dashscope.Options{
				Protocol:         protocol,
				RelayReasoning:   reasoning,
				TrackSearchUsage: search,
				Search:           dashscope.SearchConfig{Enabled: search},
			}

			err := provider.StreamChatWithOptions(cmd.Context(), request, opts, func(event ai.StreamEvent) error {
				switch event.Type {
				case ai.StreamEventToken:
					fmt.Print(event.Text)
				case ai.StreamEventReasoningToken:
					fmt.Fprint(os.Stderr, event.Text)
				case ai.StreamEventSearchUsage:
					if event.Usage != nil {
						fmt.Fprintf(os.Stderr, "\n%s\n", event.Usage.Text)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model name (required)")
	cmd.Flags().StringVar(&protocol, "protocol", "", "Upstream protocol: chat, responses or dashscope")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().BoolVar(&thinking, "thinking", false, "Enable model thinking")
	cmd.Flags().BoolVar(&reasoning, "reasoning", false, "Print reasoning tokens to stderr")
	cmd.Flags().BoolVar(&search, "search", false, "Enable web search and report its usage")
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func providerFromConfig(cfg config.Config) *dashscope.Provider {
	provider := dashscope.New()
	if cfg.DashScope.APIKey != "" {
		provider = provider.WithAPIKey(cfg.DashScope.APIKey)
	}
	endpoints := dashscope.Endpoints{
		Chat:             cfg.DashScope.ChatEndpoint,
		Responses:        cfg.DashScope.ResponsesEndpoint,
		NativeText:       cfg.DashScope.NativeTextEndpoint,
		NativeMultimodal: cfg.DashScope.NativeMultimodalEndpoint,
	}
	if endpoints != (dashscope.Endpoints{}) {
		provider = provider.WithEndpoints(endpoints)
	}
	return provider
}
