package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	deepsearch "github.com/quantalogic/open-deepsearch"
	"github.com/quantalogic/open-deepsearch/llm/claude"
	"github.com/quantalogic/open-deepsearch/llm/gemini"
	"github.com/quantalogic/open-deepsearch/llm/openai"
	"github.com/quantalogic/open-deepsearch/mcp"
	"github.com/quantalogic/open-deepsearch/tools"
)

func researchCommand() *cli.Command {
	return &cli.Command{
		Name:      "research",
		Usage:     "Research a subject and write a Markdown report",
		ArgsUsage: "<subject>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Value:   "openrouter",
				Sources: cli.EnvVars("DEEPSEARCH_PROVIDER"),
				Usage:   "LLM provider: openrouter, openai, claude or gemini",
			},
			&cli.StringFlag{
				Name:    "model",
				Sources: cli.EnvVars("DEEPSEARCH_MODEL"),
				Usage:   "Model name (provider default when empty)",
			},
			&cli.IntFlag{
				Name:    "iterations",
				Value:   deepsearch.DefaultMaxIterations,
				Sources: cli.EnvVars("DEEPSEARCH_ITERATIONS"),
				Usage:   "Maximum number of reasoning iterations",
			},
			&cli.StringFlag{
				Name:    "output",
				Value:   deepsearch.DefaultReportDir,
				Sources: cli.EnvVars("DEEPSEARCH_OUTPUT"),
				Usage:   "Directory for generated reports",
			},
			&cli.StringFlag{
				Name:    "workspace",
				Value:   "./workspace",
				Sources: cli.EnvVars("DEEPSEARCH_WORKSPACE"),
				Usage:   "Working directory for the file tools",
			},
			&cli.DurationFlag{
				Name:    "budget",
				Sources: cli.EnvVars("DEEPSEARCH_BUDGET"),
				Usage:   "Wall clock budget for the whole session (0 for none)",
			},
			&cli.BoolFlag{
				Name:    "blocking",
				Sources: cli.EnvVars("DEEPSEARCH_BLOCKING"),
				Usage:   "Use blocking completions instead of streaming",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not print progress events",
			},
			&cli.StringSliceFlag{
				Name:  "mcp-stdio",
				Usage: "MCP server command to run via stdio (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "mcp-sse",
				Usage: "MCP server URL to connect via SSE (repeatable)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("DEEPSEARCH_LOG_LEVEL"),
				Usage:   "Log level: debug, info, warn or error",
			},
		},
		Action: runResearch,
	}
}

func runResearch(ctx context.Context, cmd *cli.Command) error {
	subject := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if subject == "" {
		return fmt.Errorf("subject is required")
	}

	logger := newLogger(cmd.String("log-level"))

	llmClient, err := newLLMClient(ctx, cmd)
	if err != nil {
		return err
	}

	toolbox, toolSets, err := buildToolbox(cmd)
	if err != nil {
		return err
	}

	options := []deepsearch.Option{
		deepsearch.WithMaxIterations(int(cmd.Int("iterations"))),
		deepsearch.WithReportDir(cmd.String("output")),
		deepsearch.WithTools(toolbox...),
		deepsearch.WithToolSets(toolSets...),
		deepsearch.WithLogger(logger),
	}
	if cmd.Bool("blocking") {
		options = append(options, deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking))
	}
	if budget := cmd.Duration("budget"); budget > 0 {
		options = append(options, deepsearch.WithSessionBudget(budget))
	}

	agent := deepsearch.New(llmClient, options...)

	session, err := agent.StartSession(ctx, subject)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if !cmd.Bool("quiet") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			printEvents(ctx, session.EventLog())
		}()
	}

	report, err := session.Run(ctx)
	wg.Wait()
	if err != nil {
		if report != nil {
			fmt.Fprintf(os.Stderr, "Partial report saved: %s\n", report.Path)
		}
		return err
	}

	fmt.Printf("\nReport saved: %s\n", report.Path)
	return nil
}

// printEvents streams session progress to stdout until the log closes.
func printEvents(ctx context.Context, log *deepsearch.EventLog) {
	streaming := false
	for ev := range log.Watch(ctx) {
		switch ev.Type {
		case deepsearch.EventIterationStarted:
			if streaming {
				fmt.Println()
				streaming = false
			}
			fmt.Printf("--- iteration %d ---\n", ev.Iteration)
		case deepsearch.EventTokenChunk:
			fmt.Print(ev.Text)
			streaming = true
		case deepsearch.EventReasoningEmitted:
			if streaming {
				fmt.Println()
				streaming = false
			} else if ev.Text != "" {
				fmt.Println(ev.Text)
			}
		case deepsearch.EventToolInvoked:
			fmt.Printf("[tool] %s\n", ev.Tool)
		case deepsearch.EventToolFailed:
			fmt.Printf("[tool] %s failed: %s\n", ev.Tool, ev.Error)
		case deepsearch.EventConverged:
			fmt.Println("[done] report ready")
		case deepsearch.EventAborted:
			fmt.Printf("[aborted] %s\n", ev.Error)
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "info":
		lv = slog.LevelInfo
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// newLLMClient builds the provider client selected by --provider.
func newLLMClient(ctx context.Context, cmd *cli.Command) (deepsearch.LLMClient, error) {
	provider := strings.ToLower(cmd.String("provider"))
	model := cmd.String("model")

	switch provider {
	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
		}
		var opts []openai.Option
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		return openai.NewOpenRouter(ctx, apiKey, opts...)

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required")
		}
		var opts []openai.Option
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		return openai.New(ctx, apiKey, opts...)

	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
		var opts []claude.Option
		if model != "" {
			opts = append(opts, claude.WithModel(model))
		}
		return claude.New(ctx, apiKey, opts...)

	case "gemini":
		projectID := os.Getenv("GEMINI_PROJECT_ID")
		location := os.Getenv("GEMINI_LOCATION")
		if location == "" {
			location = "us-central1"
		}
		if projectID == "" {
			return nil, fmt.Errorf("GEMINI_PROJECT_ID is required")
		}
		var opts []gemini.Option
		if model != "" {
			opts = append(opts, gemini.WithModel(model))
		}
		return gemini.New(ctx, projectID, location, opts...)

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// buildToolbox assembles the research tools and MCP tool sets.
func buildToolbox(cmd *cli.Command) ([]deepsearch.Tool, []deepsearch.ToolSet, error) {
	var toolbox []deepsearch.Tool

	if serpKey := os.Getenv("SERPAPI_API_KEY"); serpKey != "" {
		toolbox = append(toolbox, tools.NewSerpAPISearch(serpKey))
	}
	toolbox = append(toolbox,
		tools.NewDuckDuckGoSearch(),
		tools.NewReadHTML(),
	)

	ws, err := tools.NewWorkspace(cmd.String("workspace"))
	if err != nil {
		return nil, nil, err
	}
	toolbox = append(toolbox, ws.Tools()...)

	var toolSets []deepsearch.ToolSet
	for _, command := range cmd.StringSlice("mcp-stdio") {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}
		toolSets = append(toolSets, mcp.NewStdio(fields[0], fields[1:], mcp.WithEnvVars(os.Environ())))
	}
	for _, url := range cmd.StringSlice("mcp-sse") {
		toolSets = append(toolSets, mcp.NewSSE(url))
	}

	return toolbox, toolSets, nil
}
