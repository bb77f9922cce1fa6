package deepsearch

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ResponseMode is the type for the response mode of the engine.
type ResponseMode int

const (
	// ResponseModeStreaming streams the model output token by token; each
	// fragment is recorded as a TokenChunk event as it arrives.
	ResponseModeStreaming ResponseMode = iota

	// ResponseModeBlocking waits for the full model response. No TokenChunk
	// events are emitted in this mode.
	ResponseModeBlocking
)

// String returns the string representation of the response mode.
func (x ResponseMode) String() string {
	return []string{"streaming", "blocking"}[x]
}

const (
	DefaultMaxIterations = 10
	DefaultRetryLimit    = 3
	DefaultRetryBaseWait = 500 * time.Millisecond
	DefaultReportDir     = "./results"

	// DefaultMaxObservationSize bounds the JSON size of a single tool
	// observation fed back into the reasoning context.
	DefaultMaxObservationSize = 16 * 1024
)

// Agent is the engine entry point. It is configured once and can start any
// number of independent research sessions; the agent itself holds no state
// across sessions.
type Agent struct {
	llm LLMClient

	agentConfig
}

type agentConfig struct {
	maxIterations      int
	retryLimit         int
	retryBaseWait      time.Duration
	sessionBudget      time.Duration
	toolTimeout        time.Duration
	maxObservationSize int
	systemPrompt       string
	responseMode       ResponseMode
	reportDir          string

	tools    []Tool
	toolSets []ToolSet

	logger *slog.Logger
	clock  func() time.Time
}

func (c *agentConfig) clone() agentConfig {
	out := *c
	out.tools = slices.Clone(c.tools)
	out.toolSets = slices.Clone(c.toolSets)
	return out
}

// New creates a new research agent on top of the given completion provider
// client.
func New(llmClient LLMClient, options ...Option) *Agent {
	agent := &Agent{
		llm: llmClient,
		agentConfig: agentConfig{
			maxIterations:      DefaultMaxIterations,
			retryLimit:         DefaultRetryLimit,
			retryBaseWait:      DefaultRetryBaseWait,
			maxObservationSize: DefaultMaxObservationSize,
			systemPrompt:       DefaultSystemPrompt,
			responseMode:       ResponseModeStreaming,
			reportDir:          DefaultReportDir,
			logger:             slog.New(slog.DiscardHandler),
			clock:              time.Now,
		},
	}

	for _, opt := range options {
		opt(&agent.agentConfig)
	}

	agent.logger.Info("deepsearch agent created",
		"max_iterations", agent.maxIterations,
		"retry_limit", agent.retryLimit,
		"session_budget", agent.sessionBudget,
		"response_mode", agent.responseMode.String(),
		"tools_count", len(agent.tools),
		"tool_sets_count", len(agent.toolSets),
		"report_dir", agent.reportDir,
	)

	return agent
}

// Option is the type for the options of the research agent.
type Option func(*agentConfig)

// WithMaxIterations sets the hard cap on Reason-Act-Observe cycles. When the
// cap is reached the loop forces a best-effort synthesis. Default is
// DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(c *agentConfig) {
		c.maxIterations = n
	}
}

// WithRetryLimit sets the number of retries for transient completion
// provider failures. Exhausting the retries aborts the session.
func WithRetryLimit(n int) Option {
	return func(c *agentConfig) {
		c.retryLimit = n
	}
}

// WithRetryBaseWait sets the base wait of the exponential retry backoff.
func WithRetryBaseWait(d time.Duration) Option {
	return func(c *agentConfig) {
		c.retryBaseWait = d
	}
}

// WithSessionBudget sets a wall-clock budget for a whole session. Exceeding
// it aborts the session at the next safe point. Zero means no budget.
func WithSessionBudget(d time.Duration) Option {
	return func(c *agentConfig) {
		c.sessionBudget = d
	}
}

// WithToolTimeout sets a per-invocation tool timeout. A timed-out call
// becomes a failure observation, not a session failure.
func WithToolTimeout(d time.Duration) Option {
	return func(c *agentConfig) {
		c.toolTimeout = d
	}
}

// WithMaxObservationSize bounds the JSON size of a single tool observation
// in the reasoning context. Zero disables the bound.
func WithMaxObservationSize(n int) Option {
	return func(c *agentConfig) {
		c.maxObservationSize = n
	}
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *agentConfig) {
		c.systemPrompt = prompt
	}
}

// WithResponseMode sets the response mode. Default is streaming.
func WithResponseMode(mode ResponseMode) Option {
	return func(c *agentConfig) {
		c.responseMode = mode
	}
}

// WithReportDir sets the output directory for persisted reports.
func WithReportDir(dir string) Option {
	return func(c *agentConfig) {
		c.reportDir = dir
	}
}

// WithTools adds tools available to every session of this agent.
func WithTools(tools ...Tool) Option {
	return func(c *agentConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithToolSets adds tool sets (e.g. MCP servers) available to every session.
func WithToolSets(sets ...ToolSet) Option {
	return func(c *agentConfig) {
		c.toolSets = append(c.toolSets, sets...)
	}
}

// WithLogger sets the logger. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *agentConfig) {
		c.logger = logger
	}
}

// WithClock injects the time source used for event timestamps. Intended for
// tests that need deterministic logs.
func WithClock(clock func() time.Time) Option {
	return func(c *agentConfig) {
		c.clock = clock
	}
}

// StartSession creates a new research session for the subject. Registering
// the agent's tools happens here; a registration failure (duplicate name,
// malformed spec) is a caller bug and fails fast. The returned session must
// be driven with Session.Run.
func (a *Agent) StartSession(ctx context.Context, subject string, options ...Option) (*Session, error) {
	cfg := a.agentConfig.clone()
	for _, opt := range options {
		opt(&cfg)
	}

	registry := NewRegistry(WithInvokeTimeout(cfg.toolTimeout))
	finalize := newFinalizeTool()
	if err := registry.Register(finalize); err != nil {
		return nil, err
	}
	for _, tool := range cfg.tools {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	for _, set := range cfg.toolSets {
		if err := registry.RegisterSet(ctx, set); err != nil {
			return nil, err
		}
	}

	return &Session{
		id:        uuid.New().String(),
		subject:   subject,
		cfg:       cfg,
		llm:       a.llm,
		registry:  registry,
		finalize:  finalize,
		log:       NewEventLog(cfg.clock),
		writer:    NewReportWriter(cfg.reportDir),
		status:    StatusPending,
		cancelled: make(chan struct{}),
	}, nil
}

// Research is the one-shot convenience: it starts a session for the subject,
// runs it to completion, and returns the persisted report.
func (a *Agent) Research(ctx context.Context, subject string, options ...Option) (*Report, error) {
	session, err := a.StartSession(ctx, subject, options...)
	if err != nil {
		return nil, err
	}
	return session.Run(ctx)
}
