// Package deepsearch provides an iterative research agent engine. The engine
// drives a language model through repeated Reason-Act-Observe cycles, invoking
// registered tools on its behalf, until the model submits a synthesized
// Markdown report. Every step is recorded in an append-only EventLog that a
// presentation layer can consume live.
package deepsearch

import (
	"context"
	"log/slog"
)

// LLMClient is a client for a completion provider service.
type LLMClient interface {
	// NewSession creates a new conversation session. The session owns the
	// conversation history for its lifetime.
	NewSession(ctx context.Context, options ...SessionOption) (LLMSession, error)
}

// LLMSession is a stateful conversation with a completion provider.
type LLMSession interface {
	// GenerateContent sends the input and blocks until the full response is
	// generated.
	GenerateContent(ctx context.Context, input ...Input) (*Response, error)

	// GenerateStream sends the input and returns a channel of incremental
	// responses. Text arrives token by token; function calls arrive fully
	// assembled. The channel is closed when the response is complete.
	GenerateStream(ctx context.Context, input ...Input) (<-chan *Response, error)
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Response is a general response type for each completion provider.
type Response struct {
	Texts         []string
	FunctionCalls []*FunctionCall
	InputToken    int
	OutputToken   int

	// Error is an error that occurred during generation of a streaming
	// response.
	Error error
}

func (r *Response) HasData() bool {
	return len(r.Texts) > 0 || len(r.FunctionCalls) > 0 || r.Error != nil
}

// Input is the sealed input type for a session. Implementations are Text and
// FunctionResponse.
type Input interface {
	isInput() restrictedValue
	LogValue() slog.Value
	String() string
}

type restrictedValue struct{}

// Text is a text input as prompt.
// Usage:
//
//	input := deepsearch.Text("quantum computing breakthroughs 2024")
type Text string

func (t Text) isInput() restrictedValue {
	return restrictedValue{}
}

func (t Text) LogValue() slog.Value {
	return slog.StringValue(string(t))
}

func (t Text) String() string {
	return string(t)
}

// FunctionResponse is a tool execution result fed back to the model as an
// observation. Either Data or Error is set; a FunctionResponse is always
// paired with the FunctionCall whose ID it carries.
type FunctionResponse struct {
	ID    string
	Name  string
	Data  map[string]any
	Error error
}

func (f FunctionResponse) isInput() restrictedValue {
	return restrictedValue{}
}

func (f FunctionResponse) String() string {
	if f.Error != nil {
		return f.Name + " (error: " + f.Error.Error() + ")"
	}
	return f.Name + " (success)"
}

func (f FunctionResponse) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", f.ID),
		slog.String("name", f.Name),
	}

	if f.Data != nil {
		attrs = append(attrs, slog.Any("data", f.Data))
	}

	if f.Error != nil {
		attrs = append(attrs, slog.String("error", f.Error.Error()))
	}

	return slog.GroupValue(attrs...)
}

// SessionOption configures a new provider session.
type SessionOption func(*SessionConfig)

// SessionConfig is the assembled configuration of a provider session.
// Adapters read it through the accessor methods.
type SessionConfig struct {
	systemPrompt string
	tools        []Tool
}

// NewSessionConfig builds a SessionConfig from options. Intended for adapter
// implementations.
func NewSessionConfig(options ...SessionOption) SessionConfig {
	var cfg SessionConfig
	for _, opt := range options {
		opt(&cfg)
	}
	return cfg
}

func (c *SessionConfig) SystemPrompt() string { return c.systemPrompt }
func (c *SessionConfig) Tools() []Tool        { return c.tools }

// WithSessionSystemPrompt sets the system prompt for the session.
func WithSessionSystemPrompt(prompt string) SessionOption {
	return func(c *SessionConfig) {
		c.systemPrompt = prompt
	}
}

// WithSessionTools sets the tools advertised to the model for the session.
func WithSessionTools(tools ...Tool) SessionOption {
	return func(c *SessionConfig) {
		c.tools = append(c.tools, tools...)
	}
}
