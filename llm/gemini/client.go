// Package gemini provides a deepsearch.LLMClient adapter for Google's Gemini
// models on the Vertex AI backend.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.5-flash"
)

// Client is a client for the Gemini API.
type Client struct {
	projectID string
	location  string

	// client is the underlying Gemini client.
	client *genai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// generationConfig contains the default generation parameters
	generationConfig *genai.GenerateContentConfig
}

// Option is a configuration option for the Gemini client.
type Option func(*Client)

// WithModel sets the model to use for text generation.
// Default: "gemini-2.5-flash"
func WithModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 2.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		if c.generationConfig == nil {
			c.generationConfig = &genai.GenerateContentConfig{}
		}
		c.generationConfig.Temperature = &temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Range: 0.0 to 1.0
func WithTopP(topP float32) Option {
	return func(c *Client) {
		if c.generationConfig == nil {
			c.generationConfig = &genai.GenerateContentConfig{}
		}
		c.generationConfig.TopP = &topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		if c.generationConfig == nil {
			c.generationConfig = &genai.GenerateContentConfig{}
		}
		c.generationConfig.MaxOutputTokens = maxTokens
	}
}

// WithThinkingBudget sets the thinking budget for text generation.
// A value of -1 enables automatic thinking budget allocation.
func WithThinkingBudget(budget int32) Option {
	return func(c *Client) {
		if c.generationConfig == nil {
			c.generationConfig = &genai.GenerateContentConfig{}
		}
		if c.generationConfig.ThinkingConfig == nil {
			c.generationConfig.ThinkingConfig = &genai.ThinkingConfig{}
		}
		c.generationConfig.ThinkingConfig.ThinkingBudget = &budget
	}
}

// New creates a new client for the Gemini API.
// It requires a project ID and location, and can be configured with
// additional options.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required")
	}
	if location == "" {
		return nil, goerr.New("location is required")
	}

	var budget int32 = 0

	client := &Client{
		projectID:    projectID,
		location:     location,
		defaultModel: DefaultModel,
		generationConfig: &genai.GenerateContentConfig{
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: &budget,
			},
		},
	}

	for _, option := range options {
		option(client)
	}

	config := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}

	newClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, err
	}

	client.client = newClient
	return client, nil
}

// NewSession creates a new session for the Gemini API.
// It converts the provided tools to Gemini's tool format and initializes a
// new chat session.
func (c *Client) NewSession(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
	cfg := deepsearch.NewSessionConfig(options...)

	config := &genai.GenerateContentConfig{}
	if c.generationConfig != nil {
		*config = *c.generationConfig
	}

	if cfg.SystemPrompt() != "" {
		config.SystemInstruction = &genai.Content{
			Role: "system",
			Parts: []*genai.Part{
				{Text: cfg.SystemPrompt()},
			},
		}
	}

	if len(cfg.Tools()) > 0 {
		tools := make([]*genai.Tool, 1)
		tools[0] = &genai.Tool{
			FunctionDeclarations: make([]*genai.FunctionDeclaration, len(cfg.Tools())),
		}
		for i, tool := range cfg.Tools() {
			tools[0].FunctionDeclarations[i] = convertTool(tool)
		}
		config.Tools = tools
	}

	session := &Session{
		apiClient: &realAPIClient{client: c.client},
		model:     c.defaultModel,
		config:    config,
	}

	return session, nil
}

// Session is a session for the Gemini chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	// apiClient is the API client interface for dependency injection
	apiClient apiClient

	// model is the model name to use
	model string

	// config is the generation configuration
	config *genai.GenerateContentConfig

	// contents stores the conversation history.
	contents []*genai.Content
}

// convertInputs converts deepsearch.Input to Gemini parts
func convertInputs(input ...deepsearch.Input) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(input))

	for _, in := range input {
		switch v := in.(type) {
		case deepsearch.Text:
			parts = append(parts, &genai.Part{Text: string(v)})
		case deepsearch.FunctionResponse:
			if v.Error != nil {
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name: v.Name,
						Response: map[string]any{
							"error_message": fmt.Sprintf("%+v", v.Error),
						},
					},
				})
			} else {
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     v.Name,
						Response: v.Data,
					},
				})
			}
		default:
			return nil, goerr.Wrap(deepsearch.ErrInvalidParameter, "invalid input")
		}
	}
	return parts, nil
}

// processResponse converts Gemini response to deepsearch.Response
func processResponse(resp *genai.GenerateContentResponse) (*deepsearch.Response, error) {
	if len(resp.Candidates) == 0 {
		return &deepsearch.Response{}, nil
	}

	response := &deepsearch.Response{
		Texts:         make([]string, 0),
		FunctionCalls: make([]*deepsearch.FunctionCall, 0),
	}

	if resp.UsageMetadata != nil {
		response.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		response.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				response.Texts = append(response.Texts, part.Text)
			}

			if part.FunctionCall != nil {
				fc := &deepsearch.FunctionCall{
					ID:        fmt.Sprintf("%s_%d", part.FunctionCall.Name, time.Now().UnixNano()),
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				}
				response.FunctionCalls = append(response.FunctionCalls, fc)
			}
		}
	}

	return response, nil
}

// appendAssistant records the model's reply in the session history.
func (s *Session) appendAssistant(texts []string, calls []*deepsearch.FunctionCall) {
	parts := make([]*genai.Part, 0, len(texts)+len(calls))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	for _, fc := range calls {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				Name: fc.Name,
				Args: fc.Arguments,
			},
		})
	}
	if len(parts) > 0 {
		s.contents = append(s.contents, &genai.Content{
			Role:  "model",
			Parts: parts,
		})
	}
}

// GenerateContent generates content based on the input.
func (s *Session) GenerateContent(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
	parts, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}

	if len(parts) > 0 {
		s.contents = append(s.contents, &genai.Content{
			Role:  "user",
			Parts: parts,
		})
	}

	result, err := s.apiClient.GenerateContent(ctx, s.model, s.contents, s.config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	response, err := processResponse(result)
	if err != nil {
		return nil, err
	}

	s.appendAssistant(response.Texts, response.FunctionCalls)

	return response, nil
}

// GenerateStream generates content based on the input and returns a stream of
// responses.
func (s *Session) GenerateStream(ctx context.Context, input ...deepsearch.Input) (<-chan *deepsearch.Response, error) {
	parts, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}

	if len(parts) > 0 {
		s.contents = append(s.contents, &genai.Content{
			Role:  "user",
			Parts: parts,
		})
	}

	responseChan := make(chan *deepsearch.Response)

	go func() {
		defer close(responseChan)

		apiStreamChan := s.apiClient.GenerateContentStream(ctx, s.model, s.contents, s.config)

		var accumulatedTexts []string
		var accumulatedFunctionCalls []*deepsearch.FunctionCall

		for streamResp := range apiStreamChan {
			if streamResp.Err != nil {
				responseChan <- &deepsearch.Response{
					Error: goerr.Wrap(streamResp.Err, "failed to receive content stream"),
				}
				return
			}

			response, err := processResponse(streamResp.Resp)
			if err != nil {
				responseChan <- &deepsearch.Response{Error: err}
				return
			}

			accumulatedTexts = append(accumulatedTexts, response.Texts...)
			accumulatedFunctionCalls = append(accumulatedFunctionCalls, response.FunctionCalls...)

			if response.HasData() || response.InputToken > 0 || response.OutputToken > 0 {
				responseChan <- response
			}
		}

		s.appendAssistant(accumulatedTexts, accumulatedFunctionCalls)
	}()

	return responseChan, nil
}
