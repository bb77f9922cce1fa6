// Package openai provides a deepsearch.LLMClient adapter for the OpenAI API
// and OpenAI-compatible endpoints such as OpenRouter.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"github.com/sashabaranov/go-openai"
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	// Higher values make the output more random, lower values make it more focused.
	Temperature float32

	// TopP controls diversity via nucleus sampling.
	TopP float32

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int
}

// Client is a client for the OpenAI API.
type Client struct {
	// client is the underlying OpenAI client.
	client *openai.Client

	// defaultModel is the model to use for chat completions.
	// It can be overridden using WithModel option.
	defaultModel string

	// baseURL is the custom base URL for the OpenAI API.
	// If empty, uses the default OpenAI API endpoints.
	baseURL string

	// generation parameters
	params generationParameters
}

const (
	DefaultModel = "gpt-4o-mini"

	// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	// DefaultOpenRouterModel mirrors the model the original research app
	// used through OpenRouter.
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// The model name should be a valid OpenAI model identifier.
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// WithBaseURL sets the custom base URL for the OpenAI API.
// Allows usage with compatible endpoints, proxies, or self-hosted instances.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a new client for the OpenAI API.
// It requires an API key and can be configured with additional options.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	client := &Client{
		defaultModel: DefaultModel,
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}

	client.client = openai.NewClientWithConfig(config)

	return client, nil
}

// NewOpenRouter creates a client for the OpenRouter OpenAI-compatible API.
func NewOpenRouter(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	merged := append([]Option{
		WithBaseURL(OpenRouterBaseURL),
		WithModel(DefaultOpenRouterModel),
	}, options...)
	return New(ctx, apiKey, merged...)
}

// Session is a session for the OpenAI chat.
// It maintains the conversation state and handles message generation.
type Session struct {
	client       *openai.Client
	defaultModel string
	tools        []openai.Tool
	messages     []openai.ChatCompletionMessage
	params       generationParameters
}

// NewSession creates a new session for the OpenAI API.
// It converts the provided tools to OpenAI's tool format and initializes a
// new chat session.
func (c *Client) NewSession(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
	cfg := deepsearch.NewSessionConfig(options...)

	openaiTools := make([]openai.Tool, len(cfg.Tools()))
	for i, tool := range cfg.Tools() {
		openaiTools[i] = convertTool(tool)
	}

	var messages []openai.ChatCompletionMessage
	if cfg.SystemPrompt() != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: cfg.SystemPrompt(),
		})
	}

	return &Session{
		client:       c.client,
		defaultModel: c.defaultModel,
		tools:        openaiTools,
		messages:     messages,
		params:       c.params,
	}, nil
}

// convertInputs converts deepsearch.Input values to OpenAI messages.
func convertInputs(input ...deepsearch.Input) ([]openai.ChatCompletionMessage, error) {
	var messages []openai.ChatCompletionMessage

	for _, in := range input {
		switch v := in.(type) {
		case deepsearch.Text:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: string(v),
			})

		case deepsearch.FunctionResponse:
			content := ""
			if v.Error != nil {
				content = fmt.Sprintf("Error message: %+v", v.Error)
			} else {
				data, err := json.Marshal(v.Data)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to marshal function response")
				}
				content = string(data)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: v.ID,
			})

		default:
			return nil, goerr.Wrap(deepsearch.ErrInvalidParameter, "invalid input type")
		}
	}

	return messages, nil
}

func (s *Session) createRequest(stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       s.defaultModel,
		Messages:    s.messages,
		Tools:       s.tools,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
		MaxTokens:   s.params.MaxTokens,
		Stream:      stream,
	}
}

// GenerateContent processes the input and generates a response.
// It handles both text messages and function responses.
func (s *Session) GenerateContent(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, messages...)

	resp, err := s.client.CreateChatCompletion(ctx, s.createRequest(false))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion")
	}

	if len(resp.Choices) == 0 {
		return &deepsearch.Response{}, nil
	}

	message := resp.Choices[0].Message
	s.messages = append(s.messages, message)

	response := &deepsearch.Response{
		InputToken:  resp.Usage.PromptTokens,
		OutputToken: resp.Usage.CompletionTokens,
	}

	if message.Content != "" {
		response.Texts = append(response.Texts, message.Content)
	}

	for _, toolCall := range message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal tool arguments")
		}
		response.FunctionCalls = append(response.FunctionCalls, &deepsearch.FunctionCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: args,
		})
	}

	return response, nil
}

// GenerateStream processes the input and generates a response stream.
// Text arrives token by token; tool calls are accumulated from deltas and
// delivered once assembled.
func (s *Session) GenerateStream(ctx context.Context, input ...deepsearch.Input) (<-chan *deepsearch.Response, error) {
	messages, err := convertInputs(input...)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, messages...)

	req := s.createRequest(true)
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion stream")
	}

	responseChan := make(chan *deepsearch.Response)

	go func() {
		defer close(responseChan)
		defer stream.Close()

		var textContent string
		var toolCalls []openai.ToolCall
		var inputTokens, outputTokens int

		for {
			select {
			case <-ctx.Done():
				responseChan <- &deepsearch.Response{
					Error: goerr.Wrap(ctx.Err(), "context cancelled during streaming"),
				}
				return
			default:
			}

			resp, err := stream.Recv()
			if err != nil {
				if err == io.EOF {
					break
				}
				responseChan <- &deepsearch.Response{
					Error: goerr.Wrap(err, "failed to receive chat completion stream"),
				}
				return
			}

			// Usage arrives in the final chunk.
			if resp.Usage != nil {
				inputTokens = resp.Usage.PromptTokens
				outputTokens = resp.Usage.CompletionTokens
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta

			if delta.Content != "" {
				textContent += delta.Content
				responseChan <- &deepsearch.Response{Texts: []string{delta.Content}}
			}

			for _, toolCall := range delta.ToolCalls {
				index := 0
				if toolCall.Index != nil {
					index = *toolCall.Index
				}
				for len(toolCalls) <= index {
					toolCalls = append(toolCalls, openai.ToolCall{})
				}

				tc := &toolCalls[index]
				if toolCall.ID != "" {
					tc.ID = toolCall.ID
				}
				if toolCall.Type != "" {
					tc.Type = toolCall.Type
				}
				if toolCall.Function.Name != "" {
					tc.Function.Name = toolCall.Function.Name
				}
				if toolCall.Function.Arguments != "" {
					tc.Function.Arguments += toolCall.Function.Arguments
				}
			}

			finish := resp.Choices[0].FinishReason
			if finish == openai.FinishReasonToolCalls || finish == openai.FinishReasonStop {
				break
			}
		}

		assistant := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: textContent,
		}

		if len(toolCalls) > 0 {
			var functionCalls []*deepsearch.FunctionCall
			for _, toolCall := range toolCalls {
				if toolCall.ID == "" || toolCall.Function.Name == "" {
					continue
				}
				var args map[string]any
				if toolCall.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
						responseChan <- &deepsearch.Response{
							Error: goerr.Wrap(err, "failed to unmarshal function call arguments"),
						}
						return
					}
				}
				functionCalls = append(functionCalls, &deepsearch.FunctionCall{
					ID:        toolCall.ID,
					Name:      toolCall.Function.Name,
					Arguments: args,
				})
			}

			if len(functionCalls) > 0 {
				responseChan <- &deepsearch.Response{
					FunctionCalls: functionCalls,
					InputToken:    inputTokens,
					OutputToken:   outputTokens,
				}
			}
			assistant.ToolCalls = toolCalls
		}

		if assistant.Content != "" || len(assistant.ToolCalls) > 0 {
			s.messages = append(s.messages, assistant)
		}

		if len(toolCalls) == 0 && (inputTokens > 0 || outputTokens > 0) {
			responseChan <- &deepsearch.Response{
				InputToken:  inputTokens,
				OutputToken: outputTokens,
			}
		}
	}()

	return responseChan, nil
}
