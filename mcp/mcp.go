// Package mcp connects external Model Context Protocol servers as tool sets
// for the research engine.
package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	deepsearch "github.com/quantalogic/open-deepsearch"
)

// ErrInvalidInputSchema is returned when an MCP server advertises a tool
// schema that cannot be mapped to tool parameters.
var ErrInvalidInputSchema = goerr.New("invalid input schema")

const (
	clientName    = "open-deepsearch"
	clientVersion = "0.0.1"
)

// Client exposes the tools of a single MCP server as a deepsearch.ToolSet.
// The connection is established lazily on first use.
type Client struct {
	// For local MCP server
	path    string
	args    []string
	envVars []string

	// For remote MCP server
	baseURL string
	headers map[string]string

	// Common client
	client     *client.Client
	initResult *mcp.InitializeResult

	initMutex sync.Mutex
}

// StdioOption is the option for the MCP client for local MCP executable
// server via stdio.
type StdioOption func(*Client)

// WithEnvVars sets the environment variables for the MCP client. It appends
// the environment variables to the existing ones.
func WithEnvVars(envVars []string) StdioOption {
	return func(m *Client) {
		m.envVars = append(m.envVars, envVars...)
	}
}

// NewStdio creates a new MCP client for a local MCP executable server via
// stdio.
func NewStdio(path string, args []string, options ...StdioOption) *Client {
	c := &Client{
		path: path,
		args: args,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// SSEOption is the option for the MCP client for remote MCP server via HTTP
// SSE.
type SSEOption func(*Client)

// WithHeaders sets the headers for the MCP client. It replaces the existing
// headers setting.
func WithHeaders(headers map[string]string) SSEOption {
	return func(m *Client) {
		m.headers = headers
	}
}

// NewSSE creates a new MCP client for a remote MCP server via HTTP SSE.
func NewSSE(baseURL string, options ...SSEOption) *Client {
	c := &Client{
		baseURL: baseURL,
		headers: map[string]string{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) start(ctx context.Context) error {
	c.initMutex.Lock()
	defer c.initMutex.Unlock()

	if c.initResult != nil {
		return nil
	}

	var tp transport.Interface
	if c.path != "" {
		tp = transport.NewStdio(c.path, c.envVars, c.args...)
	}

	if c.baseURL != "" {
		sse, err := transport.NewSSE(c.baseURL, transport.WithHeaders(c.headers))
		if err != nil {
			return goerr.Wrap(err, "failed to create SSE transport")
		}
		tp = sse
	}

	if tp == nil {
		return goerr.New("no transport")
	}

	c.client = client.NewClient(tp)

	if err := c.client.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start MCP client")
	}

	var initRequest mcp.InitializeRequest
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	resp, err := c.client.Initialize(ctx, initRequest)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize MCP client")
	}
	c.initResult = resp

	return nil
}

// Specs implements deepsearch.ToolSet. It lists the tools of the server and
// converts their schemas.
func (c *Client) Specs(ctx context.Context) ([]deepsearch.ToolSpec, error) {
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	logger := deepsearch.LoggerFromContext(ctx)

	resp, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}

	specs := make([]deepsearch.ToolSpec, len(resp.Tools))
	toolNames := make([]string, len(resp.Tools))

	for i, tool := range resp.Tools {
		toolNames[i] = tool.Name

		parameters, err := inputSchemaToParameters(tool.InputSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert input schema", goerr.V("tool", tool.Name))
		}

		specs[i] = deepsearch.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  parameters,
			Required:    tool.InputSchema.Required,
		}
	}

	logger.Debug("found MCP tools", "names", toolNames)

	return specs, nil
}

// Run implements deepsearch.ToolSet. It calls the named tool on the server.
func (c *Client) Run(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if err := c.start(ctx); err != nil {
		return nil, err
	}

	logger := deepsearch.LoggerFromContext(ctx)
	logger.Debug("call MCP tool", "name", name, "args", args)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tool")
	}

	return contentToMap(resp.Content), nil
}

// Close shuts down the connection to the MCP server.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close MCP client")
	}
	return nil
}

func valueOrEmpty[T any](v any) T {
	var empty T
	if v == nil {
		return empty
	}
	if v, ok := v.(T); ok {
		return v
	}
	return empty
}

func inputSchemaToParameters(inputSchema mcp.ToolInputSchema) (map[string]*deepsearch.Parameter, error) {
	parameters := map[string]*deepsearch.Parameter{}

	for name, property := range inputSchema.Properties {
		prop, ok := property.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidInputSchema, "invalid property", goerr.V("property", property))
		}

		parameter, err := propertyToParameter(name, prop)
		if err != nil {
			return nil, err
		}
		parameters[name] = parameter
	}

	return parameters, nil
}

func propertyToParameter(name string, prop map[string]any) (*deepsearch.Parameter, error) {
	var properties map[string]*deepsearch.Parameter
	var items *deepsearch.Parameter
	propType := valueOrEmpty[string](prop["type"])

	if propType == "object" {
		properties = map[string]*deepsearch.Parameter{}
		nestedProperty := valueOrEmpty[map[string]any](prop["properties"])

		for k, v := range nestedProperty {
			nested, ok := v.(map[string]any)
			if !ok {
				return nil, goerr.Wrap(ErrInvalidInputSchema, "invalid nested property", goerr.V("property", k))
			}
			objParam, err := propertyToParameter(k, nested)
			if err != nil {
				return nil, err
			}
			properties[k] = objParam
		}
	}

	if propType == "array" {
		itemsProp, ok := prop["items"].(map[string]any)
		if !ok {
			return nil, goerr.Wrap(ErrInvalidInputSchema, "array property has no items", goerr.V("property", name))
		}
		v, err := propertyToParameter(name, itemsProp)
		if err != nil {
			return nil, err
		}
		items = v
	}

	var enum []string
	for _, e := range valueOrEmpty[[]any](prop["enum"]) {
		if s, ok := e.(string); ok {
			enum = append(enum, s)
		}
	}

	return &deepsearch.Parameter{
		Type:        deepsearch.ParameterType(propType),
		Title:       valueOrEmpty[string](prop["title"]),
		Description: valueOrEmpty[string](prop["description"]),
		Enum:        enum,
		Properties:  properties,
		Items:       items,
		Default:     prop["default"],
	}, nil
}

func contentToMap(contents []mcp.Content) map[string]any {
	for _, c := range contents {
		if txt, ok := mcp.AsTextContent(c); ok {
			var v any
			if err := json.Unmarshal([]byte(txt.Text), &v); err == nil {
				if mapData, ok := v.(map[string]any); ok {
					return mapData
				}

				return map[string]any{
					"result": v,
				}
			}

			return map[string]any{
				"result": txt.Text,
			}
		}
	}

	// No appropriate content found
	return map[string]any{}
}
