package deepsearch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// ToolResult is the outcome of one tool invocation. Exactly one of Data or
// Error is meaningful; a failed invocation carries the failure description in
// Error and is fed back to the model as an observation.
type ToolResult struct {
	Call  FunctionCall
	Data  map[string]any
	Error error
}

func (r *ToolResult) Failed() bool {
	return r.Error != nil
}

type registeredTool struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds the set of invocable tools keyed by unique name. It
// validates arguments against each tool's declared parameter schema before
// dispatch and converts tool failures into ToolResult failures so that one
// failing tool never aborts a session.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*registeredTool
	timeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithInvokeTimeout sets a per-invocation timeout. A timed-out call is
// converted into a failure result. Zero disables the timeout.
func WithInvokeTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates an empty tool registry.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		tools: map[string]*registeredTool{},
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry. It fails with ErrInvalidTool when the
// spec is malformed and with ErrToolNameConflict when the name is already
// taken.
func (r *Registry) Register(tool Tool) error {
	spec := tool.Spec()
	if err := spec.Validate(); err != nil {
		return err
	}

	schema, err := compileArgSchema(spec)
	if err != nil {
		return goerr.Wrap(err, "failed to compile argument schema", goerr.V("tool_name", spec.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[spec.Name]; ok {
		return goerr.Wrap(ErrToolNameConflict, "tool already registered", goerr.V("tool_name", spec.Name))
	}
	r.tools[spec.Name] = &registeredTool{tool: tool, schema: schema}

	return nil
}

// RegisterSet expands a ToolSet and registers each of its tools.
func (r *Registry) RegisterSet(ctx context.Context, set ToolSet) error {
	specs, err := set.Specs(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to get tool set specs")
	}

	for _, spec := range specs {
		tool := &toolWrapper{
			spec: spec,
			run: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return set.Run(ctx, spec.Name, args)
			},
		}
		if err := r.Register(tool); err != nil {
			return err
		}
	}

	return nil
}

// Resolve returns the tool registered under name, or ErrUnknownTool.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tools[name]
	if !ok {
		return nil, goerr.Wrap(ErrUnknownTool, name+" is not registered", goerr.V("tool_name", name))
	}
	return entry.tool, nil
}

// Specs returns the specifications of all registered tools.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(r.tools))
	for _, entry := range r.tools {
		specs = append(specs, entry.tool.Spec())
	}
	return specs
}

// Tools returns all registered tools.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, entry := range r.tools {
		tools = append(tools, entry.tool)
	}
	return tools
}

// Invoke resolves the named tool, validates the arguments against its
// declared schema, and executes it. Unknown tools, invalid arguments,
// execution errors, and timeouts are all returned as failure results, never
// as an error; the registry itself is side-effect-free beyond dispatch.
func (r *Registry) Invoke(ctx context.Context, call FunctionCall) *ToolResult {
	logger := LoggerFromContext(ctx)

	r.mu.RLock()
	entry, ok := r.tools[call.Name]
	timeout := r.timeout
	r.mu.RUnlock()

	if !ok {
		logger.Info("tool not found", "call", call.Name)
		return &ToolResult{
			Call:  call,
			Error: goerr.Wrap(ErrUnknownTool, call.Name+" is not found", goerr.V("tool_name", call.Name)),
		}
	}

	if err := validateArgs(entry.schema, call.Arguments); err != nil {
		logger.Info("invalid tool arguments", "call", call.Name, "error", err)
		return &ToolResult{Call: call, Error: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := entry.tool.Run(ctx, call.Arguments)
	if err != nil {
		logger.Info("tool execution failed", "call", call.Name, "error", err)
		return &ToolResult{
			Call:  call,
			Error: goerr.Wrap(err, call.Name+" failed to run", goerr.V("tool_name", call.Name)),
		}
	}

	logger.Debug("tool result", "tool", call.Name, "result", data)
	return &ToolResult{Call: call, Data: data}
}

// compileArgSchema builds a JSON schema validator from the tool's parameter
// specification.
func compileArgSchema(spec ToolSpec) (*jsonschema.Schema, error) {
	doc := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	props := doc["properties"].(map[string]any)
	for name, param := range spec.Parameters {
		props[name] = parameterToSchema(param)
	}
	if len(spec.Required) > 0 {
		required := make([]any, len(spec.Required))
		for i, name := range spec.Required {
			required[i] = name
		}
		doc["required"] = required
	}

	compiler := jsonschema.NewCompiler()
	url := "tool://" + spec.Name + "/arguments.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add schema resource")
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile schema")
	}
	return schema, nil
}

func parameterToSchema(param *Parameter) map[string]any {
	schema := map[string]any{
		"type": string(param.Type),
	}

	if param.Description != "" {
		schema["description"] = param.Description
	}

	if param.Type == TypeObject && param.Properties != nil {
		props := make(map[string]any)
		for name, prop := range param.Properties {
			props[name] = parameterToSchema(prop)
		}
		schema["properties"] = props
		if len(param.Required) > 0 {
			required := make([]any, len(param.Required))
			for i, name := range param.Required {
				required[i] = name
			}
			schema["required"] = required
		}
	}

	if param.Type == TypeArray && param.Items != nil {
		schema["items"] = parameterToSchema(param.Items)
	}

	if len(param.Enum) > 0 {
		enum := make([]any, len(param.Enum))
		for i, v := range param.Enum {
			enum[i] = v
		}
		schema["enum"] = enum
	}

	if param.Minimum != nil {
		schema["minimum"] = *param.Minimum
	}
	if param.Maximum != nil {
		schema["maximum"] = *param.Maximum
	}
	if param.MinLength != nil {
		schema["minLength"] = float64(*param.MinLength)
	}
	if param.MaxLength != nil {
		schema["maxLength"] = float64(*param.MaxLength)
	}
	if param.Pattern != "" {
		schema["pattern"] = param.Pattern
	}
	if param.MinItems != nil {
		schema["minItems"] = float64(*param.MinItems)
	}
	if param.MaxItems != nil {
		schema["maxItems"] = float64(*param.MaxItems)
	}

	return schema
}

// validateArgs validates call arguments against the compiled schema and wraps
// the violation into ErrInvalidArguments naming the offending field.
func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	value := args
	if value == nil {
		value = map[string]any{}
	}

	err := schema.Validate(normalizeJSONValue(value))
	if err == nil {
		return nil
	}

	field := "(arguments)"
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		field = offendingField(verr)
	}

	return goerr.Wrap(ErrInvalidArguments, fmt.Sprintf("argument %q does not match the tool schema", field),
		goerr.V("field", field), goerr.V("cause", err.Error()))
}

// offendingField walks to the deepest validation cause and renders its
// instance location as a dotted path.
func offendingField(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}

	loc := append([]string{}, verr.InstanceLocation...)
	if req, ok := verr.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		loc = append(loc, req.Missing[0])
	}
	if len(loc) == 0 {
		return "(arguments)"
	}
	return strings.Join(loc, ".")
}

// normalizeJSONValue converts Go values into the JSON data model the schema
// validator expects (e.g. ints become float64).
func normalizeJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSONValue(item)
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
