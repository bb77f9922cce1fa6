package deepsearch

import (
	"context"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// ToolSpec is the specification of a tool.
// It defines the interface and behavior of a tool that can be used by the
// research agent.
type ToolSpec struct {
	// Name is the unique identifier for the tool.
	// It must be unique across all tools registered with the engine.
	Name string

	// Description is a human-readable description of what the tool does.
	// It should be clear and concise to help the model understand the
	// tool's purpose.
	Description string

	// Parameters defines the input parameters that the tool accepts.
	// Each parameter is defined by its name and specification.
	Parameters map[string]*Parameter

	// Required is the list of required parameter names.
	// These parameters must be provided when the tool is called.
	Required []string
}

// Validate validates the tool specification.
func (s *ToolSpec) Validate() error {
	eb := goerr.NewBuilder(goerr.V("tool", s.Name))
	if s.Name == "" {
		return eb.Wrap(ErrInvalidTool, "name is required")
	}

	for name, param := range s.Parameters {
		if err := param.Validate(); err != nil {
			return eb.Wrap(ErrInvalidTool, "invalid parameter", goerr.V("parameter", name))
		}
	}

	for _, req := range s.Required {
		if _, ok := s.Parameters[req]; !ok {
			return eb.Wrap(ErrInvalidTool, "required parameter not declared", goerr.V("parameter", req))
		}
	}

	return nil
}

// ParameterType is the type of a parameter.
type ParameterType string

const (
	// TypeString represents a string parameter.
	TypeString ParameterType = "string"

	// TypeNumber represents a floating-point number parameter.
	TypeNumber ParameterType = "number"

	// TypeInteger represents an integer parameter.
	TypeInteger ParameterType = "integer"

	// TypeBoolean represents a true/false parameter.
	TypeBoolean ParameterType = "boolean"

	// TypeArray represents a list of values of the same type.
	TypeArray ParameterType = "array"

	// TypeObject represents structured data with multiple fields.
	TypeObject ParameterType = "object"
)

// Parameter is a parameter of a tool.
// It defines the specification and constraints of a single input parameter.
type Parameter struct {
	// Title is the user-friendly name of the parameter. Optional.
	Title string

	// Type is the type of the parameter. Required.
	Type ParameterType

	// Description explains the purpose and expected format of the parameter.
	Description string

	// Required is the list of required field names when Type is Object.
	Required []string

	// Enum is the list of allowed values for the parameter.
	Enum []string

	// Properties defines the structure of object type parameters.
	Properties map[string]*Parameter

	// Items defines the element type of array type parameters.
	Items *Parameter

	// Number constraints.
	Minimum *float64
	Maximum *float64

	// String constraints.
	MinLength *int
	MaxLength *int
	Pattern   string

	// Array constraints.
	MinItems *int
	MaxItems *int

	// Default value used when the parameter is omitted.
	Default any
}

// Validate validates the parameter.
func (p *Parameter) Validate() error {
	eb := goerr.NewBuilder(goerr.V("parameter", p))

	if p.Type == "" {
		return eb.Wrap(ErrInvalidParameter, "type is required")
	}

	if p.Type == TypeObject {
		if p.Properties == nil {
			return eb.Wrap(ErrInvalidParameter, "properties is required for object type")
		}
		for _, prop := range p.Properties {
			if err := prop.Validate(); err != nil {
				return eb.Wrap(ErrInvalidParameter, "invalid property")
			}
		}
		for _, req := range p.Required {
			if _, ok := p.Properties[req]; !ok {
				return eb.Wrap(ErrInvalidParameter, "required field not found in properties", goerr.V("field", req))
			}
		}
	}

	if p.Type == TypeArray {
		if p.Items == nil {
			return eb.Wrap(ErrInvalidParameter, "items is required for array type")
		}
		if err := p.Items.Validate(); err != nil {
			return eb.Wrap(ErrInvalidParameter, "invalid items")
		}
		if p.MinItems != nil && p.MaxItems != nil && *p.MinItems > *p.MaxItems {
			return eb.Wrap(ErrInvalidParameter, "minItems must be less than or equal to maxItems")
		}
	}

	if p.Type == TypeNumber || p.Type == TypeInteger {
		if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
			return eb.Wrap(ErrInvalidParameter, "minimum must be less than or equal to maximum")
		}
	}

	if p.Type == TypeString {
		if p.MinLength != nil && p.MaxLength != nil && *p.MinLength > *p.MaxLength {
			return eb.Wrap(ErrInvalidParameter, "minLength must be less than or equal to maxLength")
		}
		if p.Pattern != "" {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				return eb.Wrap(ErrInvalidParameter, "invalid pattern", goerr.V("pattern", p.Pattern))
			}
		}
	}

	return nil
}

// Tool is the specification and execution of an action that can be called by
// the model. All concrete capabilities (search, file I/O, analysis) implement
// this interface to plug into the Registry.
type Tool interface {
	// Spec returns the specification of the tool. It is called when
	// registering the tool and when starting a provider session.
	Spec() ToolSpec

	// Run executes the tool. Even if the method returns an error, the
	// session is not aborted. The error is converted into a failure
	// observation and passed back to the model.
	Run(ctx context.Context, args map[string]any) (map[string]any, error)
}

// ToolSet is a set of tools resolved at runtime, e.g. tools exposed by an
// external MCP server. A ToolSet is expanded into individual tools when the
// registry is built.
type ToolSet interface {
	// Specs returns the specifications of all tools in the set.
	Specs(ctx context.Context) ([]ToolSpec, error)

	// Run executes the named tool in the set.
	Run(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

type toolWrapper struct {
	spec ToolSpec
	run  func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func (x *toolWrapper) Spec() ToolSpec {
	return x.spec
}

func (x *toolWrapper) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return x.run(ctx, args)
}
