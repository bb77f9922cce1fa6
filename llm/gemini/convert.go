package gemini

import (
	deepsearch "github.com/quantalogic/open-deepsearch"
	"google.golang.org/genai"
)

// convertTool converts a deepsearch tool to Gemini's FunctionDeclaration
func convertTool(tool deepsearch.Tool) *genai.FunctionDeclaration {
	spec := tool.Spec()

	// Gemini requires an empty slice, not nil
	required := spec.Required
	if required == nil {
		required = []string{}
	}

	parameters := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
		Required:   required,
	}

	for name, param := range spec.Parameters {
		parameters.Properties[name] = convertParameter(param)
	}

	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  parameters,
	}
}

// convertParameter converts a deepsearch.Parameter to Gemini's schema
func convertParameter(param *deepsearch.Parameter) *genai.Schema {
	schema := &genai.Schema{
		Type:        getGeminiType(param.Type),
		Description: param.Description,
		Title:       param.Title,
	}

	if len(param.Enum) > 0 {
		schema.Enum = param.Enum
	}

	if param.Properties != nil {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range param.Properties {
			schema.Properties[name] = convertParameter(prop)
		}
		if len(param.Required) > 0 {
			schema.Required = param.Required
		} else {
			schema.Required = []string{}
		}
	}

	if param.Items != nil {
		schema.Items = convertParameter(param.Items)
	}

	if param.Type == deepsearch.TypeNumber || param.Type == deepsearch.TypeInteger {
		if param.Minimum != nil {
			minVal := *param.Minimum
			schema.Minimum = &minVal
		}
		if param.Maximum != nil {
			maxVal := *param.Maximum
			schema.Maximum = &maxVal
		}
	}

	if param.Type == deepsearch.TypeString {
		if param.MinLength != nil {
			minLen := int64(*param.MinLength)
			schema.MinLength = &minLen
		}
		if param.MaxLength != nil {
			maxLen := int64(*param.MaxLength)
			schema.MaxLength = &maxLen
		}
		if param.Pattern != "" {
			schema.Pattern = param.Pattern
		}
	}

	if param.Type == deepsearch.TypeArray {
		if param.MinItems != nil {
			minItems := int64(*param.MinItems)
			schema.MinItems = &minItems
		}
		if param.MaxItems != nil {
			maxItems := int64(*param.MaxItems)
			schema.MaxItems = &maxItems
		}
	}

	return schema
}

func getGeminiType(paramType deepsearch.ParameterType) genai.Type {
	switch paramType {
	case deepsearch.TypeString:
		return genai.TypeString
	case deepsearch.TypeNumber:
		return genai.TypeNumber
	case deepsearch.TypeInteger:
		return genai.TypeInteger
	case deepsearch.TypeBoolean:
		return genai.TypeBoolean
	case deepsearch.TypeArray:
		return genai.TypeArray
	case deepsearch.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
