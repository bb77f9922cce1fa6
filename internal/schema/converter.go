// Package schema converts tool parameter specifications into the JSON Schema
// maps expected by LLM provider tool declarations.
package schema

import (
	deepsearch "github.com/quantalogic/open-deepsearch"
)

// FromSpec converts a tool specification into a JSON Schema object describing
// the tool's arguments.
func FromSpec(spec deepsearch.ToolSpec) map[string]any {
	properties := make(map[string]any, len(spec.Parameters))
	for name, param := range spec.Parameters {
		properties[name] = FromParameter(param)
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(spec.Required) > 0 {
		doc["required"] = spec.Required
	}

	return doc
}

// FromParameter converts a single parameter into its JSON Schema form.
func FromParameter(param *deepsearch.Parameter) map[string]any {
	doc := map[string]any{
		"type": string(param.Type),
	}

	if param.Title != "" {
		doc["title"] = param.Title
	}
	if param.Description != "" {
		doc["description"] = param.Description
	}
	if len(param.Enum) > 0 {
		doc["enum"] = param.Enum
	}
	if param.Default != nil {
		doc["default"] = param.Default
	}

	if param.Type == deepsearch.TypeObject && param.Properties != nil {
		properties := make(map[string]any, len(param.Properties))
		for name, prop := range param.Properties {
			properties[name] = FromParameter(prop)
		}
		doc["properties"] = properties
		if len(param.Required) > 0 {
			doc["required"] = param.Required
		}
	}

	if param.Type == deepsearch.TypeArray && param.Items != nil {
		doc["items"] = FromParameter(param.Items)
		if param.MinItems != nil {
			doc["minItems"] = *param.MinItems
		}
		if param.MaxItems != nil {
			doc["maxItems"] = *param.MaxItems
		}
	}

	if param.Type == deepsearch.TypeNumber || param.Type == deepsearch.TypeInteger {
		if param.Minimum != nil {
			doc["minimum"] = *param.Minimum
		}
		if param.Maximum != nil {
			doc["maximum"] = *param.Maximum
		}
	}

	if param.Type == deepsearch.TypeString {
		if param.MinLength != nil {
			doc["minLength"] = *param.MinLength
		}
		if param.MaxLength != nil {
			doc["maxLength"] = *param.MaxLength
		}
		if param.Pattern != "" {
			doc["pattern"] = param.Pattern
		}
	}

	return doc
}
