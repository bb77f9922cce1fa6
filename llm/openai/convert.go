package openai

import (
	deepsearch "github.com/quantalogic/open-deepsearch"
	"github.com/quantalogic/open-deepsearch/internal/schema"
	"github.com/sashabaranov/go-openai"
)

// convertTool converts a deepsearch tool to an OpenAI tool declaration.
func convertTool(tool deepsearch.Tool) openai.Tool {
	spec := tool.Spec()
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema.FromSpec(spec),
		},
	}
}
