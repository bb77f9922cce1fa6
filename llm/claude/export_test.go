package claude

// Export convert functions for testing
var (
	ConvertTool                   = convertTool
	ConvertParameterToSchema      = convertParameterToSchema
	ConvertParametersToJSONSchema = convertParametersToJSONSchema
)

type JsonSchema = jsonSchema
