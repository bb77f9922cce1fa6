package mcp

// Export conversion functions for testing
var (
	InputSchemaToParameters = inputSchemaToParameters
	PropertyToParameter     = propertyToParameter
	ContentToMap            = contentToMap
)
