package openai

// Export convert functions for testing
var ConvertTool = convertTool
