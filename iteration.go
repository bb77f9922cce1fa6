package deepsearch

// Iteration is one completed Reason-Act-Observe cycle. The Index is 1-based
// and strictly increasing; an Iteration is immutable once its cycle ends.
type Iteration struct {
	// Index is the 1-based ordinal of the cycle.
	Index int

	// Reasoning is the text the model emitted during the Reasoning step.
	Reasoning string

	// Calls are the tool invocations the model requested in this cycle,
	// in request order, paired with their results.
	Calls []*ToolResult

	// TokenChunks is the snapshot of streamed fragments received while the
	// Reasoning text was generated.
	TokenChunks []string
}
