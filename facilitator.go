package deepsearch

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// FinalizeToolName is the name of the tool the model must call to mark its
// synthesis terminal. The session ends the loop when this tool is invoked;
// free-text heuristics are never used as a convergence signal.
const FinalizeToolName = "submit_report"

// finalizeTool captures the model's terminal synthesis. It is registered
// alongside the user's tools and is the explicit termination marker of the
// loop.
type finalizeTool struct {
	completed bool
	report    string
}

func newFinalizeTool() *finalizeTool {
	return &finalizeTool{}
}

func (t *finalizeTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        FinalizeToolName,
		Description: "Submit the final research report. Call this tool exactly once, when all research is complete and the full Markdown report is written. Calling it ends the research session.",
		Parameters: map[string]*Parameter{
			"report": {
				Type:        TypeString,
				Description: "The complete research report in Markdown.",
			},
		},
		Required: []string{"report"},
	}
}

func (t *finalizeTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	report, ok := args["report"].(string)
	if !ok || report == "" {
		return nil, goerr.Wrap(ErrInvalidArguments, "report must be a non-empty string", goerr.V("field", "report"))
	}

	t.completed = true
	t.report = report
	return map[string]any{"status": "accepted"}, nil
}

func (t *finalizeTool) IsCompleted() bool {
	return t.completed
}

func (t *finalizeTool) Report() string {
	return t.report
}
