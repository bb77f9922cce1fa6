package deepsearch

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt frames the agent as a research assistant. It can be
// replaced with WithSystemPrompt.
const DefaultSystemPrompt = `You are an advanced research agent. You investigate a subject by searching the web, reading sources, and taking notes with the provided tools. You never fabricate sources. When your research is complete, you call the ` + FinalizeToolName + ` tool with the full Markdown report.`

const missionPrompt = `MISSION: Research the subject below and produce a comprehensive Markdown report.

Subject: %s

Work iteratively: reason about what you know, use the available tools to gather evidence, and refine your understanding with each observation. Prefer primary sources and note where sources disagree.

The final report must contain these sections:
1. Executive Summary
2. Methodology
3. Findings
4. Source Analysis
5. Recommendations
6. Citations

When the report is ready, call the ` + FinalizeToolName + ` tool with the complete report as the "report" argument. Do not call it before the research is done.`

// proceedPrompt nudges the model when it replies with plain text but neither
// calls a tool nor submits the report.
const proceedPrompt = `Continue the research. Use a tool to gather more evidence, or, if the research is complete, call the ` + FinalizeToolName + ` tool with the full Markdown report.`

// forcedSynthesisPrompt is sent once when the iteration bound is reached.
// Tools are withheld for this final completion.
const forcedSynthesisPrompt = `The research budget is exhausted. No further tool calls are permitted. Using only the observations you have accumulated so far, write the best possible final Markdown report now. Reply with the report text only.`

// buildMissionPrompt renders the initial reasoning context for a subject.
func buildMissionPrompt(subject string) string {
	return fmt.Sprintf(missionPrompt, strings.TrimSpace(subject))
}
