package deepsearch_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"github.com/quantalogic/open-deepsearch/mock"
)

func staticTool(name string) *mock.ToolMock {
	return &mock.ToolMock{
		SpecFunc: func() deepsearch.ToolSpec {
			return deepsearch.ToolSpec{
				Name:        name,
				Description: "tool " + name,
			}
		},
		RunFunc: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"tool": name}, nil
		},
	}
}

// Two sessions start in parallel on one agent, each adding a tool named after
// its own subject. Each session must invoke its own tool without error and
// must never observe the other session's tool.
func TestStartSessionToolIsolation(t *testing.T) {
	subjects := []string{"scoped_alpha", "scoped_beta"}

	client := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
			step := 0
			toolName := ""
			return &mock.LLMSessionMock{
				GenerateContentFunc: func(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
					step++
					if step == 1 {
						prompt := gt.Cast[deepsearch.Text](t, input[0])
						for _, name := range subjects {
							if strings.Contains(string(prompt), name) {
								toolName = name
							}
						}
						gt.NotEqual(t, toolName, "")
						return &deepsearch.Response{
							Texts: []string{"using the session tool"},
							FunctionCalls: []*deepsearch.FunctionCall{{
								ID:        "call_scoped_1",
								Name:      toolName,
								Arguments: map[string]any{},
							}},
						}, nil
					}
					return &deepsearch.Response{
						FunctionCalls: []*deepsearch.FunctionCall{{
							ID:        "call_submit_1",
							Name:      deepsearch.FinalizeToolName,
							Arguments: map[string]any{"report": "## " + toolName},
						}},
					}, nil
				},
			}, nil
		},
	}

	agent := deepsearch.New(client,
		deepsearch.WithTools(staticTool("base_one")),
		deepsearch.WithTools(staticTool("base_two")),
		deepsearch.WithTools(staticTool("base_three")),
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
	)

	var wg sync.WaitGroup
	for _, subject := range subjects {
		dir := t.TempDir()
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := gt.R1(agent.StartSession(context.Background(), subject,
				deepsearch.WithTools(staticTool(subject)),
				deepsearch.WithReportDir(dir),
			)).NoError(t)

			report := gt.R1(session.Run(context.Background())).NoError(t)
			gt.Equal(t, report.Body, "## "+subject)

			for _, iter := range session.Iterations() {
				for _, call := range iter.Calls {
					gt.NoError(t, call.Error)
				}
			}
		}()
	}
	wg.Wait()
}
