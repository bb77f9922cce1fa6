package deepsearch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	deepsearch "github.com/quantalogic/open-deepsearch"
	"github.com/quantalogic/open-deepsearch/mock"
)

// scriptedClient returns a provider client whose session replies with the
// given responses in order, for both blocking and streaming generation.
func scriptedClient(responses ...*deepsearch.Response) *mock.LLMClientMock {
	var mu sync.Mutex
	next := 0

	take := func() *deepsearch.Response {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(responses) {
			panic("scripted session exhausted")
		}
		resp := responses[next]
		next++
		return resp
	}

	session := &mock.LLMSessionMock{
		GenerateContentFunc: func(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
			return take(), nil
		},
		GenerateStreamFunc: func(ctx context.Context, input ...deepsearch.Input) (<-chan *deepsearch.Response, error) {
			ch := make(chan *deepsearch.Response, 1)
			ch <- take()
			close(ch)
			return ch, nil
		},
	}

	return &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
			return session, nil
		},
	}
}

func searchTool(t *testing.T, wantQuery string) *mock.ToolMock {
	t.Helper()
	return &mock.ToolMock{
		SpecFunc: func() deepsearch.ToolSpec {
			return deepsearch.ToolSpec{
				Name:        "search",
				Description: "Search the web",
				Parameters: map[string]*deepsearch.Parameter{
					"query": {Type: deepsearch.TypeString},
				},
				Required: []string{"query"},
			}
		},
		RunFunc: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			gt.Equal(t, args["query"].(string), wantQuery)
			return map[string]any{
				"results": []map[string]any{
					{"title": "Willow chip announcement", "snippet": "error correction milestone"},
					{"title": "Logical qubit records", "snippet": "coherence times doubled"},
				},
			}, nil
		},
	}
}

func searchCall(query string) *deepsearch.FunctionCall {
	return &deepsearch.FunctionCall{
		ID:        "call_search_1",
		Name:      "search",
		Arguments: map[string]any{"query": query},
	}
}

func submitReportCall(body string) *deepsearch.FunctionCall {
	return &deepsearch.FunctionCall{
		ID:        "call_submit_1",
		Name:      deepsearch.FinalizeToolName,
		Arguments: map[string]any{"report": body},
	}
}

func TestResearchEndToEnd(t *testing.T) {
	const subject = "quantum computing breakthroughs 2024"
	const body = "## Summary\n..."

	client := scriptedClient(
		&deepsearch.Response{
			Texts:         []string{"I should search for recent results."},
			FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)},
		},
		&deepsearch.Response{
			Texts:         []string{"Enough evidence gathered."},
			FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)},
		},
	)

	dir := t.TempDir()
	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(dir),
		deepsearch.WithTools(searchTool(t, subject)),
	)

	session := gt.R1(agent.StartSession(context.Background(), subject)).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.ID, "report_001")
	gt.Equal(t, report.Body, body)
	gt.False(t, report.Partial)

	data := gt.R1(os.ReadFile(filepath.Join(dir, "report_001.md"))).NoError(t)
	gt.Equal(t, string(data), body)

	iterations := session.Iterations()
	gt.Equal(t, len(iterations), 2)
	gt.Equal(t, iterations[0].Index, 1)
	gt.Equal(t, iterations[1].Index, 2)
	gt.Equal(t, iterations[0].Calls[0].Call.Name, "search")
	gt.False(t, iterations[0].Calls[0].Failed())

	gt.Equal(t, session.Status(), deepsearch.StatusConverged)

	events := session.EventLog().Events()
	gt.True(t, len(events) > 0)
	gt.Equal(t, events[len(events)-1].Type, deepsearch.EventConverged)
	for i, ev := range events {
		gt.Equal(t, ev.Seq, i+1)
	}
}

func TestSessionForcedSynthesis(t *testing.T) {
	const subject = "fusion energy milestones"

	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)}},
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)}},
		// Forced completion after the bound. A tool call here would be ignored.
		&deepsearch.Response{Texts: []string{"## Partial findings\n\nfusion summary"}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
		deepsearch.WithMaxIterations(2),
		deepsearch.WithTools(searchTool(t, subject)),
	)

	session := gt.R1(agent.StartSession(context.Background(), subject)).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, "## Partial findings\n\nfusion summary")
	gt.False(t, report.Partial)
	gt.Equal(t, len(session.Iterations()), 2)
	gt.Equal(t, session.Status(), deepsearch.StatusConverged)
}

func TestSessionForcedSynthesisIgnoresToolCalls(t *testing.T) {
	const subject = "graphene production"

	calls := 0
	tool := searchTool(t, subject)
	baseRun := tool.RunFunc
	tool.RunFunc = func(ctx context.Context, args map[string]any) (map[string]any, error) {
		calls++
		return baseRun(ctx, args)
	}

	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)}},
		&deepsearch.Response{
			Texts:         []string{"## Findings"},
			FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)},
		},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
		deepsearch.WithMaxIterations(1),
		deepsearch.WithTools(tool),
	)

	session := gt.R1(agent.StartSession(context.Background(), subject)).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, "## Findings")
	// Only the in-bound iteration dispatched its tool call.
	gt.Equal(t, calls, 1)
}

func TestSessionForcedSynthesisTakesSubmittedReport(t *testing.T) {
	const subject = "battery chemistry advances"
	const body = "## Battery findings\n\nsolid state progress"

	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)}},
		// The forced completion answers with a report submission call and no
		// text; its argument becomes the report body.
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
		deepsearch.WithMaxIterations(1),
		deepsearch.WithTools(searchTool(t, subject)),
	)

	session := gt.R1(agent.StartSession(context.Background(), subject)).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, body)
	gt.False(t, report.Partial)
	gt.Equal(t, session.Status(), deepsearch.StatusConverged)

	// The submission call itself was not dispatched as a tool.
	for _, ev := range session.EventLog().Events() {
		if ev.Type == deepsearch.EventToolInvoked {
			gt.NotEqual(t, ev.Tool, deepsearch.FinalizeToolName)
		}
	}
}

func TestSessionProviderRetry(t *testing.T) {
	const body = "## Retried\n\nreport"

	var mu sync.Mutex
	attempts := 0
	session := &mock.LLMSessionMock{
		GenerateContentFunc: func(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts <= 2 {
				return nil, errors.New("upstream unavailable")
			}
			return &deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)}}, nil
		},
	}
	client := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
			return session, nil
		},
	}

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
		deepsearch.WithRetryLimit(3),
		deepsearch.WithRetryBaseWait(time.Millisecond),
	)

	sess := gt.R1(agent.StartSession(context.Background(), "resilience")).NoError(t)
	report := gt.R1(sess.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, body)
	gt.Equal(t, attempts, 3)
	// Retries stay inside the iteration; they never add iterations.
	gt.Equal(t, len(sess.Iterations()), 1)

	started := 0
	for _, ev := range sess.EventLog().Events() {
		if ev.Type == deepsearch.EventIterationStarted {
			started++
		}
	}
	gt.Equal(t, started, 1)
}

func TestSessionProviderRetryExhausted(t *testing.T) {
	attempts := 0
	session := &mock.LLMSessionMock{
		GenerateContentFunc: func(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
			attempts++
			return nil, errors.New("upstream unavailable")
		},
	}
	client := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
			return session, nil
		},
	}

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
		deepsearch.WithRetryLimit(2),
		deepsearch.WithRetryBaseWait(time.Millisecond),
	)

	sess := gt.R1(agent.StartSession(context.Background(), "resilience")).NoError(t)
	report, err := sess.Run(context.Background())

	gt.Error(t, err)
	gt.True(t, errors.Is(err, deepsearch.ErrCompletionProvider))
	gt.Equal(t, attempts, 3)
	gt.Equal(t, sess.Status(), deepsearch.StatusAborted)
	// No synthesis text exists, so no partial report either.
	gt.Equal(t, report, nil)

	events := sess.EventLog().Events()
	gt.Equal(t, events[len(events)-1].Type, deepsearch.EventAborted)
}

func TestSessionUnknownToolContinues(t *testing.T) {
	const body = "## Recovered\n\nreport"

	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{{
			ID:        "call_bogus",
			Name:      "no_such_tool",
			Arguments: map[string]any{"q": "x"},
		}}},
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
	)

	session := gt.R1(agent.StartSession(context.Background(), "recovery")).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, body)
	gt.Equal(t, session.Status(), deepsearch.StatusConverged)

	iterations := session.Iterations()
	gt.Equal(t, len(iterations), 2)
	gt.True(t, iterations[0].Calls[0].Failed())
	gt.True(t, errors.Is(iterations[0].Calls[0].Error, deepsearch.ErrUnknownTool))

	failed := false
	for _, ev := range session.EventLog().Events() {
		if ev.Type == deepsearch.EventToolFailed && ev.Tool == "no_such_tool" {
			failed = true
		}
	}
	gt.True(t, failed)
}

func TestSessionTextOnlyReplyIsNudged(t *testing.T) {
	const body = "## Nudged\n\nreport"

	client := scriptedClient(
		&deepsearch.Response{Texts: []string{"Let me think about this first."}},
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
	)

	session := gt.R1(agent.StartSession(context.Background(), "nudge")).NoError(t)
	report := gt.R1(session.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, body)
	gt.Equal(t, len(session.Iterations()), 2)
	gt.Equal(t, session.Iterations()[0].Reasoning, "Let me think about this first.")
}

func TestSessionCancellation(t *testing.T) {
	t.Run("before any reasoning", func(t *testing.T) {
		client := scriptedClient()
		agent := deepsearch.New(client,
			deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
			deepsearch.WithReportDir(t.TempDir()),
		)

		session := gt.R1(agent.StartSession(context.Background(), "cancelled")).NoError(t)
		session.Cancel()

		report, err := session.Run(context.Background())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, deepsearch.ErrSessionCancelled))
		gt.Equal(t, report, nil)
		gt.Equal(t, session.Status(), deepsearch.StatusAborted)
	})

	t.Run("after reasoning persists a partial report", func(t *testing.T) {
		var session *deepsearch.Session

		mockSession := &mock.LLMSessionMock{
			GenerateContentFunc: func(ctx context.Context, input ...deepsearch.Input) (*deepsearch.Response, error) {
				session.Cancel()
				return &deepsearch.Response{Texts: []string{"findings so far"}}, nil
			},
		}
		client := &mock.LLMClientMock{
			NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
				return mockSession, nil
			},
		}

		dir := t.TempDir()
		agent := deepsearch.New(client,
			deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
			deepsearch.WithReportDir(dir),
		)

		session = gt.R1(agent.StartSession(context.Background(), "cancelled")).NoError(t)
		report, err := session.Run(context.Background())

		gt.Error(t, err)
		gt.True(t, errors.Is(err, deepsearch.ErrSessionCancelled))
		gt.NotEqual(t, report, nil)
		gt.True(t, report.Partial)
		gt.True(t, strings.HasPrefix(report.Body, deepsearch.PartialReportMarker))
		gt.True(t, strings.Contains(report.Body, "findings so far"))

		data := gt.R1(os.ReadFile(report.Path)).NoError(t)
		gt.Equal(t, string(data), report.Body)
	})
}

func TestSessionRunTwice(t *testing.T) {
	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall("## Done")}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
	)

	session := gt.R1(agent.StartSession(context.Background(), "once")).NoError(t)
	gt.R1(session.Run(context.Background())).NoError(t)

	_, err := session.Run(context.Background())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, deepsearch.ErrSessionFinished))
}

func TestSessionStreamingTokenChunks(t *testing.T) {
	const body = "## Summary\n..."

	session := &mock.LLMSessionMock{
		GenerateStreamFunc: func(ctx context.Context, input ...deepsearch.Input) (<-chan *deepsearch.Response, error) {
			ch := make(chan *deepsearch.Response, 3)
			ch <- &deepsearch.Response{Texts: []string{"## Sum"}}
			ch <- &deepsearch.Response{Texts: []string{"mary\n..."}}
			ch <- &deepsearch.Response{
				FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)},
				InputToken:    12,
				OutputToken:   34,
			}
			close(ch)
			return ch, nil
		},
	}
	client := &mock.LLMClientMock{
		NewSessionFunc: func(ctx context.Context, options ...deepsearch.SessionOption) (deepsearch.LLMSession, error) {
			return session, nil
		},
	}

	agent := deepsearch.New(client, deepsearch.WithReportDir(t.TempDir()))

	sess := gt.R1(agent.StartSession(context.Background(), "streaming")).NoError(t)
	report := gt.R1(sess.Run(context.Background())).NoError(t)

	gt.Equal(t, report.Body, body)

	iterations := sess.Iterations()
	gt.Equal(t, len(iterations), 1)
	gt.Equal(t, iterations[0].TokenChunks, []string{"## Sum", "mary\n..."})
	gt.Equal(t, iterations[0].Reasoning, "## Summary\n...")

	var chunks []string
	for _, ev := range sess.EventLog().Events() {
		if ev.Type == deepsearch.EventTokenChunk {
			chunks = append(chunks, ev.Text)
		}
	}
	gt.Equal(t, chunks, []string{"## Sum", "mary\n..."})
}

func TestSessionDeterministicReplay(t *testing.T) {
	const subject = "quantum computing breakthroughs 2024"
	const body = "## Summary\n..."

	run := func(dir string) []deepsearch.Event {
		client := scriptedClient(
			&deepsearch.Response{
				Texts:         []string{"Searching."},
				FunctionCalls: []*deepsearch.FunctionCall{searchCall(subject)},
			},
			&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall(body)}},
		)
		agent := deepsearch.New(client,
			deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
			deepsearch.WithReportDir(dir),
			deepsearch.WithClock(fixedClock()),
			deepsearch.WithTools(searchTool(t, subject)),
		)

		session := gt.R1(agent.StartSession(context.Background(), subject)).NoError(t)
		report := gt.R1(session.Run(context.Background())).NoError(t)
		gt.Equal(t, report.Body, body)

		return session.EventLog().Events()
	}

	first := run(t.TempDir())
	second := run(t.TempDir())

	gt.Equal(t, len(first), len(second))
	for i := range first {
		gt.Equal(t, first[i], second[i])
	}
}

func TestSessionReportPersistFailure(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "occupied")
	gt.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))

	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall("## Lost")}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(blocked),
	)

	session := gt.R1(agent.StartSession(context.Background(), "doomed")).NoError(t)
	report, err := session.Run(context.Background())

	gt.Error(t, err)
	gt.True(t, errors.Is(err, deepsearch.ErrReportPersist))
	gt.Equal(t, report, nil)
	gt.Equal(t, session.Status(), deepsearch.StatusAborted)

	events := session.EventLog().Events()
	gt.Equal(t, events[len(events)-1].Type, deepsearch.EventAborted)
	for _, ev := range events {
		gt.NotEqual(t, ev.Type, deepsearch.EventConverged)
	}
}

func TestResearchOneShot(t *testing.T) {
	client := scriptedClient(
		&deepsearch.Response{FunctionCalls: []*deepsearch.FunctionCall{submitReportCall("## One shot")}},
	)

	agent := deepsearch.New(client,
		deepsearch.WithResponseMode(deepsearch.ResponseModeBlocking),
		deepsearch.WithReportDir(t.TempDir()),
	)

	report := gt.R1(agent.Research(context.Background(), "single call")).NoError(t)
	gt.Equal(t, report.Body, "## One shot")
}
