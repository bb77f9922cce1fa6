package deepsearch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusConverged SessionStatus = "converged"
	StatusAborted   SessionStatus = "aborted"
)

// Session is one research run: it owns the Subject, the ordered Iteration
// history, the EventLog, and (on completion) the Report. Sessions are
// independent of each other; the Agent keeps no state across sessions.
type Session struct {
	id      string
	subject string

	cfg      agentConfig
	llm      LLMClient
	registry *Registry
	finalize *finalizeTool
	log      *EventLog
	writer   *ReportWriter

	mu         sync.Mutex
	status     SessionStatus
	iterations []*Iteration
	report     *Report

	cancelled chan struct{}
	cancelOne sync.Once
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Subject returns the immutable research subject.
func (s *Session) Subject() string { return s.subject }

// EventLog returns the session's event log for live consumption.
func (s *Session) EventLog() *EventLog { return s.log }

// Status returns the current lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Iterations returns the completed iterations so far.
func (s *Session) Iterations() []*Iteration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Iteration, len(s.iterations))
	copy(out, s.iterations)
	return out
}

// Report returns the persisted report, or nil if none exists (yet).
func (s *Session) Report() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Cancel requests cancellation. The loop honors it at the next safe point,
// between iterations; a tool call in flight is allowed to finish.
func (s *Session) Cancel() {
	s.cancelOne.Do(func() { close(s.cancelled) })
}

func (s *Session) setStatus(status SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Run drives the session through Reasoning, Acting, and Observing states
// until it converges on a report or aborts. It returns the persisted report
// on convergence. Run must be called at most once per session.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	if s.status != StatusPending {
		s.mu.Unlock()
		return nil, goerr.Wrap(ErrSessionFinished, "session is not runnable", goerr.V("status", string(s.status)))
	}
	s.status = StatusRunning
	s.mu.Unlock()

	defer s.log.close()

	logger := s.cfg.logger.With("session_id", s.id, "subject", s.subject)
	ctx = ctxWithLogger(ctx, logger)

	if s.cfg.sessionBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.sessionBudget)
		defer cancel()
	}

	report, err := s.run(ctx, logger)
	if err != nil {
		return s.abort(ctx, logger, err)
	}
	return report, nil
}

func (s *Session) run(ctx context.Context, logger *slog.Logger) (*Report, error) {
	ssn, err := s.llm.NewSession(ctx,
		WithSessionSystemPrompt(s.cfg.systemPrompt),
		WithSessionTools(s.registry.Tools()...),
	)
	if err != nil {
		return nil, goerr.Wrap(ErrCompletionProvider, "failed to create provider session", goerr.V("cause", err.Error()))
	}

	input := []Input{Text(buildMissionPrompt(s.subject))}

	for index := 1; index <= s.cfg.maxIterations; index++ {
		if err := s.checkCancelled(ctx); err != nil {
			return nil, err
		}

		iter := &Iteration{Index: index}
		s.log.append(Event{Iteration: index, Type: EventIterationStarted})
		logger.Debug("iteration started", "iteration", index, "input", input)

		resp, err := s.generate(ctx, ssn, iter, input)
		if err != nil {
			return nil, err
		}

		iter.Reasoning = strings.Join(resp.Texts, "")
		s.log.append(Event{Iteration: index, Type: EventReasoningEmitted, Text: iter.Reasoning})

		if len(resp.FunctionCalls) == 0 {
			// The model replied with text but did not mark it terminal.
			// Nudge it toward a tool call or the finalize tool.
			input = []Input{Text(proceedPrompt)}
			s.endIteration(iter)
			continue
		}

		input = nil
		for _, call := range resp.FunctionCalls {
			s.log.append(Event{
				Iteration: index,
				Type:      EventToolInvoked,
				Tool:      call.Name,
				CallID:    call.ID,
				Args:      call.Arguments,
			})

			result := s.registry.Invoke(ctx, *call)
			s.observe(iter, result)

			if call.Name == FinalizeToolName && s.finalize.IsCompleted() {
				s.endIteration(iter)
				return s.converge(ctx, s.finalize.Report(), false)
			}

			input = append(input, s.toObservation(result))
		}
		s.endIteration(iter)
	}

	// Iteration bound reached: force one synthesis-only completion. No tool
	// call in the reply is dispatched.
	logger.Info("iteration bound reached, forcing synthesis", "max_iterations", s.cfg.maxIterations)

	forced := &Iteration{Index: 0}
	resp, err := s.generate(ctx, ssn, forced, []Input{Text(forcedSynthesisPrompt)})
	if err != nil {
		return nil, err
	}

	body := strings.Join(resp.Texts, "")
	if body == "" {
		// The model may answer the forced prompt with a report submission
		// call instead of text; take the report argument rather than
		// dispatching the call.
		body = reportArgument(resp.FunctionCalls)
	}
	if body == "" {
		if s.finalize.IsCompleted() {
			body = s.finalize.Report()
		} else {
			body = s.lastReasoning()
		}
	}
	if body == "" {
		return nil, goerr.New("forced synthesis produced no text")
	}

	return s.converge(ctx, body, false)
}

// reportArgument extracts the report body from a report submission call, if
// the reply contains one.
func reportArgument(calls []*FunctionCall) string {
	for _, call := range calls {
		if call.Name != FinalizeToolName {
			continue
		}
		if report, ok := call.Arguments["report"].(string); ok {
			return report
		}
	}
	return ""
}

// generate performs one Reasoning step: it calls the completion provider,
// streams token chunks into the event log as they arrive, and retries
// transient provider failures with bounded exponential backoff. Retries do
// not create additional iterations.
func (s *Session) generate(ctx context.Context, ssn LLMSession, iter *Iteration, input []Input) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= s.cfg.retryLimit; attempt++ {
		if attempt > 0 {
			wait := s.cfg.retryBaseWait << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, s.completionError(ctx.Err())
			}
			LoggerFromContext(ctx).Info("retrying completion", "attempt", attempt, "wait", wait, "error", lastErr)
		}

		resp, err := s.generateOnce(ctx, ssn, iter, input)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, s.completionError(ctx.Err())
			}
			continue
		}
		return resp, nil
	}

	return nil, s.completionError(lastErr)
}

func (s *Session) generateOnce(ctx context.Context, ssn LLMSession, iter *Iteration, input []Input) (*Response, error) {
	if s.cfg.responseMode == ResponseModeBlocking {
		return ssn.GenerateContent(ctx, input...)
	}

	stream, err := ssn.GenerateStream(ctx, input...)
	if err != nil {
		return nil, err
	}

	assembled := &Response{}
	for chunk := range stream {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		for _, text := range chunk.Texts {
			s.log.append(Event{Iteration: iter.Index, Type: EventTokenChunk, Text: text})
			iter.TokenChunks = append(iter.TokenChunks, text)
			assembled.Texts = append(assembled.Texts, text)
		}
		assembled.FunctionCalls = append(assembled.FunctionCalls, chunk.FunctionCalls...)
		if chunk.InputToken > 0 {
			assembled.InputToken = chunk.InputToken
		}
		if chunk.OutputToken > 0 {
			assembled.OutputToken = chunk.OutputToken
		}
	}

	return assembled, nil
}

func (s *Session) completionError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(ErrCompletionTimeout, "completion deadline exceeded", goerr.V("cause", err.Error()))
	}
	if err == nil {
		err = errors.New("unknown provider failure")
	}
	return goerr.Wrap(ErrCompletionProvider, "completion retries exhausted",
		goerr.V("retry_limit", s.cfg.retryLimit), goerr.V("cause", err.Error()))
}

// observe records a tool result on the iteration and in the event log.
func (s *Session) observe(iter *Iteration, result *ToolResult) {
	iter.Calls = append(iter.Calls, result)

	if result.Failed() {
		s.log.append(Event{
			Iteration: iter.Index,
			Type:      EventToolFailed,
			Tool:      result.Call.Name,
			CallID:    result.Call.ID,
			Error:     result.Error.Error(),
		})
		return
	}

	s.log.append(Event{
		Iteration: iter.Index,
		Type:      EventToolCompleted,
		Tool:      result.Call.Name,
		CallID:    result.Call.ID,
		Result:    result.Data,
	})
}

// toObservation converts a tool result into the observation input for the
// next Reasoning step. Successful payloads are JSON-sanitized and bounded by
// the observation size limit.
func (s *Session) toObservation(result *ToolResult) Input {
	if result.Failed() {
		return FunctionResponse{
			ID:    result.Call.ID,
			Name:  result.Call.Name,
			Error: result.Error,
		}
	}

	data := sanitizeResult(result.Data)
	if s.cfg.maxObservationSize > 0 {
		data = truncateObservation(data, s.cfg.maxObservationSize)
	}

	return FunctionResponse{
		ID:   result.Call.ID,
		Name: result.Call.Name,
		Data: data,
	}
}

func (s *Session) endIteration(iter *Iteration) {
	s.log.append(Event{Iteration: iter.Index, Type: EventIterationEnded})
	s.mu.Lock()
	s.iterations = append(s.iterations, iter)
	s.mu.Unlock()
}

// converge persists the report and records the terminal status. A persist
// failure aborts the session instead, and the converged event is only
// recorded once the report is on disk so the log carries a single terminal
// event either way.
func (s *Session) converge(ctx context.Context, body string, partial bool) (*Report, error) {
	if partial {
		body = PartialReportMarker + body
	}

	report, err := s.writer.Finalize(ctx, body)
	if err != nil {
		return nil, err
	}
	report.Partial = partial

	s.log.append(Event{Type: EventConverged})

	s.mu.Lock()
	s.report = report
	s.status = StatusConverged
	s.mu.Unlock()

	return report, nil
}

// abort records the terminal failure, flushes the event log, and attempts a
// partial report when any synthesis text exists.
func (s *Session) abort(ctx context.Context, logger *slog.Logger, reason error) (*Report, error) {
	s.log.append(Event{Type: EventAborted, Error: reason.Error()})
	s.setStatus(StatusAborted)
	logger.Info("session aborted", "reason", reason)

	// Report persistence already failed once; do not retry it here.
	if errors.Is(reason, ErrReportPersist) {
		return nil, reason
	}

	body := s.finalize.Report()
	if body == "" {
		body = s.lastReasoning()
	}
	if body == "" {
		return nil, reason
	}

	report, err := s.writer.Finalize(context.WithoutCancel(ctx), PartialReportMarker+body)
	if err != nil {
		logger.Warn("failed to persist partial report", "error", err)
		return nil, reason
	}
	report.Partial = true

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	return report, reason
}

func (s *Session) lastReasoning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.iterations) - 1; i >= 0; i-- {
		if text := s.iterations[i].Reasoning; text != "" {
			return text
		}
	}
	return ""
}

func (s *Session) checkCancelled(ctx context.Context) error {
	select {
	case <-s.cancelled:
		return goerr.Wrap(ErrSessionCancelled, "cancellation requested")
	default:
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return goerr.Wrap(ErrSessionBudgetExceeded, "session budget exhausted")
		}
		return goerr.Wrap(ErrSessionCancelled, "context cancelled", goerr.V("cause", err.Error()))
	}
	return nil
}

// sanitizeResult round-trips the result through JSON so the observation fed
// back to the model has a generic JSON-compatible structure.
func sanitizeResult(result map[string]any) map[string]any {
	if result == nil {
		return nil
	}

	marshaled, err := json.Marshal(result)
	if err != nil {
		return result
	}
	var unmarshaled map[string]any
	if err := json.Unmarshal(marshaled, &unmarshaled); err != nil {
		return result
	}
	return unmarshaled
}

// truncateObservation bounds the JSON size of an observation payload. When
// the payload exceeds the limit, string fields are trimmed at every nesting
// level, and the payload is marked truncated only when something was actually
// dropped so the model knows the evidence is partial.
func truncateObservation(data map[string]any, limit int) map[string]any {
	encoded, err := json.Marshal(data)
	if err != nil || len(encoded) <= limit {
		return data
	}

	bounded, trimmed := truncateValue(data, limit)
	out, ok := bounded.(map[string]any)
	if !ok || !trimmed {
		return data
	}
	out["truncated"] = true
	return out
}

// truncateValue trims string leaves that exceed their share of the budget,
// splitting the budget evenly among the entries of maps and slices. The
// second return value reports whether anything was trimmed.
func truncateValue(v any, budget int) (any, bool) {
	switch val := v.(type) {
	case string:
		if len(val) > budget {
			return val[:budget] + "...", true
		}
		return val, false

	case map[string]any:
		out := make(map[string]any, len(val))
		share := budget / max(len(val), 1)
		trimmed := false
		for k, item := range val {
			next, t := truncateValue(item, share)
			out[k] = next
			trimmed = trimmed || t
		}
		return out, trimmed

	case []any:
		out := make([]any, len(val))
		share := budget / max(len(val), 1)
		trimmed := false
		for i, item := range val {
			next, t := truncateValue(item, share)
			out[i] = next
			trimmed = trimmed || t
		}
		return out, trimmed

	default:
		return v, false
	}
}
