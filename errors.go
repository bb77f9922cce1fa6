package deepsearch

import "errors"

var (
	// Registration-time errors. These indicate caller bugs and are fatal
	// when returned from Registry.Register.
	ErrInvalidTool      = errors.New("invalid tool specification")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrToolNameConflict = errors.New("tool name conflict")

	// Dispatch errors. Both are converted into failure observations by the
	// session loop, never propagated as session failures.
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// Completion provider errors. Retried with backoff; exhausting the
	// retry budget aborts the session.
	ErrCompletionTimeout  = errors.New("completion timed out")
	ErrCompletionProvider = errors.New("completion provider failure")

	// ErrReportPersist is returned when the report file cannot be created
	// or written. The session ends Aborted with a partial result.
	ErrReportPersist = errors.New("failed to persist report")

	// ErrSessionCancelled is returned from Session.Run when cancellation
	// was requested via Session.Cancel or the context.
	ErrSessionCancelled = errors.New("session cancelled")

	// ErrSessionBudgetExceeded is returned when the wall-clock session
	// budget runs out before convergence.
	ErrSessionBudgetExceeded = errors.New("session budget exceeded")

	// ErrSessionFinished is returned when Run is called on a session that
	// already reached a terminal status.
	ErrSessionFinished = errors.New("session already finished")
)
