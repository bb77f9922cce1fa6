package deepsearch

import (
	"context"
	"sync"
	"time"
)

// EventType classifies a logged occurrence in a research session.
type EventType string

const (
	EventIterationStarted EventType = "iteration_started"
	EventTokenChunk       EventType = "token_chunk"
	EventReasoningEmitted EventType = "reasoning_emitted"
	EventToolInvoked      EventType = "tool_invoked"
	EventToolCompleted    EventType = "tool_completed"
	EventToolFailed       EventType = "tool_failed"
	EventIterationEnded   EventType = "iteration_ended"
	EventConverged        EventType = "converged"
	EventAborted          EventType = "aborted"
)

// Event is one immutable, ordered record of something the session did.
// Seq is contiguous starting at 1. Iteration is the 1-based ordinal of the
// cycle the event belongs to (0 for session-level events).
type Event struct {
	Seq       int            `json:"seq"`
	Iteration int            `json:"iteration"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Text      string         `json:"text,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// EventLog is the append-only, ordered record of everything a session does.
// It has a single writer (the session loop) and any number of concurrent
// readers. Readers observe a monotonically growing prefix; no event is ever
// removed or edited.
type EventLog struct {
	mu     sync.RWMutex
	cond   *sync.Cond
	events []Event
	clock  func() time.Time
	closed bool
}

// NewEventLog creates an empty event log. The clock is used to timestamp
// events; nil means time.Now.
func NewEventLog(clock func() time.Time) *EventLog {
	if clock == nil {
		clock = time.Now
	}
	l := &EventLog{clock: clock}
	l.cond = sync.NewCond(l.mu.RLocker())
	return l
}

// append records the event, assigning its sequence number and timestamp.
// Only the session loop calls append.
func (l *EventLog) append(ev Event) Event {
	l.mu.Lock()
	ev.Seq = len(l.events) + 1
	ev.Timestamp = l.clock()
	l.events = append(l.events, ev)
	l.mu.Unlock()

	l.cond.Broadcast()
	return ev
}

// close marks the log complete so that Watch subscriptions terminate after
// draining. The events themselves remain readable.
func (l *EventLog) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a snapshot of all events recorded so far, in order.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsAfter returns a snapshot of the events with Seq greater than seq.
// It supports restartable polling: a consumer passes the last Seq it has
// seen and receives the new suffix.
func (l *EventLog) EventsAfter(seq int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq >= len(l.events) {
		return nil
	}
	out := make([]Event, len(l.events)-seq)
	copy(out, l.events[seq:])
	return out
}

// Watch returns a channel that first replays all recorded events and then
// delivers new events as they are appended, in order. The channel is closed
// when the log is closed (session finished) or the context is cancelled.
// Watching never blocks the writer; a slow consumer only delays its own
// channel.
func (l *EventLog) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	done := make(chan struct{})

	go func() {
		defer close(ch)
		defer close(done)

		next := 0
		for {
			l.mu.RLock()
			for next >= len(l.events) && !l.closed && ctx.Err() == nil {
				l.cond.Wait()
			}
			pending := make([]Event, len(l.events)-next)
			copy(pending, l.events[next:])
			closed := l.closed
			l.mu.RUnlock()

			for _, ev := range pending {
				select {
				case ch <- ev:
					next = ev.Seq
				case <-ctx.Done():
					return
				}
			}

			if ctx.Err() != nil {
				return
			}
			if closed && next >= l.Len() {
				return
			}
		}
	}()

	// Wake the watcher when the context is cancelled while it waits on the
	// condition variable.
	go func() {
		select {
		case <-ctx.Done():
			l.cond.Broadcast()
		case <-done:
		}
	}()

	return ch
}
