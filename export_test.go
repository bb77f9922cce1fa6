package deepsearch

// AppendEvent exposes the event log writer side for tests.
func AppendEvent(l *EventLog, ev Event) Event { return l.append(ev) }

// CloseEventLog exposes the event log shutdown for tests.
func CloseEventLog(l *EventLog) { l.close() }

var TruncateObservation = truncateObservation
