package session

import "github.com/tailored-agentic-units/converse/observability"

// Session event types emitted on the diagnostics channel.
const (
	EventSessionStart        observability.EventType = "session.start"
	EventTurnStart           observability.EventType = "session.turn.start"
	EventTurnComplete        observability.EventType = "session.turn.complete"
	EventTokenWarning        observability.EventType = "session.token.warning"
	EventContextReduced      observability.EventType = "session.context.reduced"
	EventContextReduceFailed observability.EventType = "session.context.reduce_failed"
	EventSessionDestroy      observability.EventType = "session.destroy"
	EventError               observability.EventType = "session.error"
)
