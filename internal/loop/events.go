package loop

// EventType names a decision loop event.
type EventType string

const (
	EventBattleStarted  EventType = "battle_started"
	EventBattleEnded    EventType = "battle_ended"
	EventDecision       EventType = "decision_applied"
	EventFallback       EventType = "fallback_applied"
	EventRequestFailed  EventType = "request_failed"
	EventStaleDiscarded EventType = "stale_discarded"
	EventBackoffOpened  EventType = "backoff_opened"
)

// Event is published to observers of the loop. Only fields relevant to Type
// are set.
type Event struct {
	Type      EventType `json:"type"`
	Session   string    `json:"session,omitempty"`
	Commander string    `json:"commander,omitempty"`
	Time      float64   `json:"time"`
	Actions   []string  `json:"actions,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

// EventSink receives loop events. Publish is called on the simulation
// thread and must not block.
type EventSink interface {
	Publish(e Event)
}
