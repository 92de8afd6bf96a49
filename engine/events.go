package engine

import (
	"fmt"
	"log"
	"time"
)

// EventType names a state change pushed to UI consumers.
type EventType string

const (
	EventTimelineUpdated   EventType = "timeline_updated"
	EventPresenceUpdated   EventType = "presence_updated"
	EventMessageDelivered  EventType = "message_delivered"
	EventDecryptSucceeded  EventType = "decrypt_succeeded"
	EventDecryptFailed     EventType = "decrypt_failed"
	EventTransportError    EventType = "transport_error"
	EventLiveShareStarted  EventType = "live_share_started"
	EventLiveShareDegraded EventType = "live_share_degraded"
	EventLiveShareStopped  EventType = "live_share_stopped"
)

// Event is one notification on the engine's event stream.
type Event struct {
	Type    EventType `json:"type"`
	Details string    `json:"details,omitempty"`
	At      time.Time `json:"at"`
}

// EventLogger records noteworthy engine events durably. The store's event
// log implements this; a nil logger disables recording.
type EventLogger interface {
	LogEvent(eventType, severity, details string) error
}

// emit pushes an event to the stream without blocking; a slow or absent
// consumer drops events rather than stalling the engine.
func (e *Engine) emit(eventType EventType, format string, args ...any) {
	details := fmt.Sprintf(format, args...)

	event := Event{Type: eventType, Details: details, At: e.now()}
	select {
	case e.events <- event:
	default:
	}

	if e.cfg.Events == nil {
		return
	}
	severity := "info"
	switch eventType {
	case EventDecryptFailed, EventTransportError, EventLiveShareDegraded:
		severity = "warning"
	}
	if err := e.cfg.Events.LogEvent(string(eventType), severity, details); err != nil {
		log.Printf("engine: event log write failed: %v", err)
	}
}
