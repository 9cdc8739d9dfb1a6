package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Resumed   bool   `json:"resumed"`
}

type PhaseStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

type TurnCommittedEvent struct {
	Event
	SessionID   string `json:"session_id"`
	PairID      string `json:"pair_id"`
	Phase       string `json:"phase"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	AudioRef    string `json:"audio_ref,omitempty"`
	Interrupted bool   `json:"interrupted"`
}

type StatusChangedEvent struct {
	Event
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type SessionEndedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Duration  float64 `json:"duration"`
}

type SummaryReadyEvent struct {
	Event
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
