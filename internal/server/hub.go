package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

// Hub fans interview events out to websocket subscribers. Slow subscribers
// miss messages rather than block the interview.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	now     func() time.Time

	activeMu sync.RWMutex
	active   string
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ActiveSession is the id of the interview currently running, if any.
func (h *Hub) ActiveSession() string {
	h.activeMu.RLock()
	defer h.activeMu.RUnlock()
	return h.active
}

func (h *Hub) setActive(id string) {
	h.activeMu.Lock()
	h.active = id
	h.activeMu.Unlock()
}

func (h *Hub) BroadcastSessionStarted(sessionID string, resumed bool) {
	h.setActive(sessionID)
	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", h.now()),
		SessionID: sessionID,
		Resumed:   resumed,
	})
}

func (h *Hub) BroadcastPhaseStarted(sessionID, phase string) {
	h.broadcastEvent(PhaseStartedEvent{
		Event:     newEvent("phase_started", h.now()),
		SessionID: sessionID,
		Phase:     phase,
	})
}

func (h *Hub) BroadcastTurnCommitted(sessionID string, question, answer transcript.Turn, interrupted bool) {
	h.broadcastEvent(TurnCommittedEvent{
		Event:       newEvent("turn_committed", question.Time()),
		SessionID:   sessionID,
		PairID:      question.PairID,
		Phase:       question.Phase,
		Question:    question.Text,
		Answer:      answer.Text,
		AudioRef:    answer.AudioRef,
		Interrupted: interrupted,
	})
}

func (h *Hub) BroadcastStatusChanged(sessionID string, status session.Status) {
	h.broadcastEvent(StatusChangedEvent{
		Event:     newEvent("status_changed", h.now()),
		SessionID: sessionID,
		Status:    string(status),
	})
}

func (h *Hub) BroadcastSessionEnded(sessionID string, status session.Status, duration time.Duration) {
	h.setActive("")
	h.broadcastEvent(SessionEndedEvent{
		Event:     newEvent("session_ended", h.now()),
		SessionID: sessionID,
		Status:    string(status),
		Duration:  duration.Seconds(),
	})
}

func (h *Hub) BroadcastSummaryReady(sessionID, summary, status string) {
	h.broadcastEvent(SummaryReadyEvent{
		Event:     newEvent("summary_ready", h.now()),
		SessionID: sessionID,
		Summary:   summary,
		Status:    status,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("event marshal failed", "component", "hub", "error", err)
		return
	}
	h.Broadcast(payload)
}
