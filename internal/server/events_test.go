package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewEventNormalizesTimestamp(t *testing.T) {
	local := time.Date(2026, 3, 4, 12, 0, 0, 5e8, time.FixedZone("CET", 3600))
	if got := newEvent("phase_started", local).Timestamp; got != "2026-03-04T11:00:00.5Z" {
		t.Fatalf("expected UTC timestamp, got %q", got)
	}

	before := time.Now().UTC().Add(-time.Second)
	ev := newEvent("session_started", time.Time{})
	stamped, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
	if err != nil {
		t.Fatalf("parse timestamp: %v", err)
	}
	if stamped.Before(before) || ev.Version != EventVersion {
		t.Fatalf("expected current versioned event, got %+v", ev)
	}
}

func TestTurnCommittedOmitsMissingAudio(t *testing.T) {
	ev := TurnCommittedEvent{
		Event:     newEvent("turn_committed", time.Unix(1, 0)),
		SessionID: "abc",
		PairID:    "p1",
		Question:  "Why Go?",
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	if strings.Contains(body, "audio_ref") {
		t.Fatalf("expected audio_ref omitted for unrecorded answer: %s", body)
	}
	for _, want := range []string{`"answer":""`, `"interrupted":false`, `"pair_id":"p1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}
