package transcript

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func committedPair(id, phase, q, a string, ts float64) (Turn, Turn) {
	return Turn{Speaker: SpeakerAI, Text: q, Timestamp: ts, PairID: id, Phase: phase},
		Turn{Speaker: SpeakerHuman, Text: a, Timestamp: ts, PairID: id, Phase: phase}
}

func TestAppendAlternatesAndCounts(t *testing.T) {
	tr := New(nil)
	for i := 0; i < 4; i++ {
		q, a := committedPair(string(rune('a'+i)), "technical", "q", "a", float64(i))
		tr.Append(q)
		tr.Append(a)
	}

	if tr.Len() != 8 {
		t.Fatalf("expected 8 turns, got %d", tr.Len())
	}
	if tr.PairCount() != 4 {
		t.Fatalf("expected 4 pairs, got %d", tr.PairCount())
	}
	for i, turn := range tr.Turns() {
		want := SpeakerAI
		if i%2 == 1 {
			want = SpeakerHuman
		}
		if turn.Speaker != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, turn.Speaker)
		}
	}
}

func TestPairsRejectsMismatchedIDs(t *testing.T) {
	q, _ := committedPair("one", "warmup", "q", "a", 1)
	_, a := committedPair("two", "warmup", "q", "a", 1)
	tr := New([]Turn{q, a})

	if _, err := tr.Pairs(); !errors.Is(err, ErrBrokenPair) {
		t.Fatalf("expected ErrBrokenPair, got %v", err)
	}
}

func TestPairsReportsDanglingTurn(t *testing.T) {
	q, a := committedPair("one", "warmup", "q", "a", 1)
	tr := New([]Turn{q, a, {Speaker: SpeakerAI, Text: "extra"}})

	pairs, err := tr.Pairs()
	if !errors.Is(err, ErrBrokenPair) {
		t.Fatalf("expected ErrBrokenPair, got %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 complete pair, got %d", len(pairs))
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	q, a := committedPair("one", "warmup", "original", "a", 1)
	tr := New([]Turn{q, a})

	turns := tr.Turns()
	turns[0].Text = "changed"

	if tr.Turns()[0].Text != "original" {
		t.Fatal("expected transcript to be unaffected by caller mutation")
	}
}

func TestCountPhase(t *testing.T) {
	tr := New(nil)
	for _, phase := range []string{"warmup", "technical", "technical"} {
		q, a := committedPair(phase, phase, "q", "a", 1)
		tr.Append(q)
		tr.Append(a)
	}
	if got := tr.CountPhase("technical"); got != 2 {
		t.Fatalf("expected 2 technical pairs, got %d", got)
	}
	if got := tr.CountPhase("closing"); got != 0 {
		t.Fatalf("expected 0 closing pairs, got %d", got)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)
	turn := Turn{Timestamp: Timestamp(now)}
	if !turn.Time().Equal(now) {
		t.Fatalf("expected %s, got %s", now, turn.Time())
	}
}

func TestFormatTurnMarkdown(t *testing.T) {
	ts := Timestamp(time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC))
	got := Turn{Speaker: SpeakerHuman, Text: "  I am a developer ", Timestamp: ts}.FormatMarkdown()
	if got != "**[09:30:15] Candidate:** I am a developer" {
		t.Fatalf("unexpected markdown: %q", got)
	}

	empty := Turn{Speaker: SpeakerHuman, Timestamp: ts}.FormatMarkdown()
	if !strings.Contains(empty, "(no answer)") {
		t.Fatalf("expected empty answer marker, got %q", empty)
	}
}
