package transcript

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerAI    Speaker = "ai"
	SpeakerHuman Speaker = "human"
)

// NoSpeechDetected is the answer text recorded when transcription fails.
const NoSpeechDetected = "[speech could not be recognized]"

var ErrBrokenPair = errors.New("transcript pair broken")

type Turn struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	AudioRef  string  `json:"audio_ref,omitempty"`
	Timestamp float64 `json:"timestamp"`
	PairID    string  `json:"pair_id,omitempty"`
	Phase     string  `json:"phase,omitempty"`
}

// Time converts the epoch-seconds timestamp back to a time.Time.
func (t Turn) Time() time.Time {
	sec, frac := math.Modf(t.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func (t Turn) FormatMarkdown() string {
	label := "Interviewer"
	if t.Speaker == SpeakerHuman {
		label = "Candidate"
	}
	text := strings.TrimSpace(t.Text)
	if text == "" {
		text = "_(no answer)_"
	}
	return fmt.Sprintf("**[%s] %s:** %s", t.Time().Format("15:04:05"), label, text)
}

// Timestamp converts t into the epoch-seconds form stored on turns.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Pair is one committed question and its answer.
type Pair struct {
	Question Turn
	Answer   Turn
}

// Transcript is an append-only turn log. It is not safe for concurrent
// use; the owning session serializes access.
type Transcript struct {
	turns []Turn
}

func New(turns []Turn) *Transcript {
	return &Transcript{turns: append([]Turn(nil), turns...)}
}

func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

func (t *Transcript) Len() int { return len(t.turns) }

func (t *Transcript) PairCount() int { return len(t.turns) / 2 }

func (t *Transcript) Empty() bool { return len(t.turns) == 0 }

// Turns returns a copy of the log.
func (t *Transcript) Turns() []Turn {
	return append([]Turn(nil), t.turns...)
}

// Pairs groups turns positionally and checks that each pair alternates
// speakers and shares a pair id.
func (t *Transcript) Pairs() ([]Pair, error) {
	pairs := make([]Pair, 0, t.PairCount())
	for i := 0; i+1 < len(t.turns); i += 2 {
		q, a := t.turns[i], t.turns[i+1]
		if q.Speaker != SpeakerAI || a.Speaker != SpeakerHuman {
			return nil, fmt.Errorf("%w at index %d: speakers %s/%s", ErrBrokenPair, i, q.Speaker, a.Speaker)
		}
		if q.PairID != a.PairID {
			return nil, fmt.Errorf("%w at index %d: pair ids %q/%q", ErrBrokenPair, i, q.PairID, a.PairID)
		}
		pairs = append(pairs, Pair{Question: q, Answer: a})
	}
	if len(t.turns)%2 != 0 {
		return pairs, fmt.Errorf("%w: dangling turn at index %d", ErrBrokenPair, len(t.turns)-1)
	}
	return pairs, nil
}

// CountPhase reports how many committed pairs belong to phase.
func (t *Transcript) CountPhase(phase string) int {
	n := 0
	for i := 0; i < len(t.turns); i += 2 {
		if t.turns[i].Phase == phase {
			n++
		}
	}
	return n
}

func (t *Transcript) FormatMarkdown() string {
	lines := make([]string, 0, len(t.turns))
	for _, turn := range t.turns {
		lines = append(lines, turn.FormatMarkdown())
	}
	return strings.Join(lines, "\n\n")
}
