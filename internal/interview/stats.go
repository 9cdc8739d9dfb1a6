package interview

import (
	"fmt"
	"strings"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

// Stats summarizes a finished run of an interview.
type Stats struct {
	SessionID       string
	Status          session.Status
	Duration        time.Duration
	Pairs           int
	EmptyAnswers    int
	Unrecognized    int
	Interruptions   int
	Errors          int
	CompletedPhases int
	TotalPhases     int
}

func ComputeStats(st session.State, interruptions int, end time.Time) Stats {
	s := Stats{
		SessionID:       st.SessionID,
		Status:          st.Status,
		Pairs:           len(st.Transcript) / 2,
		Interruptions:   interruptions,
		Errors:          len(st.Errors),
		CompletedPhases: len(st.CompletedPhases),
		TotalPhases:     len(st.Phases),
	}
	if !st.StartedAt.IsZero() && end.After(st.StartedAt) {
		s.Duration = end.Sub(st.StartedAt)
	}
	for _, turn := range st.Transcript {
		if turn.Speaker != transcript.SpeakerHuman {
			continue
		}
		switch strings.TrimSpace(turn.Text) {
		case "":
			s.EmptyAnswers++
		case transcript.NoSpeechDetected:
			s.Unrecognized++
		}
	}
	return s
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interview %s: %s\n", s.SessionID, s.Status)
	fmt.Fprintf(&b, "  Duration:       %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(&b, "  Phases:         %d/%d\n", s.CompletedPhases, s.TotalPhases)
	fmt.Fprintf(&b, "  Questions:      %d\n", s.Pairs)
	fmt.Fprintf(&b, "  Empty answers:  %d\n", s.EmptyAnswers)
	fmt.Fprintf(&b, "  Unrecognized:   %d\n", s.Unrecognized)
	fmt.Fprintf(&b, "  Interruptions:  %d\n", s.Interruptions)
	fmt.Fprintf(&b, "  Errors:         %d\n", s.Errors)
	return b.String()
}
