package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

// ExportHeader is the first line of a JSONL transcript export.
type ExportHeader struct {
	Type            string                `json:"type"`
	SessionID       string                `json:"session_id"`
	Status          session.Status        `json:"status"`
	JobInfo         session.JobInfo       `json:"job_info"`
	CandidateInfo   session.CandidateInfo `json:"candidate_info"`
	CompletedPhases []string              `json:"completed_phases"`
	StartedAt       time.Time             `json:"started_at"`
	ExportedAt      time.Time             `json:"exported_at"`
	Pairs           int                   `json:"pairs"`
	Errors          int                   `json:"errors"`
}

type exportTurn struct {
	Type string `json:"type"`
	transcript.Turn
}

// Writer exports session transcripts as JSONL plus a Markdown rendering.
type Writer struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join("data", "transcripts")
	}
	return &Writer{dir: dir, now: time.Now}
}

// Export writes <dir>/<session_id>.jsonl and .md, returning the JSONL path.
func (w *Writer) Export(st session.State) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	jsonlPath := filepath.Join(w.dir, st.SessionID+".jsonl")
	if err := writeAtomic(jsonlPath, func(buf *bufio.Writer) error {
		enc := json.NewEncoder(buf)
		header := ExportHeader{
			Type:            "session",
			SessionID:       st.SessionID,
			Status:          st.Status,
			JobInfo:         st.JobInfo,
			CandidateInfo:   st.CandidateInfo,
			CompletedPhases: st.CompletedPhases,
			StartedAt:       st.StartedAt,
			ExportedAt:      w.now().UTC(),
			Pairs:           len(st.Transcript) / 2,
			Errors:          len(st.Errors),
		}
		if err := enc.Encode(header); err != nil {
			return err
		}
		for _, turn := range st.Transcript {
			if err := enc.Encode(exportTurn{Type: "turn", Turn: turn}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("write %s: %w", jsonlPath, err)
	}

	mdPath := filepath.Join(w.dir, st.SessionID+".md")
	if err := writeAtomic(mdPath, func(buf *bufio.Writer) error {
		_, err := buf.WriteString(formatMarkdown(st))
		return err
	}); err != nil {
		return jsonlPath, fmt.Errorf("write %s: %w", mdPath, err)
	}

	return jsonlPath, nil
}

func formatMarkdown(st session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Interview: %s", st.JobInfo.Title)
	if st.JobInfo.Company != "" {
		fmt.Fprintf(&b, " at %s", st.JobInfo.Company)
	}
	fmt.Fprintf(&b, "\n\n- Candidate: %s\n- Session: %s\n- Status: %s\n- Started: %s\n\n",
		st.CandidateInfo.Name, st.SessionID, st.Status, st.StartedAt.Format(time.RFC3339))

	phase := ""
	for _, turn := range st.Transcript {
		if turn.Speaker == transcript.SpeakerAI && turn.Phase != "" && turn.Phase != phase {
			phase = turn.Phase
			fmt.Fprintf(&b, "## %s\n\n", phase)
		}
		b.WriteString(turn.FormatMarkdown())
		b.WriteString("\n\n")
	}
	return b.String()
}

func writeAtomic(path string, fill func(*bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	buf := bufio.NewWriter(tmp)
	if err := fill(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
