package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

const (
	SummaryPending   = "pending"
	SummaryRunning   = "running"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
	SummarySkipped   = "skipped"
)

// Interview is the archived record of a finished or abandoned session.
type Interview struct {
	ID             string     `json:"id"`
	CandidateName  string     `json:"candidate_name"`
	PositionTitle  string     `json:"position_title"`
	Company        string     `json:"company"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Status         string     `json:"status"`
	Pairs          int        `json:"pairs"`
	Summary        string     `json:"summary"`
	SummaryStatus  string     `json:"summary_status"`
	TranscriptPath string     `json:"transcript_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interviews.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	schema := []struct {
		name string
		stmt string
	}{
		{"interviews table", `
			CREATE TABLE IF NOT EXISTS interviews (
				id TEXT PRIMARY KEY,
				candidate_name TEXT NOT NULL DEFAULT '',
				position_title TEXT NOT NULL DEFAULT '',
				company TEXT NOT NULL DEFAULT '',
				started_at TEXT NOT NULL,
				ended_at TEXT,
				status TEXT NOT NULL,
				pairs INTEGER NOT NULL DEFAULT 0,
				summary TEXT NOT NULL DEFAULT '',
				summary_status TEXT NOT NULL DEFAULT 'pending',
				transcript_path TEXT NOT NULL DEFAULT ''
			);`},
		{"turns table", `
			CREATE TABLE IF NOT EXISTS turns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				interview_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				pair_id TEXT NOT NULL DEFAULT '',
				speaker TEXT NOT NULL,
				phase TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL,
				audio_ref TEXT NOT NULL DEFAULT '',
				timestamp REAL NOT NULL,
				FOREIGN KEY(interview_id) REFERENCES interviews(id) ON DELETE CASCADE,
				UNIQUE(interview_id, position)
			);`},
		{"summary_requests table", `
			CREATE TABLE IF NOT EXISTS summary_requests (
				interview_id TEXT NOT NULL,
				prompt_hash TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(interview_id, prompt_hash)
			);`},
		{"interviews index", "CREATE INDEX IF NOT EXISTS idx_interviews_started_at ON interviews(started_at)"},
	}
	for _, q := range schema {
		if _, err := s.db.Exec(q.stmt); err != nil {
			return fmt.Errorf("create %s: %w", q.name, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// ArchiveInterview upserts the interview row and replaces its turns with
// the snapshot's transcript. Summary columns are left untouched on update.
func (s *SQLiteStore) ArchiveInterview(st session.State, transcriptPath string, endedAt time.Time) error {
	if strings.TrimSpace(st.SessionID) == "" {
		return errors.New("session id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive %s: %w", st.SessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var ended any
	if !endedAt.IsZero() {
		ended = endedAt.UTC().Format(time.RFC3339Nano)
	}

	if _, err := tx.Exec(
		`INSERT INTO interviews(id, candidate_name, position_title, company, started_at, ended_at, status, pairs, summary_status, transcript_path)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			status = excluded.status,
			pairs = excluded.pairs,
			transcript_path = excluded.transcript_path`,
		st.SessionID,
		st.CandidateInfo.Name,
		st.JobInfo.Title,
		st.JobInfo.Company,
		st.StartedAt.UTC().Format(time.RFC3339Nano),
		ended,
		string(st.Status),
		len(st.Transcript)/2,
		SummaryPending,
		transcriptPath,
	); err != nil {
		return fmt.Errorf("upsert interview %s: %w", st.SessionID, err)
	}

	if _, err := tx.Exec(`DELETE FROM turns WHERE interview_id = ?`, st.SessionID); err != nil {
		return fmt.Errorf("clear turns for %s: %w", st.SessionID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO turns(interview_id, position, pair_id, speaker, phase, text, audio_ref, timestamp) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare turn insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, turn := range st.Transcript {
		if _, err := stmt.Exec(st.SessionID, i, turn.PairID, string(turn.Speaker), turn.Phase, turn.Text, turn.AudioRef, turn.Timestamp); err != nil {
			return fmt.Errorf("insert turn %d for %s: %w", i, st.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive %s: %w", st.SessionID, err)
	}
	return nil
}

const interviewColumns = `id, candidate_name, position_title, company, started_at, ended_at, status, pairs, summary, summary_status, transcript_path`

func (s *SQLiteStore) ListInterviews(limit int) ([]Interview, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+interviewColumns+` FROM interviews ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interviews := make([]Interview, 0, 16)
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}
	return interviews, nil
}

func (s *SQLiteStore) GetInterview(id string) (Interview, error) {
	row := s.db.QueryRow(`SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	iv, err := scanInterview(row)
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (Interview, error) {
	var iv Interview
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&iv.ID, &iv.CandidateName, &iv.PositionTitle, &iv.Company, &startedAt, &endedAt,
		&iv.Status, &iv.Pairs, &iv.Summary, &iv.SummaryStatus, &iv.TranscriptPath); err != nil {
		return Interview{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse started_at: %w", err)
	}
	iv.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Interview{}, fmt.Errorf("parse ended_at: %w", err)
		}
		iv.EndedAt = &parsedEnd
	}
	return iv, nil
}

func (s *SQLiteStore) GetTurns(interviewID string) ([]transcript.Turn, error) {
	rows, err := s.db.Query(
		`SELECT pair_id, speaker, phase, text, audio_ref, timestamp
		 FROM turns
		 WHERE interview_id = ?
		 ORDER BY position ASC`,
		interviewID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns for interview %s: %w", interviewID, err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]transcript.Turn, 0, 16)
	for rows.Next() {
		var turn transcript.Turn
		var speaker string
		if err := rows.Scan(&turn.PairID, &speaker, &turn.Phase, &turn.Text, &turn.AudioRef, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn for interview %s: %w", interviewID, err)
		}
		turn.Speaker = transcript.Speaker(speaker)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows for interview %s: %w", interviewID, err)
	}
	return turns, nil
}

func (s *SQLiteStore) UpdateSummary(interviewID, summary, status string) error {
	res, err := s.db.Exec(
		`UPDATE interviews SET summary = ?, summary_status = ? WHERE id = ?`,
		summary,
		status,
		interviewID,
	)
	if err != nil {
		return fmt.Errorf("update summary for interview %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClaimSummaryRequest records that a summary for this transcript hash was
// requested. It returns false when the same request was already claimed.
func (s *SQLiteStore) ClaimSummaryRequest(interviewID, promptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO summary_requests(interview_id, prompt_hash) VALUES(?, ?)`,
		interviewID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim summary request for interview %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim summary rows affected: %w", err)
	}
	return rows > 0, nil
}
