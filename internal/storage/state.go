package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/session"
)

const (
	stateExt = ".json"
	tempExt  = ".tmp"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RecoveryInfo describes a persisted session that can be resumed.
type RecoveryInfo struct {
	SessionID      string         `json:"session_id"`
	CandidateName  string         `json:"candidate_name"`
	PositionTitle  string         `json:"position_title"`
	CurrentPhase   string         `json:"current_phase"`
	Status         session.Status `json:"status"`
	LastCheckpoint time.Time      `json:"last_checkpoint"`
}

// StateStore keeps one JSON file per session under dir. Writes go through
// a temp file in the same directory followed by a rename, so a killed
// process never leaves a truncated canonical file.
type StateStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewStateStore(dir string) (*StateStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join("data", "sessions")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &StateStore{
		dir:    dir,
		logger: slog.Default().With("component", "storage.state"),
		now:    time.Now,
	}, nil
}

func (s *StateStore) Dir() string { return s.dir }

func (s *StateStore) path(id string) string {
	return filepath.Join(s.dir, id+stateExt)
}

func (s *StateStore) Save(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.MarkCheckpoint(s.now())
	snap := sess.Snapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.SessionID, err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.SessionID+".*"+tempExt)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(snap.SessionID)); err != nil {
		cleanup()
		return fmt.Errorf("rename state file for %s: %w", snap.SessionID, err)
	}

	s.logger.Debug("session saved", "session_id", snap.SessionID, "status", snap.Status, "turns", len(snap.Transcript))
	return nil
}

func (s *StateStore) Load(id string) (*session.Session, error) {
	if !sessionIDPattern.MatchString(id) {
		return nil, fmt.Errorf("load %q: %w", id, ErrNotFound)
	}

	st, err := s.readState(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return session.FromState(st), nil
}

func (s *StateStore) readState(path string) (session.State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return session.State{}, ErrNotFound
	}
	if err != nil {
		return session.State{}, err
	}

	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		return session.State{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.SessionID == "" || st.Status == "" {
		return session.State{}, fmt.Errorf("%w: missing session_id or status", ErrCorruptState)
	}
	return st, nil
}

type stateFile struct {
	path string
	info fs.FileInfo
}

func (s *StateStore) stateFiles() ([]stateFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	files := make([]stateFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != stateExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, stateFile{path: filepath.Join(s.dir, entry.Name()), info: info})
	}
	return files, nil
}

func (s *StateStore) ListRecoverable() ([]RecoveryInfo, error) {
	files, err := s.stateFiles()
	if err != nil {
		return nil, err
	}

	var out []RecoveryInfo
	for _, f := range files {
		st, err := s.readState(f.path)
		if err != nil {
			s.logger.Warn("skipping unreadable state file", "path", f.path, "error", err)
			continue
		}
		if !st.Status.Recoverable() {
			continue
		}
		out = append(out, RecoveryInfo{
			SessionID:      st.SessionID,
			CandidateName:  st.CandidateInfo.Name,
			PositionTitle:  st.JobInfo.Title,
			CurrentPhase:   st.CurrentPhase,
			Status:         st.Status,
			LastCheckpoint: st.LastCheckpoint,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastCheckpoint.After(out[j].LastCheckpoint)
	})
	return out, nil
}

// CleanupOlderThan removes finished sessions whose state file is older
// than days, plus abandoned temp files. Sessions that can still be resumed
// are kept regardless of age.
func (s *StateStore) CleanupOlderThan(days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("cleanup: negative retention %d", days)
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	files, err := s.stateFiles()
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if !f.info.ModTime().Before(cutoff) {
			continue
		}
		st, err := s.readState(f.path)
		if err != nil {
			s.logger.Warn("cleanup: skipping unreadable state file", "path", f.path, "error", err)
			continue
		}
		if !st.Status.Terminal() {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.path, err)
		}
		removed++
		s.logger.Info("removed old session", "session_id", st.SessionID, "status", st.Status)
	}

	temps, err := filepath.Glob(filepath.Join(s.dir, "*"+tempExt))
	if err != nil {
		return removed, fmt.Errorf("glob temp files: %w", err)
	}
	for _, path := range temps {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}

	return removed, nil
}
