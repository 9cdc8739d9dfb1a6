package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/sjawhar/ghost-interviewer/internal/config"
	"github.com/sjawhar/ghost-interviewer/internal/session"
	"github.com/sjawhar/ghost-interviewer/internal/storage"
	"github.com/sjawhar/ghost-interviewer/internal/transcript"
)

var (
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	audioNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(mp3|wav)$`)
)

// SessionStore reads the live state files of resumable sessions.
type SessionStore interface {
	ListRecoverable() ([]storage.RecoveryInfo, error)
	Load(id string) (*session.Session, error)
}

// InterviewStore reads the archive of finished interviews.
type InterviewStore interface {
	ListInterviews(limit int) ([]storage.Interview, error)
	GetInterview(id string) (storage.Interview, error)
	GetTurns(interviewID string) ([]transcript.Turn, error)
}

// ControlHooks are optional callbacks into the running process.
type ControlHooks struct {
	Warnings func() []string
	Presets  func() map[string]config.Preset
	Reassess func(ctx context.Context, interviewID, preset string) error
}

func registerAPIRoutes(mux *http.ServeMux, hub *Hub, stores Stores, controls ControlHooks) {
	mux.HandleFunc("GET /api/sessions/recoverable", func(w http.ResponseWriter, r *http.Request) {
		if stores.Sessions == nil {
			writeJSON(w, http.StatusOK, []storage.RecoveryInfo{})
			return
		}
		infos, err := stores.Sessions.ListRecoverable()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list recoverable sessions: %v", err))
			return
		}
		if infos == nil {
			infos = []storage.RecoveryInfo{}
		}
		writeJSON(w, http.StatusOK, infos)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}
		if stores.Sessions == nil {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}

		sess, err := stores.Sessions.Load(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorruptState) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	})

	mux.HandleFunc("GET /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		if stores.Interviews == nil {
			writeJSON(w, http.StatusOK, []storage.Interview{})
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		interviews, err := stores.Interviews.ListInterviews(limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, interviews)
	})

	mux.HandleFunc("GET /api/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		if !validSessionID(interviewID) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}
		if stores.Interviews == nil {
			writeJSONError(w, http.StatusNotFound, "interview not found")
			return
		}

		interview, err := stores.Interviews.GetInterview(interviewID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get interview: %v", err))
			return
		}

		turns, err := stores.Interviews.GetTurns(interviewID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get interview turns: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"interview": interview,
			"turns":     turns,
		})
	})

	mux.HandleFunc("GET /api/interviews/{id}/audio/{name}", func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		name := r.PathValue("name")
		if !validSessionID(interviewID) || !audioNamePattern.MatchString(name) {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}
		if stores.AudioDir == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		path := filepath.Join(stores.AudioDir, interviewID, name)
		f, err := os.Open(path)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(path))
		http.ServeContent(w, r, name, info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/presets", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]string{}
		if controls.Presets != nil {
			for name, preset := range controls.Presets() {
				out[name] = preset.Description
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /api/interviews/{id}/reassess", func(w http.ResponseWriter, r *http.Request) {
		interviewID := r.PathValue("id")
		if !validSessionID(interviewID) {
			writeJSONError(w, http.StatusForbidden, "invalid interview id")
			return
		}
		if controls.Reassess == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "assessment is not configured")
			return
		}

		var body struct {
			Preset string `json:"preset"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
				return
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := controls.Reassess(ctx, interviewID, body.Preset); err != nil {
				slog.Error("reassess interview failed", "component", "api", "interview_id", interviewID, "error", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"active_session": hub.ActiveSession(),
			"warnings":       warnings,
		})
	})
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
