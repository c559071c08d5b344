package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/transcript"
)

const defaultSessionListLimit = 50

type sessionSummary struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type sessionDetail struct {
	sessionSummary
	Messages json.RawMessage `json:"messages"`
}

func handleListSessions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Transcripts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSCRIPTS_NOT_CONFIGURED", "transcript store is not configured", false, nil)
		return
	}

	limit := defaultSessionListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	sessions, err := deps.Transcripts.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSCRIPTS_ERROR", "failed to list sessions", true, map[string]any{
			"details": err.Error(),
		})
		return
	}

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, summarizeSession(session))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Transcripts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSCRIPTS_NOT_CONFIGURED", "transcript store is not configured", false, nil)
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_ID_REQUIRED", "session id is required", false, nil)
		return
	}

	session, err := deps.Transcripts.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session is not recorded", false, map[string]any{
				"session_id": sessionID,
			})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSCRIPTS_ERROR", "failed to load session", true, map[string]any{
			"details": err.Error(),
		})
		return
	}

	messages := json.RawMessage("[]")
	if log := strings.TrimSpace(session.MessageLog); log != "" {
		if !json.Valid([]byte(log)) {
			writeError(r.Context(), w, http.StatusInternalServerError, "TRANSCRIPT_CORRUPT", "stored transcript is not valid JSON", false, map[string]any{
				"session_id": sessionID,
			})
			return
		}
		messages = json.RawMessage(log)
	}
	writeJSON(w, http.StatusOK, sessionDetail{
		sessionSummary: summarizeSession(session),
		Messages:       messages,
	})
}

func summarizeSession(session transcript.Session) sessionSummary {
	return sessionSummary{
		ID:        session.ID,
		SessionID: session.SessionID,
		StartedAt: session.StartedAt,
		UpdatedAt: session.UpdatedAt,
	}
}
