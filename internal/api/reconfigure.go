package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/askdb/askdb/internal/query"
)

type reconfigureRequest struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

func handleReconfigure(deps Dependencies, turns *sync.Mutex, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat controller is not configured", false, nil)
		return
	}

	var request reconfigureRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON payload", false, map[string]any{
			"details": err.Error(),
		})
		return
	}
	if strings.TrimSpace(request.DSN) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "DSN_REQUIRED", "dsn field is required", false, nil)
		return
	}
	driver := strings.TrimSpace(request.Driver)
	if driver == "" {
		driver = query.DriverSQLite
	}
	target := query.Target{Driver: driver, DSN: strings.TrimSpace(request.DSN)}

	turns.Lock()
	err := deps.Chat.Reconfigure(r.Context(), target)
	sessionID := deps.Chat.SessionID()
	turns.Unlock()
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "RECONFIGURE_FAILED", "could not open a session against the target database", false, map[string]any{
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": sessionID,
		"driver":     target.Driver,
		"database":   target.DSN,
	})
}
