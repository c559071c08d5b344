package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/chat"
	"github.com/askdb/askdb/internal/observability"
)

func handleChat(deps Dependencies, turns *sync.Mutex, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat controller is not configured", false, nil)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON payload", false, map[string]any{
			"details": err.Error(),
		})
		return
	}
	raw, ok := payload["message"]
	if !ok {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", `the JSON payload is missing the "message" field`, false, nil)
		return
	}
	message, ok := raw.(string)
	if !ok {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", `the "message" field must be a string`, false, nil)
		return
	}

	turns.Lock()
	result, err := deps.Chat.SubmitTurn(r.Context(), message)
	turns.Unlock()
	if err != nil {
		if errors.Is(err, chat.ErrMalformedReply) {
			writeError(r.Context(), w, http.StatusBadGateway, "COMPLETION_MALFORMED", "completion reply could not be parsed", true, map[string]any{
				"details": err.Error(),
			})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "CHAT_FAILED", "chat turn failed", true, map[string]any{
			"details": err.Error(),
		})
		return
	}

	promptTokens, completionTokens := 0, 0
	if result.TokenUsage != nil {
		promptTokens = result.TokenUsage.PromptTokens
		completionTokens = result.TokenUsage.CompletionTokens
	}
	observability.ObserveChatTurn(result.Status, promptTokens, completionTokens, time.Duration(result.LatencyMS)*time.Millisecond)

	// Transport failures surface in the record's status field, not as an
	// HTTP error.
	writeJSON(w, http.StatusOK, result)
}
