package api

import "net/http"

func handleArchiveRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "archive service is not configured", false, nil)
		return
	}

	summary, err := deps.Archive.RunOnce(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FAILED", "archive run failed", true, map[string]any{
			"details": err.Error(),
			"summary": summary,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"summary": summary,
	})
}
