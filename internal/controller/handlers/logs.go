package handlers

import (
	"net/http"
	"strconv"

	"shortforge/pkg/api"
)

// GetJobLogs handles GET /api/jobs/{id}/logs.
// Only entries with a sequence number greater than ?after are returned.
func (h *Handlers) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	after := 0
	if a := r.URL.Query().Get("after"); a != "" {
		if parsed, err := strconv.Atoi(a); err == nil && parsed > 0 {
			after = parsed
		}
	}

	entries := []api.LogEntry{}
	for i, line := range job.Logs {
		if seq := i + 1; seq > after {
			entries = append(entries, api.LogEntry{Seq: seq, Content: line})
		}
	}

	h.respondJson(w, http.StatusOK, api.LogsResponse{Logs: entries, Status: string(job.Status)})
}
