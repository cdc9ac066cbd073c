package api

import (
	"encoding/json"
	"net/http"

	"github.com/yourusername/queuethrottle/metrics"
)

// SnapshotProvider returns the current admission statistics.
type SnapshotProvider interface {
	GetSnapshot() *metrics.Snapshot
}

// StatsHandler serves GET /stats. With ?queue=name only that queue's
// counters are returned.
type StatsHandler struct {
	provider SnapshotProvider
}

func NewStatsHandler(provider SnapshotProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed", Message: "use GET"})
		return
	}

	snap := h.provider.GetSnapshot()

	queue := r.URL.Query().Get("queue")
	if queue == "" {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	for _, s := range snap.Queues {
		if s.Name == queue {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "no decisions recorded for queue " + queue})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
