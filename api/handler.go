package api

import (
	"errors"
	"net/http"

	"github.com/yourusername/queuethrottle/pkg/queuethrottle"
	"github.com/yourusername/queuethrottle/store"
)

// Inspector exposes the admission state the admin API reports on.
// *queuethrottle.Orchestrator implements it.
type Inspector interface {
	QueueNames() []string
	QueueLimiter(queue string) (*queuethrottle.QueueLimiter, bool)
	Registry() *queuethrottle.Registry
	Store() store.Store
}

// Handler serves the administrative API.
type Handler struct {
	inspector Inspector
	mux       *http.ServeMux
}

// NewHandler creates a new API handler
func NewHandler(inspector Inspector) *Handler {
	h := &Handler{inspector: inspector, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /health", h.Health)
	h.mux.HandleFunc("GET /queues", h.ListQueues)
	h.mux.HandleFunc("GET /queues/{name}", h.GetQueue)
	h.mux.HandleFunc("POST /queues/{name}/reset", h.ResetQueue)
	h.mux.HandleFunc("GET /throttles", h.ListThrottles)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// QueueResponse describes one queue gate.
type QueueResponse struct {
	Name      string `json:"name"`
	Limit     int    `json:"limit"`
	Current   int    `json:"current"`
	Available int    `json:"available"`
}

// ThrottleResponse describes one registered job throttle.
type ThrottleResponse struct {
	JobType       string `json:"job_type"`
	Kind          string `json:"kind"`
	Limit         int    `json:"limit"`
	PeriodSeconds int    `json:"period_seconds,omitempty"`
	Key           string `json:"key"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health handles GET /health by pinging the counter store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.inspector.Store().Ping(r.Context()); err != nil {
		h.sendError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListQueues handles GET /queues.
func (h *Handler) ListQueues(w http.ResponseWriter, r *http.Request) {
	names := h.inspector.QueueNames()
	queues := make([]QueueResponse, 0, len(names))
	for _, name := range names {
		q, err := h.describe(r, name)
		if err != nil {
			h.sendError(w, http.StatusBadGateway, "store_error", err.Error())
			return
		}
		queues = append(queues, q)
	}
	h.sendJSON(w, http.StatusOK, queues)
}

// GetQueue handles GET /queues/{name}.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.describe(r, r.PathValue("name"))
	switch {
	case errors.Is(err, errUnknownQueue):
		h.sendError(w, http.StatusNotFound, "unknown_queue", "queue has no configured limit")
	case err != nil:
		h.sendError(w, http.StatusBadGateway, "store_error", err.Error())
	default:
		h.sendJSON(w, http.StatusOK, q)
	}
}

// ResetQueue handles POST /queues/{name}/reset.
func (h *Handler) ResetQueue(w http.ResponseWriter, r *http.Request) {
	gate, ok := h.inspector.QueueLimiter(r.PathValue("name"))
	if !ok {
		h.sendError(w, http.StatusNotFound, "unknown_queue", "queue has no configured limit")
		return
	}
	if err := gate.Reset(r.Context()); err != nil {
		h.sendError(w, http.StatusBadGateway, "store_error", err.Error())
		return
	}

	q, err := h.describe(r, gate.Name())
	if err != nil {
		h.sendError(w, http.StatusBadGateway, "store_error", err.Error())
		return
	}
	h.sendJSON(w, http.StatusOK, q)
}

// ListThrottles handles GET /throttles.
func (h *Handler) ListThrottles(w http.ResponseWriter, r *http.Request) {
	registry := h.inspector.Registry()
	jobTypes := registry.JobTypes()

	throttles := make([]ThrottleResponse, 0, len(jobTypes))
	for _, jobType := range jobTypes {
		spec, ok := registry.Lookup(jobType)
		if !ok {
			continue
		}
		resp := ThrottleResponse{JobType: jobType}
		switch {
		case spec.Concurrency != nil:
			resp.Kind = "concurrency"
			resp.Limit = spec.Concurrency.Limit
			resp.Key = spec.Concurrency.Key.String()
		case spec.Rate != nil:
			resp.Kind = "rate"
			resp.Limit = spec.Rate.Limit
			resp.PeriodSeconds = int(spec.Rate.WindowPeriod().Seconds())
			resp.Key = spec.Rate.Key.String()
		}
		throttles = append(throttles, resp)
	}
	h.sendJSON(w, http.StatusOK, throttles)
}

var errUnknownQueue = errors.New("unknown queue")

func (h *Handler) describe(r *http.Request, name string) (QueueResponse, error) {
	gate, ok := h.inspector.QueueLimiter(name)
	if !ok {
		return QueueResponse{}, errUnknownQueue
	}
	current, err := gate.CurrentCount(r.Context())
	if err != nil {
		return QueueResponse{}, err
	}
	return QueueResponse{
		Name:      name,
		Limit:     gate.Limit(),
		Current:   current,
		Available: max(0, gate.Limit()-current),
	}, nil
}

func (h *Handler) sendJSON(w http.ResponseWriter, statusCode int, v any) {
	writeJSON(w, statusCode, v)
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.sendJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
