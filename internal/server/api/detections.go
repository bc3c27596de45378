package api

import (
	"net/http"
	"time"

	"github.com/ayusman/fingers/internal/store"
)

// DetectionHandler serves the detection log at /api/detections.
//
//	GET    ?limit=N        newest frames first (default 50)
//	DELETE ?before=RFC3339 prune older frames; no parameter clears the log
type DetectionHandler struct {
	store *store.Store
}

// NewDetectionHandler returns a detection log handler.
func NewDetectionHandler(s *store.Store) *DetectionHandler {
	return &DetectionHandler{store: s}
}

type listDetectionsResponse struct {
	Frames []*store.FrameRecord `json:"frames"`
	Total  int                  `json:"total"`
}

type pruneResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *DetectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.prune(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *DetectionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	frames, err := h.store.Detections().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read detections")
		return
	}
	total, err := h.store.Detections().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count detections")
		return
	}
	writeJSON(w, http.StatusOK, listDetectionsResponse{Frames: frames, Total: total})
}

func (h *DetectionHandler) prune(w http.ResponseWriter, r *http.Request) {
	var cutoff time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC3339 time")
			return
		}
		cutoff = t
	}

	n, err := h.store.Detections().Prune(cutoff)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prune detections")
		return
	}
	writeJSON(w, http.StatusOK, pruneResponse{Deleted: n})
}
