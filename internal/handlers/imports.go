package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"photosphere/internal/importer"

	"github.com/gorilla/mux"
)

// ImportRequest is the body of POST /api/import.
type ImportRequest struct {
	Paths  []string `json:"paths"`
	TagIDs []int64  `json:"tagIds,omitempty"`
}

// ImportStarted is the response to a successfully started batch.
type ImportStarted struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

// StartImport launches an import batch and returns its id immediately.
func (h *Handlers) StartImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		writeJSONError(w, "paths array is required", http.StatusBadRequest)
		return
	}

	// The batch outlives this request; its lifetime is bound to the
	// process, not to the HTTP connection.
	batch, err := h.pipeline.Import(context.Background(), importer.Request{
		Paths:  req.Paths,
		TagIDs: req.TagIDs,
	}, importer.Hooks{})
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, ImportStarted{ID: batch.ID(), Total: batch.Snapshot().Total})
}

// GetImport returns a point-in-time snapshot of a batch.
func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.pipeline.Batch(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "unknown import batch", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, batch.Snapshot())
}

// CancelImport requests cooperative cancellation of a batch.
func (h *Handlers) CancelImport(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.pipeline.Batch(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "unknown import batch", http.StatusNotFound)
		return
	}

	batch.Cancel()
	writeJSONStatus(w, "cancelling")
}
