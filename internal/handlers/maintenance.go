package handlers

import (
	"net/http"

	"photosphere/internal/logging"
)

// ReclaimResponse reports an orphan-reclaim pass.
type ReclaimResponse struct {
	Removed int `json:"removed"`
}

// DatabaseInfoResponse is the database-information dialog data.
type DatabaseInfoResponse struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
}

// ReclaimThumbnails deletes cache entries whose photo no longer exists.
func (h *Handlers) ReclaimThumbnails(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.ReclaimOrphans(r.Context())
	if err != nil {
		logging.Error("thumbnail reclaim failed: %v", err)
		writeJSONError(w, "reclaim failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ReclaimResponse{Removed: removed})
}

// Vacuum compacts the catalog database.
func (h *Handlers) Vacuum(w http.ResponseWriter, _ *http.Request) {
	if err := h.db.Vacuum(); err != nil {
		logging.Error("vacuum failed: %v", err)
		writeJSONError(w, "vacuum failed", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "vacuumed")
}

// GetDatabaseInfo returns the catalog's location and on-disk size.
func (h *Handlers) GetDatabaseInfo(w http.ResponseWriter, _ *http.Request) {
	info := h.db.Info()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, DatabaseInfoResponse{Path: info.Path, SizeBytes: info.SizeBytes})
}
