package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photosphere/internal/catalog"

	"github.com/gorilla/mux"
)

// TagRequest is the body of POST /api/tags.
type TagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// BatchTagRequest is the body of POST/DELETE /api/photos/tags.
type BatchTagRequest struct {
	PhotoIDs []int64  `json:"photoIds"`
	Tags     []string `json:"tags"`
	Color    string   `json:"color,omitempty"`
}

// ListTags returns every tag with its photo count.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.ListTags(r.Context())
	if err != nil {
		writeJSONError(w, "failed to list tags", http.StatusInternalServerError)
		return
	}
	if tags == nil {
		tags = []catalog.Tag{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tags)
}

// CreateTag creates a tag (or returns the existing one; names are
// case-sensitive and unique).
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tag, err := h.db.GetOrCreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		if errors.Is(err, catalog.ErrConstraint) {
			writeJSONError(w, "invalid tag name", http.StatusBadRequest)
			return
		}
		writeJSONError(w, "failed to create tag", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, tag)
}

// DeleteTag removes a tag; associations cascade away, photos stay.
func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.db.DeleteTag(r.Context(), name); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "tag not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to delete tag", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}

// AssignTags attaches tags (created on demand) to a set of photos and
// reports a per-photo outcome; one failing photo never aborts the rest.
func (h *Handlers) AssignTags(w http.ResponseWriter, r *http.Request) {
	req, tagIDs, ok := h.batchTagArgs(w, r, true)
	if !ok {
		return
	}

	results := h.db.AssignTags(r.Context(), req.PhotoIDs, tagIDs)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, results)
}

// RemoveTags detaches tags from a set of photos with per-photo outcomes.
// Removing an association that does not exist is a success.
func (h *Handlers) RemoveTags(w http.ResponseWriter, r *http.Request) {
	req, tagIDs, ok := h.batchTagArgs(w, r, false)
	if !ok {
		return
	}

	results := h.db.RemoveTags(r.Context(), req.PhotoIDs, tagIDs)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, results)
}

// batchTagArgs parses and validates a batch tag request and resolves
// tag names to ids. Assignment creates missing tags; removal of a tag
// that never existed resolves to no-op ids.
func (h *Handlers) batchTagArgs(w http.ResponseWriter, r *http.Request, create bool) (*BatchTagRequest, []int64, bool) {
	var req BatchTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return nil, nil, false
	}
	if len(req.PhotoIDs) == 0 {
		writeJSONError(w, "photoIds array is required", http.StatusBadRequest)
		return nil, nil, false
	}
	if len(req.Tags) == 0 {
		writeJSONError(w, "tags array is required", http.StatusBadRequest)
		return nil, nil, false
	}

	var tagIDs []int64
	if create {
		for _, name := range req.Tags {
			tag, err := h.db.GetOrCreateTag(r.Context(), name, req.Color)
			if err != nil {
				if errors.Is(err, catalog.ErrConstraint) {
					writeJSONError(w, "invalid tag name", http.StatusBadRequest)
				} else {
					writeJSONError(w, "failed to resolve tags", http.StatusInternalServerError)
				}
				return nil, nil, false
			}
			tagIDs = append(tagIDs, tag.ID)
		}
	} else {
		tags, err := h.db.ListTags(r.Context())
		if err != nil {
			writeJSONError(w, "failed to resolve tags", http.StatusInternalServerError)
			return nil, nil, false
		}
		byName := make(map[string]int64, len(tags))
		for _, t := range tags {
			byName[t.Name] = t.ID
		}
		for _, name := range req.Tags {
			if id, ok := byName[name]; ok {
				tagIDs = append(tagIDs, id)
			}
		}
		if len(tagIDs) == 0 {
			// Nothing to remove; every photo trivially succeeds.
			results := make([]catalog.TagOpResult, len(req.PhotoIDs))
			for i, id := range req.PhotoIDs {
				results[i] = catalog.TagOpResult{PhotoID: id, OK: true}
			}
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, results)
			return nil, nil, false
		}
	}

	return &req, tagIDs, true
}
