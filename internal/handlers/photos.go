package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"photosphere/internal/catalog"
)

// PhotoResponse is a catalog record plus derived presentation fields.
type PhotoResponse struct {
	*catalog.Photo
	MapURL string `json:"mapUrl,omitempty"`
}

// PhotoListResponse is the ordered id list for a filter/sort query.
type PhotoListResponse struct {
	IDs   []int64 `json:"ids"`
	Count int     `json:"count"`
}

// ListPhotos answers GET /api/photos?tags=&untagged=&sort=&order=.
// Tags are comma-separated names combined with AND semantics.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	untagged := false
	if v := q.Get("untagged"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, "invalid untagged value", http.StatusBadRequest)
			return
		}
		untagged = parsed
	}

	var tagNames []string
	if raw := q.Get("tags"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tagNames = append(tagNames, name)
			}
		}
	}

	if untagged && len(tagNames) > 0 {
		writeJSONError(w, "tags and untagged filters are mutually exclusive", http.StatusBadRequest)
		return
	}

	filter := catalog.Filter{Untagged: untagged}
	if len(tagNames) > 0 {
		ids, allKnown, err := h.resolveTagNames(r, tagNames)
		if err != nil {
			writeJSONError(w, "failed to resolve tags", http.StatusInternalServerError)
			return
		}
		// An unknown tag can match nothing under AND semantics.
		if !allKnown {
			w.Header().Set("Content-Type", "application/json")
			writeJSON(w, PhotoListResponse{IDs: []int64{}})
			return
		}
		filter.TagIDs = ids
	}

	sort := catalog.ParseSortKey(q.Get("sort"))
	order := catalog.ParseOrder(q.Get("order"))

	ids, err := h.db.QueryPhotos(r.Context(), filter, sort, order)
	if err != nil {
		writeJSONError(w, "query failed", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, PhotoListResponse{IDs: ids, Count: len(ids)})
}

func (h *Handlers) resolveTagNames(r *http.Request, names []string) ([]int64, bool, error) {
	tags, err := h.db.ListTags(r.Context())
	if err != nil {
		return nil, false, err
	}

	byName := make(map[string]int64, len(tags))
	for _, t := range tags {
		byName[t.Name] = t.ID
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, false, nil
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// GetPhoto returns the full catalog record for one photo, including a
// map-service link when the photo carries GPS coordinates. The server
// only builds the URL; it never opens it.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	photo, err := h.db.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load photo", http.StatusInternalServerError)
		return
	}

	response := PhotoResponse{Photo: photo}
	if photo.GPSLatitude != nil && photo.GPSLongitude != nil {
		response.MapURL = fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
			strconv.FormatFloat(*photo.GPSLatitude, 'f', -1, 64),
			strconv.FormatFloat(*photo.GPSLongitude, 'f', -1, 64))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// DeletePhoto removes a photo and its tag associations from the catalog.
// The thumbnail entry is left for the next orphan reclaim pass.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	if err := h.db.DeletePhoto(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to delete photo", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "deleted")
}

// GetThumbnail serves the cached thumbnail for a photo, or the
// placeholder (flagged via X-Placeholder) while generation is pending.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	data, placeholder, err := h.cache.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if placeholder {
		w.Header().Set("X-Placeholder", "true")
		// Placeholders are transient; the real entry may land any moment.
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}
	w.Write(data)
}
