package handlers

import (
	"sync/atomic"
	"time"

	"photosphere/internal/catalog"
	"photosphere/internal/importer"
	"photosphere/internal/thumbs"

	"github.com/gorilla/mux"
)

type Handlers struct {
	db       *catalog.Database
	cache    *thumbs.Cache
	pipeline *importer.Pipeline
	gen      *thumbs.Generator

	startTime time.Time
	ready     atomic.Bool
}

func New(db *catalog.Database, cache *thumbs.Cache, pipeline *importer.Pipeline, gen *thumbs.Generator) *Handlers {
	return &Handlers{
		db:        db,
		cache:     cache,
		pipeline:  pipeline,
		gen:       gen,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe once wiring is complete.
func (h *Handlers) SetReady() {
	h.ready.Store(true)
}

// Router builds the full route table.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	// Health and version endpoints
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Import pipeline
	api.HandleFunc("/import", h.StartImport).Methods("POST")
	api.HandleFunc("/import/{id}", h.GetImport).Methods("GET")
	api.HandleFunc("/import/{id}", h.CancelImport).Methods("DELETE")

	// Photos and thumbnails
	api.HandleFunc("/photos", h.ListPhotos).Methods("GET")
	api.HandleFunc("/photo/{id:[0-9]+}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/photo/{id:[0-9]+}", h.DeletePhoto).Methods("DELETE")
	api.HandleFunc("/thumbnail/{id:[0-9]+}", h.GetThumbnail).Methods("GET")

	// Tags
	api.HandleFunc("/tags", h.ListTags).Methods("GET")
	api.HandleFunc("/tags", h.CreateTag).Methods("POST")
	api.HandleFunc("/tags/{name}", h.DeleteTag).Methods("DELETE")
	api.HandleFunc("/photos/tags", h.AssignTags).Methods("POST")
	api.HandleFunc("/photos/tags", h.RemoveTags).Methods("DELETE")

	// Maintenance and status
	api.HandleFunc("/maintenance/reclaim-thumbnails", h.ReclaimThumbnails).Methods("POST")
	api.HandleFunc("/maintenance/vacuum", h.Vacuum).Methods("POST")
	api.HandleFunc("/database", h.GetDatabaseInfo).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")

	return r
}
