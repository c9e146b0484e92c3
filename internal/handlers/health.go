package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photosphere/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Catalog summary
	TotalPhotos int `json:"totalPhotos"`
	TotalTags   int `json:"totalTags"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// StatusResponse reports runtime capabilities and catalog counts.
type StatusResponse struct {
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	HEIFCapable  bool   `json:"heifCapable"`
	ThumbnailBox int    `json:"thumbnailBox"`
	TotalPhotos  int    `json:"totalPhotos"`
	TotalTags    int    `json:"totalTags"`
	CacheEntries int    `json:"cacheEntries"`
	CacheBytes   int64  `json:"cacheBytes"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()

	response := HealthResponse{
		Ready:        h.ready.Load(),
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		TotalPhotos:  stats.TotalPhotos,
		TotalTags:    stats.TotalTags,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if response.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	w.Header().Set("Content-Type", "application/json")
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.ready.Load() {
		writeJSON(w, map[string]string{"status": "ready"})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
	}
}

// GetVersion returns build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, startup.GetBuildInfo())
}

// GetStatus reports capabilities (HEIF support) and catalog/cache counts.
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()
	cacheEntries, cacheBytes := h.cache.Stats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatusResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		HEIFCapable:  h.gen.HEIFCapable(),
		ThumbnailBox: h.gen.Box(),
		TotalPhotos:  stats.TotalPhotos,
		TotalTags:    stats.TotalTags,
		CacheEntries: cacheEntries,
		CacheBytes:   cacheBytes,
	})
}
