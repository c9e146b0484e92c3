package metrics

import (
	"os"
	"time"

	"photosphere/internal/logging"
)

// StatsProvider supplies catalog-wide counts for periodic export.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog statistics.
type Stats struct {
	TotalPhotos  int
	TotalTags    int
	CacheEntries int
	CacheBytes   int64
}

// Collector periodically collects and updates gauge metrics.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty to
// skip database file-size collection.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()

		CatalogPhotosTotal.Set(float64(stats.TotalPhotos))
		CatalogTagsTotal.Set(float64(stats.TotalTags))
		ThumbnailCacheCount.Set(float64(stats.CacheEntries))
		ThumbnailCacheSize.Set(float64(stats.CacheBytes))

		logging.Debug("Metrics collected: photos=%d, tags=%d, cache entries=%d",
			stats.TotalPhotos, stats.TotalTags, stats.CacheEntries)
	}

	if c.dbPath != "" {
		c.collectDBSizes()
	}
}

func (c *Collector) collectDBSizes() {
	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}
	for label, path := range files {
		if info, err := os.Stat(path); err == nil {
			DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		} else {
			DBSizeBytes.WithLabelValues(label).Set(0)
		}
	}
}
