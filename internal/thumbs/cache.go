package thumbs

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"photosphere/internal/logging"
	"photosphere/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// Source is the catalog view the cache needs: where a photo's bytes
// live and which photos still exist.
type Source interface {
	// PhotoFile returns the absolute source path and EXIF orientation
	// code for a cataloged photo.
	PhotoFile(ctx context.Context, id int64) (path string, orientation int, err error)
	// PhotoIDs returns the ids of every cataloged photo.
	PhotoIDs(ctx context.Context) ([]int64, error)
}

// Cache is the on-disk thumbnail store. Entries are JPEG files named
// <photoID>_<fingerprint>.jpg where the fingerprint covers the source
// file's size and mtime, so an edited source invalidates its entry by
// construction.
type Cache struct {
	dir    string
	gen    *Generator
	source Source

	group singleflight.Group
	sem   chan struct{}

	// inflight counts generations underway per photo id, covering both
	// synchronous warms and scheduled background renders. ReclaimOrphans
	// leaves any counted id alone.
	mu       sync.Mutex
	inflight map[int64]int
}

// NewCache opens (creating if needed) the cache directory. poolSize
// bounds concurrent background generation.
func NewCache(dir string, gen *Generator, source Source, poolSize int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	if poolSize < 1 {
		poolSize = 1
	}
	logging.Debug("thumbnail cache at %s (%d generation slots)", dir, poolSize)
	return &Cache{
		dir:      dir,
		gen:      gen,
		source:   source,
		sem:      make(chan struct{}, poolSize),
		inflight: make(map[int64]int),
	}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// fingerprint derives the freshness token from source file attributes.
func fingerprint(size int64, mtime time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d:%d", size, mtime.UnixNano())))
	return fmt.Sprintf("%x", sum)[:12]
}

func (c *Cache) entryPath(id int64, fp string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d_%s.jpg", id, fp))
}

// Get returns thumbnail bytes for a photo without ever blocking on
// generation. A fresh entry is served as-is; a missing or stale entry
// returns the placeholder immediately and schedules generation in the
// background. The placeholder flag tells callers which one they got.
func (c *Cache) Get(ctx context.Context, id int64) (data []byte, placeholder bool, err error) {
	path, orientation, err := c.source.PhotoFile(ctx, id)
	if err != nil {
		return nil, false, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		// Source file gone or unreadable; the photo stays presentable.
		logging.Debug("thumbnail source unreadable for photo %d: %v", id, statErr)
		return Placeholder(c.gen.Box()), true, nil
	}

	fp := fingerprint(info.Size(), info.ModTime())
	if data, err := os.ReadFile(c.entryPath(id, fp)); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return data, IsPlaceholder(data, c.gen.Box()), nil
	}

	metrics.ThumbnailCacheMisses.Inc()
	c.schedule(id, path, orientation, fp)
	return Placeholder(c.gen.Box()), true, nil
}

// Warm generates and stores the thumbnail synchronously. The import
// pipeline uses it so a photo's entry exists before the batch reports
// it imported. Render failure degrades to a cached placeholder and is
// not an error.
func (c *Cache) Warm(ctx context.Context, id int64) error {
	path, orientation, err := c.source.PhotoFile(ctx, id)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("thumbnail source not accessible: %w", err)
	}

	fp := fingerprint(info.Size(), info.ModTime())
	if _, err := os.Stat(c.entryPath(id, fp)); err == nil {
		return nil
	}

	c.retain(id)
	defer c.release(id)
	c.generate(id, path, orientation, fp, "warm")
	return nil
}

// retain marks a generation in flight for a photo; release undoes it.
func (c *Cache) retain(id int64) {
	c.mu.Lock()
	c.inflight[id]++
	c.mu.Unlock()
}

func (c *Cache) release(id int64) {
	c.mu.Lock()
	if c.inflight[id] <= 1 {
		delete(c.inflight, id)
	} else {
		c.inflight[id]--
	}
	c.mu.Unlock()
}

// schedule queues background generation for an entry, deduplicated per
// photo id.
func (c *Cache) schedule(id int64, path string, orientation int, fp string) {
	c.mu.Lock()
	if c.inflight[id] > 0 {
		c.mu.Unlock()
		return
	}
	c.inflight[id]++
	c.mu.Unlock()

	go func() {
		defer c.release(id)

		c.sem <- struct{}{}
		defer func() { <-c.sem }()

		c.generate(id, path, orientation, fp, "lazy")
	}()
}

// generate renders one entry and installs it atomically, replacing any
// stale entries for the same photo. Concurrent calls for one photo
// collapse into a single render.
func (c *Cache) generate(id int64, path string, orientation int, fp, trigger string) {
	key := fmt.Sprintf("%d_%s", id, fp)
	c.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		status := "success"

		data, err := c.gen.Render(path, orientation)
		if err != nil {
			// Cache the placeholder under the real fingerprint so the
			// failure is not retried on every request.
			logging.Warn("thumbnail render failed for photo %d (%s): %v", id, path, err)
			data = Placeholder(c.gen.Box())
			status = "placeholder"
		}
		metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
		metrics.ThumbnailGenerationsTotal.WithLabelValues(trigger, status).Inc()

		entry := c.entryPath(id, fp)
		tmp := entry + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			logging.Warn("failed to write thumbnail for photo %d: %v", id, err)
			return nil, nil
		}
		if err := os.Rename(tmp, entry); err != nil {
			logging.Warn("failed to install thumbnail for photo %d: %v", id, err)
			os.Remove(tmp)
			return nil, nil
		}

		c.dropStale(id, fp)
		logging.Debug("thumbnail cached: %s", entry)
		return nil, nil
	})
}

// dropStale removes entries for a photo carrying an old fingerprint.
func (c *Cache) dropStale(id int64, keepFP string) {
	prefix := fmt.Sprintf("%d_", id)
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		fp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".jpg")
		if fp != keepFP {
			os.Remove(filepath.Join(c.dir, name))
		}
	}
}

// ReclaimOrphans deletes entries whose photo id no longer exists in the
// catalog. Entries for photos with a generation currently in flight are
// left alone. Returns the number of entries removed.
func (c *Cache) ReclaimOrphans(ctx context.Context) (int, error) {
	ids, err := c.source.PhotoIDs(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan thumbnail cache: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".jpg") {
			continue
		}
		idPart, _, ok := strings.Cut(strings.TrimSuffix(name, ".jpg"), "_")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			continue
		}

		if _, ok := live[id]; ok {
			continue
		}
		c.mu.Lock()
		busy := c.inflight[id] > 0
		c.mu.Unlock()
		if busy {
			continue
		}

		if err := os.Remove(filepath.Join(c.dir, name)); err == nil {
			removed++
		}
	}

	if removed > 0 {
		metrics.ThumbnailOrphansReclaimed.Add(float64(removed))
		logging.Info("reclaimed %d orphaned thumbnail(s)", removed)
	}
	return removed, nil
}

// Stats reports the entry count and total byte size of the cache.
func (c *Cache) Stats() (entries int, bytes int64) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range dirEntries {
		if !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		entries++
		if info, err := e.Info(); err == nil {
			bytes += info.Size()
		}
	}
	return entries, bytes
}
