package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"photosphere/internal/catalog"
	"photosphere/internal/exif"
	"photosphere/internal/imgformat"
	"photosphere/internal/logging"
	"photosphere/internal/metrics"
	"photosphere/internal/workers"
)

// Default per-file processing budget. A file exceeding it is an error
// outcome, never a hang.
const defaultFileBudget = 30 * time.Second

// Default time a finished batch stays queryable before it drops from
// the registry.
const defaultBatchRetention = time.Hour

// Store is the catalog surface the pipeline writes through.
type Store interface {
	PathExists(ctx context.Context, path string) (bool, error)
	InsertPhoto(ctx context.Context, photo *catalog.Photo, tagIDs []int64) (int64, error)
}

// Warmer pre-generates a photo's thumbnail after cataloging.
type Warmer interface {
	Warm(ctx context.Context, id int64) error
}

// Prober supplies pixel dimensions for files whose EXIF carries none.
type Prober interface {
	Dimensions(path string) (width, height int, err error)
}

// Config tunes the pipeline.
type Config struct {
	// Workers is the pool size; 0 picks a host-concurrency default
	// (IMPORT_WORKERS overrides).
	Workers int
	// FileBudget caps per-file processing time; 0 uses the default.
	FileBudget time.Duration
	// Retention is how long a finished batch stays queryable; 0 uses
	// the default.
	Retention time.Duration
}

// Pipeline runs import batches and keeps handles to them for status
// and cancellation.
type Pipeline struct {
	store  Store
	warmer Warmer
	prober Prober
	config Config

	nextID  atomic.Int64
	mu      sync.RWMutex
	batches map[string]*Batch
}

// New creates an import pipeline.
func New(store Store, warmer Warmer, prober Prober, config Config) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = workers.ForMixed(0)
	}
	if config.FileBudget <= 0 {
		config.FileBudget = defaultFileBudget
	}
	if config.Retention <= 0 {
		config.Retention = defaultBatchRetention
	}
	metrics.ImportWorkers.Set(float64(config.Workers))
	return &Pipeline{
		store:   store,
		warmer:  warmer,
		prober:  prober,
		config:  config,
		batches: make(map[string]*Batch),
	}
}

// Batch returns the handle for a batch id.
func (p *Pipeline) Batch(id string) (*Batch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.batches[id]
	return b, ok
}

// Import starts a batch and returns its handle immediately. Every
// submitted path gets exactly one terminal outcome; the batch-complete
// event fires only after all of them are terminal.
func (p *Pipeline) Import(ctx context.Context, req Request, hooks Hooks) (*Batch, error) {
	if len(req.Paths) == 0 {
		return nil, errors.New("import request has no paths")
	}

	batchCtx, cancel := context.WithCancel(ctx)
	batch := &Batch{
		id:     fmt.Sprintf("batch-%d", p.nextID.Add(1)),
		total:  len(req.Paths),
		cancel: cancel,
		done:   make(chan struct{}),
		hooks:  hooks,
	}

	p.mu.Lock()
	p.batches[batch.id] = batch
	p.mu.Unlock()

	logging.Info("Import batch %s: %d file(s), %d worker(s)", batch.id, batch.total, p.config.Workers)
	metrics.ImportBatchesInFlight.Inc()

	go p.run(batchCtx, batch, req)
	return batch, nil
}

type fileJob struct {
	path string
	// kind pre-resolves jobs that never reach a worker's processing
	// path (in-batch duplicates).
	kind   OutcomeKind
	detail string
}

func (p *Pipeline) run(ctx context.Context, batch *Batch, req Request) {
	defer batch.cancel()

	jobs := make(chan fileJob, len(req.Paths))
	// storageDown flips when any worker hits ErrStorageUnavailable;
	// remaining files drain with terminal storage outcomes.
	var storageDown atomic.Bool

	// Normalize and dedupe within the batch before dispatch. Duplicates
	// against the catalog are resolved per file by the insert itself so
	// the check-and-insert stays atomic.
	seen := make(map[string]struct{}, len(req.Paths))
	for _, raw := range req.Paths {
		job := fileJob{path: raw}
		if abs, err := filepath.Abs(raw); err == nil {
			job.path = abs
		}
		if _, dup := seen[job.path]; dup {
			job.kind = OutcomeDuplicate
			job.detail = "duplicate path within batch"
		} else {
			seen[job.path] = struct{}{}
		}
		jobs <- job
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, batch, jobs, req.TagIDs, &storageDown)
		}(i)
	}
	wg.Wait()

	snap := batch.Snapshot()
	state := "completed"
	switch {
	case snap.Aborted:
		state = "aborted"
	case snap.Cancelled > 0:
		state = "cancelled"
	}
	metrics.ImportBatchesTotal.WithLabelValues(state).Inc()
	metrics.ImportBatchesInFlight.Dec()

	logging.Info("Import batch %s complete: %d imported, %d skipped, %d errored, %d cancelled",
		batch.id, snap.Imported, snap.Skipped, snap.Errored, snap.Cancelled)

	close(batch.done)
	if batch.hooks.OnComplete != nil {
		batch.hooks.OnComplete(batch.Snapshot())
	}

	// Keep the finished handle around for status polls, then drop it so
	// the registry does not grow with every batch ever run.
	time.AfterFunc(p.config.Retention, func() {
		p.mu.Lock()
		delete(p.batches, batch.id)
		p.mu.Unlock()
	})
}

func (p *Pipeline) worker(ctx context.Context, id int, batch *Batch, jobs <-chan fileJob, tagIDs []int64, storageDown *atomic.Bool) {
	logging.Debug("Import worker %d started", id)

	for job := range jobs {
		outcome := Outcome{Path: job.path, Kind: job.kind, Detail: job.detail}

		switch {
		case job.kind != "":
			// pre-resolved
		case storageDown.Load():
			outcome.Kind = OutcomeStorageUnavailable
			outcome.Detail = "batch aborted: catalog storage unavailable"
		case ctx.Err() != nil:
			outcome.Kind = OutcomeCancelled
		default:
			start := time.Now()
			outcome = p.processFile(ctx, job.path, tagIDs)
			metrics.ImportFileDuration.Observe(time.Since(start).Seconds())
		}

		if outcome.Kind == OutcomeStorageUnavailable {
			storageDown.Store(true)
		}
		metrics.ImportFilesTotal.WithLabelValues(string(outcome.Kind)).Inc()
		batch.record(outcome)
	}

	logging.Debug("Import worker %d finished", id)
}

// processFile runs the whole per-file sequence: sniff, extract, probe
// dimensions, insert, warm. Every failure mode maps to a structured
// outcome at this boundary.
func (p *Pipeline) processFile(ctx context.Context, path string, tagIDs []int64) Outcome {
	// The budget context is detached from batch cancellation: a file
	// that already entered processing runs to completion under its own
	// budget, while Cancel stops further dispatch.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.FileBudget)
	defer cancel()

	outcome := Outcome{Path: path}

	// Cheap dedupe against the catalog before any decode work. The
	// insert's unique constraint still backstops the race.
	exists, err := p.store.PathExists(ctx, path)
	if err != nil {
		return insertOutcome(ctx, path, err)
	}
	if exists {
		outcome.Kind = OutcomeDuplicate
		outcome.Detail = "filepath already cataloged"
		return outcome
	}

	format, err := imgformat.DetectFile(path)
	if err != nil {
		outcome.Kind = OutcomeUnreadable
		outcome.Detail = err.Error()
		return outcome
	}
	if format == imgformat.Unknown {
		// Unrecognizable pixels behind an image extension means the
		// file is damaged; anything else was never an image.
		if imgformat.HasImageExtension(path) {
			outcome.Kind = OutcomeCorrupt
			outcome.Detail = "unrecognizable image data"
		} else {
			outcome.Kind = OutcomeUnsupported
			outcome.Detail = "not a supported image format"
		}
		return outcome
	}

	meta, err := exif.ExtractFile(path)
	if err != nil {
		outcome.Kind = OutcomeUnreadable
		outcome.Detail = err.Error()
		return outcome
	}

	// Container formats may carry no EXIF dimensions; fall back to a
	// decode-level probe. Failure leaves dimensions null.
	if meta.Width == nil || meta.Height == nil {
		if w, h, err := p.prober.Dimensions(path); err == nil {
			meta.Width, meta.Height = &w, &h
		} else {
			logging.Debug("dimension probe failed for %s: %v", path, err)
		}
	}

	photo := photoFromMetadata(meta)
	id, err := p.store.InsertPhoto(ctx, photo, tagIDs)
	if err != nil {
		return insertOutcome(ctx, path, err)
	}
	outcome.Kind = OutcomeImported
	outcome.PhotoID = id

	// Thumbnail warming failure degrades to a cached placeholder; the
	// import itself already succeeded.
	if err := p.warmer.Warm(ctx, id); err != nil {
		logging.Warn("thumbnail warm failed for photo %d (%s): %v", id, path, err)
	}

	return outcome
}

func insertOutcome(ctx context.Context, path string, err error) Outcome {
	outcome := Outcome{Path: path, Detail: err.Error()}
	switch {
	case errors.Is(err, catalog.ErrDuplicatePath):
		outcome.Kind = OutcomeDuplicate
	case errors.Is(err, catalog.ErrStorageUnavailable):
		outcome.Kind = OutcomeStorageUnavailable
	case errors.Is(err, catalog.ErrConstraint):
		outcome.Kind = OutcomeConstraint
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome.Kind = OutcomeUnreadable
		outcome.Detail = "processing budget exceeded: " + err.Error()
	default:
		// Unclassified failures keep their raw detail; unreadable is
		// the neutral error kind for a file the store could not take.
		outcome.Kind = OutcomeUnreadable
	}
	return outcome
}

// photoFromMetadata maps an extracted record onto a catalog row. The
// leftover key/value pairs travel in metadata_json.
func photoFromMetadata(meta *exif.Metadata) *catalog.Photo {
	photo := &catalog.Photo{
		Filename:     meta.Filename,
		Filepath:     meta.Filepath,
		FileSize:     meta.FileSize,
		DateTaken:    meta.DateTaken,
		CameraMake:   meta.CameraMake,
		CameraModel:  meta.CameraModel,
		LensModel:    meta.LensModel,
		FocalLength:  meta.FocalLength,
		Aperture:     meta.Aperture,
		ShutterSpeed: meta.ShutterSpeed,
		ISO:          meta.ISO,
		Flash:        meta.Flash,
		Orientation:  meta.Orientation,
		Width:        meta.Width,
		Height:       meta.Height,
		GPSLatitude:  meta.Latitude,
		GPSLongitude: meta.Longitude,
		GPSAltitude:  meta.Altitude,
		GPSLocation:  meta.LocationName,
	}
	if len(meta.Raw) > 0 {
		if blob, err := json.Marshal(meta.Raw); err == nil {
			photo.MetadataJSON = string(blob)
		}
	}
	return photo
}
