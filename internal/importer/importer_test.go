package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photosphere/internal/catalog"
)

type fakeStore struct {
	mu          sync.Mutex
	photos      map[string]int64
	nextID      int64
	insertErr   error
	insertDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{photos: make(map[string]int64)}
}

func (s *fakeStore) PathExists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.photos[path]
	return ok, nil
}

func (s *fakeStore) InsertPhoto(ctx context.Context, photo *catalog.Photo, tagIDs []int64) (int64, error) {
	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	if _, ok := s.photos[photo.Filepath]; ok {
		return 0, catalog.ErrDuplicatePath
	}
	s.nextID++
	s.photos[photo.Filepath] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

// ctxAwareStore honors context cancellation during the insert, the way
// the real catalog's ExecContext does. started signals when an insert
// begins.
type ctxAwareStore struct {
	*fakeStore
	delay   time.Duration
	started chan struct{}
}

func (s *ctxAwareStore) InsertPhoto(ctx context.Context, photo *catalog.Photo, tagIDs []int64) (int64, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return s.fakeStore.InsertPhoto(ctx, photo, tagIDs)
}

type fakeWarmer struct {
	mu    sync.Mutex
	warms []int64
	err   error
}

func (w *fakeWarmer) Warm(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warms = append(w.warms, id)
	return w.err
}

func (w *fakeWarmer) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.warms)
}

type fakeProber struct{}

func (fakeProber) Dimensions(path string) (int, int, error) {
	return 640, 480, nil
}

// writeJPEG writes a minimal file carrying the JPEG signature.
func writeJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type recorder struct {
	mu       sync.Mutex
	progress []Progress
	outcomes []Outcome
	complete int
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnProgress: func(p Progress) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
		},
		OnOutcome: func(o Outcome) {
			r.mu.Lock()
			r.outcomes = append(r.outcomes, o)
			r.mu.Unlock()
		},
		OnComplete: func(Snapshot) {
			r.mu.Lock()
			r.complete++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) kinds() map[OutcomeKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[OutcomeKind]int{}
	for _, o := range r.outcomes {
		counts[o.Kind]++
	}
	return counts
}

func newTestPipeline(store *fakeStore, warmer *fakeWarmer, cfg Config) *Pipeline {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return New(store, warmer, fakeProber{}, cfg)
}

func TestImportBatch(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	warmer := &fakeWarmer{}
	pipeline := newTestPipeline(store, warmer, Config{})
	rec := &recorder{}

	req := Request{Paths: []string{
		writeJPEG(t, dir, "a.jpg"),
		writeJPEG(t, dir, "b.jpg"),
		writeJPEG(t, dir, "c.jpg"),
	}}

	batch, err := pipeline.Import(context.Background(), req, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	snap := batch.Snapshot()
	if !snap.Done || snap.Completed != 3 || snap.Imported != 3 {
		t.Errorf("snapshot = %+v, want 3/3 imported", snap)
	}
	if store.count() != 3 {
		t.Errorf("catalog holds %d photos, want 3", store.count())
	}
	if warmer.count() != 3 {
		t.Errorf("warmed %d thumbnails, want 3", warmer.count())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.complete != 1 {
		t.Errorf("complete fired %d times, want once", rec.complete)
	}
	last := 0
	for _, p := range rec.progress {
		if p.Completed <= last {
			t.Fatalf("progress not monotonic: %v", rec.progress)
		}
		last = p.Completed
		if p.Total != 3 {
			t.Errorf("progress total = %d, want 3", p.Total)
		}
	}
	if last != 3 {
		t.Errorf("final progress = %d, want 3", last)
	}
}

func TestDuplicateWithinBatch(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{})
	rec := &recorder{}

	path := writeJPEG(t, dir, "same.jpg")
	batch, err := pipeline.Import(context.Background(), Request{Paths: []string{path, path}}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	if store.count() != 1 {
		t.Fatalf("catalog holds %d photos, want exactly 1", store.count())
	}
	kinds := rec.kinds()
	if kinds[OutcomeImported] != 1 || kinds[OutcomeDuplicate] != 1 {
		t.Errorf("outcomes = %v, want one imported and one duplicate", kinds)
	}
}

func TestDuplicateAgainstCatalog(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	path := writeJPEG(t, dir, "known.jpg")
	store.photos[path] = 7

	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{})
	rec := &recorder{}

	batch, err := pipeline.Import(context.Background(), Request{Paths: []string{path}}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	if kinds := rec.kinds(); kinds[OutcomeDuplicate] != 1 {
		t.Errorf("outcomes = %v, want one duplicate", kinds)
	}
}

func TestCorruptFileInBatch(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{})
	rec := &recorder{}

	corrupt := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(corrupt, []byte("these are not pixels"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	req := Request{Paths: []string{
		writeJPEG(t, dir, "a.jpg"),
		corrupt,
		writeJPEG(t, dir, "b.jpg"),
	}}

	batch, err := pipeline.Import(context.Background(), req, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	snap := batch.Snapshot()
	if snap.Completed != 3 {
		t.Fatalf("completed = %d, want all 3 terminal", snap.Completed)
	}
	if snap.Imported != 2 || snap.Errored != 1 {
		t.Errorf("snapshot = %+v, want 2 imported and 1 errored", snap)
	}
	if kinds := rec.kinds(); kinds[OutcomeCorrupt] != 1 {
		t.Errorf("outcomes = %v, want one corrupt", kinds)
	}
}

func TestUnsupportedAndUnreadable(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{})
	rec := &recorder{}

	notImage := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notImage, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	missing := filepath.Join(dir, "vanished.jpg")

	batch, err := pipeline.Import(context.Background(), Request{Paths: []string{notImage, missing}}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	kinds := rec.kinds()
	if kinds[OutcomeUnsupported] != 1 {
		t.Errorf("outcomes = %v, want one unsupported", kinds)
	}
	if kinds[OutcomeUnreadable] != 1 {
		t.Errorf("outcomes = %v, want one unreadable", kinds)
	}
	if store.count() != 0 {
		t.Errorf("catalog holds %d photos, want 0", store.count())
	}
}

func TestStorageUnavailableAbortsBatch(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.insertErr = catalog.ErrStorageUnavailable
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{Workers: 1})
	rec := &recorder{}

	var paths []string
	for i := 0; i < 4; i++ {
		paths = append(paths, writeJPEG(t, dir, fmt.Sprintf("p%d.jpg", i)))
	}

	batch, err := pipeline.Import(context.Background(), Request{Paths: paths}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	snap := batch.Snapshot()
	if !snap.Aborted {
		t.Error("batch must report aborted")
	}
	if snap.Completed != 4 {
		t.Errorf("completed = %d, batch must still terminate with all files terminal", snap.Completed)
	}
	if kinds := rec.kinds(); kinds[OutcomeStorageUnavailable] != 4 {
		t.Errorf("outcomes = %v, want storage_unavailable for every file", kinds)
	}
}

func TestCancellation(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.insertDelay = 20 * time.Millisecond
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{Workers: 1})

	var paths []string
	for i := 0; i < 6; i++ {
		paths = append(paths, writeJPEG(t, dir, fmt.Sprintf("p%d.jpg", i)))
	}

	var batch *Batch
	var once sync.Once
	hooks := Hooks{
		OnOutcome: func(Outcome) {
			// Cancel as soon as the first file finishes; it is allowed
			// to complete, the rest must not start.
			once.Do(func() { batch.Cancel() })
		},
	}

	var err error
	batch, err = pipeline.Import(context.Background(), Request{Paths: paths}, hooks)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	snap := batch.Snapshot()
	if snap.Completed != 6 {
		t.Fatalf("completed = %d, every dispatched file needs a terminal outcome", snap.Completed)
	}
	if snap.Imported < 1 {
		t.Error("the in-flight file must be allowed to finish")
	}
	if snap.Cancelled == 0 {
		t.Error("undispatched files must be marked cancelled")
	}
	if snap.Imported+snap.Cancelled+snap.Skipped+snap.Errored != 6 {
		t.Errorf("snapshot counters inconsistent: %+v", snap)
	}
}

func TestCancelLetsInFlightInsertFinish(t *testing.T) {
	dir := t.TempDir()
	store := &ctxAwareStore{
		fakeStore: newFakeStore(),
		delay:     100 * time.Millisecond,
		started:   make(chan struct{}, 1),
	}
	pipeline := New(store, &fakeWarmer{}, fakeProber{}, Config{Workers: 1})
	rec := &recorder{}

	var paths []string
	for i := 0; i < 3; i++ {
		paths = append(paths, writeJPEG(t, dir, fmt.Sprintf("p%d.jpg", i)))
	}

	batch, err := pipeline.Import(context.Background(), Request{Paths: paths}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	// Cancel while the first insert is underway; that file must still
	// land in the catalog rather than surface as a failure.
	<-store.started
	batch.Cancel()
	batch.Wait()

	snap := batch.Snapshot()
	if snap.Imported != 1 {
		t.Errorf("imported = %d, the file mid-insert at cancel time must finish", snap.Imported)
	}
	if snap.Cancelled != 2 {
		t.Errorf("cancelled = %d, want 2 undispatched files", snap.Cancelled)
	}
	if kinds := rec.kinds(); kinds[OutcomeUnreadable] != 0 {
		t.Errorf("outcomes = %v, cancellation must not read as a file failure", kinds)
	}
	if store.count() != 1 {
		t.Errorf("catalog holds %d photos, want 1", store.count())
	}
}

func TestFileBudgetExceeded(t *testing.T) {
	dir := t.TempDir()
	store := &ctxAwareStore{
		fakeStore: newFakeStore(),
		delay:     500 * time.Millisecond,
		started:   make(chan struct{}, 1),
	}
	pipeline := New(store, &fakeWarmer{}, fakeProber{},
		Config{Workers: 1, FileBudget: 30 * time.Millisecond})
	rec := &recorder{}

	batch, err := pipeline.Import(context.Background(),
		Request{Paths: []string{writeJPEG(t, dir, "slow.jpg")}}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.outcomes) != 1 || rec.outcomes[0].Kind != OutcomeUnreadable {
		t.Fatalf("outcomes = %+v, want one unreadable", rec.outcomes)
	}
	if !strings.HasPrefix(rec.outcomes[0].Detail, "processing budget exceeded") {
		t.Errorf("detail = %q, want a budget-exceeded detail", rec.outcomes[0].Detail)
	}
}

func TestUnclassifiedInsertError(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.insertErr = errors.New("disk I/O error")
	pipeline := newTestPipeline(store, &fakeWarmer{}, Config{})
	rec := &recorder{}

	batch, err := pipeline.Import(context.Background(),
		Request{Paths: []string{writeJPEG(t, dir, "a.jpg")}}, rec.hooks())
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	snap := batch.Snapshot()
	if snap.Aborted {
		t.Error("an unclassified insert error must not abort the batch")
	}
	if snap.Errored != 1 {
		t.Errorf("errored = %d, want 1", snap.Errored)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if got := rec.outcomes[0].Kind; got != OutcomeUnreadable {
		t.Errorf("kind = %s, an unclassified store error must not read as a constraint", got)
	}
	if got := rec.outcomes[0].Detail; got != "disk I/O error" {
		t.Errorf("detail = %q, want the raw store error", got)
	}
}

func TestBatchRetention(t *testing.T) {
	dir := t.TempDir()
	pipeline := newTestPipeline(newFakeStore(), &fakeWarmer{},
		Config{Retention: 100 * time.Millisecond})

	batch, err := pipeline.Import(context.Background(),
		Request{Paths: []string{writeJPEG(t, dir, "a.jpg")}}, Hooks{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	if _, ok := pipeline.Batch(batch.ID()); !ok {
		t.Fatal("a just-finished batch must still be queryable")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := pipeline.Batch(batch.ID()); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished batch never dropped from the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBatchRegistry(t *testing.T) {
	dir := t.TempDir()
	pipeline := newTestPipeline(newFakeStore(), &fakeWarmer{}, Config{})

	batch, err := pipeline.Import(context.Background(),
		Request{Paths: []string{writeJPEG(t, dir, "a.jpg")}}, Hooks{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	batch.Wait()

	got, ok := pipeline.Batch(batch.ID())
	if !ok || got != batch {
		t.Errorf("Batch(%q) = %v, %v", batch.ID(), got, ok)
	}
	if _, ok := pipeline.Batch("batch-999"); ok {
		t.Error("unknown batch id must not resolve")
	}
}

func TestOutcomeKindIsError(t *testing.T) {
	errKinds := []OutcomeKind{OutcomeUnreadable, OutcomeUnsupported, OutcomeCorrupt,
		OutcomeConstraint, OutcomeStorageUnavailable}
	for _, k := range errKinds {
		if !k.IsError() {
			t.Errorf("%s must count as an error", k)
		}
	}
	for _, k := range []OutcomeKind{OutcomeImported, OutcomeDuplicate, OutcomeCancelled} {
		if k.IsError() {
			t.Errorf("%s must not count as an error", k)
		}
	}
}
