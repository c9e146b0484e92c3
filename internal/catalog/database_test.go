package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return db
}

func strPtr(s string) *string        { return &s }
func intPtr(i int) *int              { return &i }
func f64Ptr(f float64) *float64      { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func testPhoto(path string) *Photo {
	return &Photo{
		Filename:     filepath.Base(path),
		Filepath:     path,
		FileSize:     2048,
		DateTaken:    timePtr(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)),
		CameraMake:   strPtr("Canon"),
		CameraModel:  strPtr("EOS R5"),
		FocalLength:  f64Ptr(50),
		Aperture:     f64Ptr(1.8),
		ShutterSpeed: strPtr("1/250"),
		ISO:          intPtr(400),
		Orientation:  6,
		Width:        intPtr(8192),
		Height:       intPtr(5464),
		GPSLatitude:  f64Ptr(40.44611111111111),
		GPSLongitude: f64Ptr(-79.98222222222222),
		MetadataJSON: `{"ExposureMode":"0"}`,
	}
}

func TestInsertAndGetPhoto(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tag, err := db.GetOrCreateTag(ctx, "vacation", "")
	if err != nil {
		t.Fatalf("GetOrCreateTag() error: %v", err)
	}

	id, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), []int64{tag.ID})
	if err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}

	got, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto() error: %v", err)
	}

	if got.Filepath != "/photos/a.jpg" {
		t.Errorf("Filepath = %q", got.Filepath)
	}
	if got.Orientation != 6 {
		t.Errorf("Orientation = %d, want 6", got.Orientation)
	}
	if got.CameraMake == nil || *got.CameraMake != "Canon" {
		t.Errorf("CameraMake = %v, want Canon", got.CameraMake)
	}
	if got.DateTaken == nil || !got.DateTaken.Equal(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("DateTaken = %v", got.DateTaken)
	}
	if got.GPSLongitude == nil || *got.GPSLongitude >= 0 {
		t.Errorf("GPSLongitude = %v, want negative (west)", got.GPSLongitude)
	}
	if got.LensModel != nil {
		t.Errorf("LensModel = %v, want nil for absent field", got.LensModel)
	}
	if got.DateAdded.IsZero() {
		t.Error("DateAdded must be set by the store")
	}
	if len(got.Tags) != 1 || got.Tags[0] != "vacation" {
		t.Errorf("Tags = %v, want [vacation]", got.Tags)
	}
}

func TestInsertPhotoDuplicatePath(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), nil); err != nil {
		t.Fatalf("first InsertPhoto() error: %v", err)
	}

	_, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), nil)
	if !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("second insert error = %v, want ErrDuplicatePath", err)
	}

	ids, err := db.PhotoIDs(ctx)
	if err != nil {
		t.Fatalf("PhotoIDs() error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("catalog holds %d photos, want 1", len(ids))
	}
}

func TestInsertPhotoAtomicWithBadTag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Tag id 99 does not exist; the FK failure must roll back the
	// photo row too.
	_, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), []int64{99})
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("InsertPhoto() error = %v, want ErrConstraint", err)
	}

	exists, err := db.PathExists(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("PathExists() error: %v", err)
	}
	if exists {
		t.Error("failed insert must not leave a photo row behind")
	}
}

func TestDeletePhoto(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tag, _ := db.GetOrCreateTag(ctx, "keep", "")
	id, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), []int64{tag.ID})
	if err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}

	if err := db.DeletePhoto(ctx, id); err != nil {
		t.Fatalf("DeletePhoto() error: %v", err)
	}

	if _, err := db.GetPhoto(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPhoto after delete = %v, want ErrNotFound", err)
	}
	if err := db.DeletePhoto(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}

	// The tag survives; only the association cascades away.
	tags, err := db.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags() error: %v", err)
	}
	if len(tags) != 1 || tags[0].ItemCount != 0 {
		t.Errorf("tags after photo delete = %+v, want [keep] with zero photos", tags)
	}
}

func TestPathExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	exists, err := db.PathExists(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("PathExists() error: %v", err)
	}
	if exists {
		t.Error("empty catalog must report no paths")
	}

	if _, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), nil); err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}

	exists, err = db.PathExists(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("PathExists() error: %v", err)
	}
	if !exists {
		t.Error("cataloged path must be reported")
	}
}

func TestPhotoFile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), nil)
	if err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}

	path, orientation, err := db.PhotoFile(ctx, id)
	if err != nil {
		t.Fatalf("PhotoFile() error: %v", err)
	}
	if path != "/photos/a.jpg" || orientation != 6 {
		t.Errorf("PhotoFile() = (%q, %d), want (/photos/a.jpg, 6)", path, orientation)
	}

	if _, _, err := db.PhotoFile(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("PhotoFile(999) = %v, want ErrNotFound", err)
	}
}

func TestReplaceMetadata(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tag, _ := db.GetOrCreateTag(ctx, "keep", "")
	id, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), []int64{tag.ID})
	if err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}

	updated := testPhoto("/photos/a.jpg")
	updated.CameraMake = strPtr("Nikon")
	updated.ISO = nil
	if err := db.ReplaceMetadata(ctx, id, updated); err != nil {
		t.Fatalf("ReplaceMetadata() error: %v", err)
	}

	got, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto() error: %v", err)
	}
	if got.CameraMake == nil || *got.CameraMake != "Nikon" {
		t.Errorf("CameraMake = %v, want Nikon after re-extraction", got.CameraMake)
	}
	if got.ISO != nil {
		t.Errorf("ISO = %v, want nil after re-extraction", got.ISO)
	}
	if len(got.Tags) != 1 {
		t.Error("re-extraction must not touch tag associations")
	}

	if err := db.ReplaceMetadata(ctx, 999, updated); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReplaceMetadata(999) = %v, want ErrNotFound", err)
	}
}

func TestInfo(t *testing.T) {
	db := newTestDB(t)

	info := db.Info()
	if info.Path == "" {
		t.Error("Info must report the catalog path")
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Info.SizeBytes = %d, want > 0 for an initialized catalog", info.SizeBytes)
	}
}

func TestMigrationAddsGPSColumns(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "legacy.db")
	ctx := context.Background()

	// First open initializes a current-schema catalog; reopening must
	// find nothing to migrate and still come up cleanly.
	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"), nil); err != nil {
		t.Fatalf("InsertPhoto() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen New() error: %v", err)
	}
	defer db.Close()

	got, err := db.GetPhoto(ctx, 1)
	if err != nil {
		t.Fatalf("GetPhoto() after reopen error: %v", err)
	}
	if got.GPSLatitude == nil {
		t.Error("GPS data must survive a reopen")
	}
}
