package thumbs

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeTestJPEG writes a width x height gradient JPEG and returns its path.
func writeTestJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: 128,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test jpeg: %v", err)
	}
	return path
}

func TestRenderFitsBoundingBox(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, "wide.jpg", 400, 200)

	gen := NewGenerator(100, nil)
	data, err := gen.Render(path, 1)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not valid JPEG: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("thumbnail is %dx%d, want 100x50 (aspect preserved)", b.Dx(), b.Dy())
	}
}

func TestRenderNeverUpscales(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, "tiny.jpg", 40, 20)

	gen := NewGenerator(200, nil)
	data, err := gen.Render(path, 1)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("small source was resized to %dx%d, want original 40x20", b.Dx(), b.Dy())
	}
}

func TestRenderAppliesOrientation(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, "rotated.jpg", 40, 20)

	gen := NewGenerator(200, nil)
	data, err := gen.Render(path, 6) // stored sideways, displays rotated 90 CW
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	thumb, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Errorf("orientation 6 thumbnail is %dx%d, want 20x40", b.Dx(), b.Dy())
	}
}

func TestRenderDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeTestJPEG(t, dir, "photo.jpg", 300, 150)

	gen := NewGenerator(100, nil)
	first, err := gen.Render(path, 3)
	if err != nil {
		t.Fatalf("first Render() error: %v", err)
	}
	second, err := gen.Render(path, 3)
	if err != nil {
		t.Fatalf("second Render() error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical input must produce byte-identical thumbnails")
	}
}

func TestRenderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	gen := NewGenerator(100, nil)
	if _, err := gen.Render(path, 1); err == nil {
		t.Error("Render on unrecognizable bytes must fail")
	}

	if _, err := gen.Render(filepath.Join(dir, "missing.jpg"), 1); err == nil {
		t.Error("Render on a missing file must fail")
	}
}

func TestRenderHEIFWithoutCapability(t *testing.T) {
	dir := t.TempDir()
	// Minimal HEIF signature: ftyp box with heic brand.
	header := append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, []byte("heicmif1")...)
	path := filepath.Join(dir, "photo.heic")
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	gen := NewGenerator(100, &StubDecoder{})
	if gen.HEIFCapable() {
		t.Fatal("stub decoder must report unavailable")
	}
	if _, err := gen.Render(path, 1); err == nil {
		t.Error("HEIF render without the capability must fail")
	}
}

func TestDimensions(t *testing.T) {
	dir := t.TempDir()

	img := image.NewNRGBA(image.Rect(0, 0, 123, 45))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "sized.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}

	gen := NewGenerator(100, nil)
	w, h, err := gen.Dimensions(path)
	if err != nil {
		t.Fatalf("Dimensions() error: %v", err)
	}
	if w != 123 || h != 45 {
		t.Errorf("Dimensions() = %dx%d, want 123x45", w, h)
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	first := Placeholder(100)
	second := Placeholder(100)
	if !bytes.Equal(first, second) {
		t.Fatal("placeholder must be byte-identical across calls")
	}

	if !IsPlaceholder(first, 100) {
		t.Error("IsPlaceholder must recognize its own output")
	}
	if IsPlaceholder(first, 200) {
		t.Error("placeholders for different boxes must differ")
	}

	img, err := jpeg.Decode(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("placeholder is not valid JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("placeholder is %dx%d, want 100x100", b.Dx(), b.Dy())
	}
}
