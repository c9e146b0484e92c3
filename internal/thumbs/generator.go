package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"photosphere/internal/imgformat"
	"photosphere/internal/logging"
	"photosphere/internal/orient"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultBox is the bounding box the original viewer renders into.
const DefaultBox = 200

const jpegQuality = 80

// Generator renders bounded, orientation-corrected JPEG thumbnails.
type Generator struct {
	box  int
	heif HEIFDecoder
}

func NewGenerator(box int, heif HEIFDecoder) *Generator {
	if box <= 0 {
		box = DefaultBox
	}
	if heif == nil {
		heif = &StubDecoder{}
	}
	return &Generator{box: box, heif: heif}
}

// Box returns the bounding box edge in pixels.
func (g *Generator) Box() int { return g.box }

// HEIFCapable reports whether HEIF/AVIF sources can be decoded.
func (g *Generator) HEIFCapable() bool { return g.heif.Available() }

// Decode loads the full-resolution pixels for a photo file, routing
// HEIF/AVIF through the capability decoder and everything else through
// the registered image decoders. Pixels come back exactly as stored;
// no orientation is applied.
func (g *Generator) Decode(path string) (image.Image, error) {
	format, err := imgformat.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	if imgformat.NeedsCapability(format) {
		return g.heif.Decode(path)
	}

	img, err := imaging.Open(path)
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying generic decode", path, err)

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("file not accessible: %w", openErr)
	}
	defer file.Close()

	img, decoded, decodeErr := image.Decode(file)
	if decodeErr != nil {
		return nil, fmt.Errorf("decode failed for %s: %w", path, decodeErr)
	}
	logging.Debug("decoded %s as %s via generic decoder", path, decoded)
	return img, nil
}

// Dimensions reports the stored pixel dimensions of a photo file
// without a full decode where the format supports it. Used by the
// import pipeline when EXIF carries no dimension tags.
func (g *Generator) Dimensions(path string) (width, height int, err error) {
	format, err := imgformat.DetectFile(path)
	if err != nil {
		return 0, 0, err
	}

	if imgformat.NeedsCapability(format) {
		img, err := g.heif.Decode(path)
		if err != nil {
			return 0, 0, err
		}
		b := img.Bounds()
		return b.Dx(), b.Dy(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("dimension probe failed for %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Render produces the thumbnail JPEG for a photo file: decode, apply
// the orientation transform, fit into the bounding box preserving
// aspect ratio (never upscaling), and encode at a fixed quality. The
// output is deterministic for identical input bytes, orientation, and
// box.
func (g *Generator) Render(path string, orientation int) ([]byte, error) {
	img, err := g.Decode(path)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("decode returned nil image for %s", path)
	}

	oriented := orient.Apply(img, orientation)
	thumb := imaging.Fit(oriented, g.box, g.box, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
