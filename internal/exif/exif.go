package exif

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"photosphere/internal/logging"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Metadata is the normalized attribute record produced for one file.
// Pointer fields are nil when the source carried no usable value;
// extraction never fails outright, it degrades field by field.
type Metadata struct {
	Filename string
	Filepath string
	FileSize int64

	DateTaken    *time.Time
	CameraMake   *string
	CameraModel  *string
	LensModel    *string
	FocalLength  *float64
	Aperture     *float64
	ShutterSpeed *string
	ISO          *int
	Flash        *string

	// Orientation is always a valid EXIF code 1-8; absent or
	// out-of-range values normalize to 1 (identity).
	Orientation int

	Width  *int
	Height *int

	Latitude     *float64
	Longitude    *float64
	Altitude     *float64
	LocationName *string

	// Raw holds every decoded EXIF field by name, including the ones
	// promoted to first-class attributes above. Persisted as the
	// metadata_json blob.
	Raw map[string]string
}

// ExtractFile extracts metadata from a file on disk. The only error it
// returns is a filesystem one (stat/open); a file with malformed or
// missing EXIF still yields a degraded record.
func ExtractFile(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Extract(f, filepath.Base(path), path, info.Size()), nil
}

// Extract decodes the EXIF segment from r and normalizes it. It never
// returns an error: input without a parseable EXIF block produces a
// record holding only the filesystem-derived attributes.
func Extract(r io.Reader, filename, path string, size int64) *Metadata {
	meta := &Metadata{
		Filename:    filename,
		Filepath:    path,
		FileSize:    size,
		Orientation: 1,
		Raw:         map[string]string{},
	}

	x, err := goexif.Decode(r)
	if err != nil {
		logging.Debug("no EXIF data in %s: %v", filename, err)
		return meta
	}

	collectRaw(x, meta.Raw)

	if t, err := x.DateTime(); err == nil {
		meta.DateTaken = &t
	}

	meta.CameraMake = stringField(x, goexif.Make)
	meta.CameraModel = stringField(x, goexif.Model)
	meta.LensModel = stringField(x, goexif.LensModel)
	meta.FocalLength = ratField(x, goexif.FocalLength)
	meta.Aperture = ratField(x, goexif.FNumber)
	meta.ShutterSpeed = fractionField(x, goexif.ExposureTime)
	meta.ISO = intField(x, goexif.ISOSpeedRatings)
	meta.Flash = flashField(x)
	meta.Orientation = orientationField(x)
	meta.Width = intField(x, goexif.PixelXDimension)
	meta.Height = intField(x, goexif.PixelYDimension)

	extractGPS(x, meta)

	return meta
}

// rawWalker collects every EXIF field into a name -> value map.
type rawWalker map[string]string

func (w rawWalker) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	if s, err := tag.StringVal(); err == nil {
		w[string(name)] = s
		return nil
	}
	w[string(name)] = tag.String()
	return nil
}

func collectRaw(x *goexif.Exif, dst map[string]string) {
	if err := x.Walk(rawWalker(dst)); err != nil {
		logging.Debug("EXIF walk stopped early: %v", err)
	}
}

func stringField(x *goexif.Exif, name goexif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil || s == "" {
		return nil
	}
	return &s
}

func intField(x *goexif.Exif, name goexif.FieldName) *int {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	n, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &n
}

// ratField reads a rational tag as a float (focal length, f-number).
func ratField(x *goexif.Exif, name goexif.FieldName) *float64 {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// fractionField formats a rational tag as "num/den" (shutter speed is
// conventionally displayed as a fraction, e.g. "1/250").
func fractionField(x *goexif.Exif, name goexif.FieldName) *string {
	tag, err := x.Get(name)
	if err != nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	s := fmt.Sprintf("%d/%d", num, den)
	return &s
}

func flashField(x *goexif.Exif) *string {
	tag, err := x.Get(goexif.Flash)
	if err != nil {
		return nil
	}
	n, err := tag.Int(0)
	if err != nil {
		return nil
	}
	s := strconv.Itoa(n)
	return &s
}

func orientationField(x *goexif.Exif) int {
	tag, err := x.Get(goexif.Orientation)
	if err != nil {
		return 1
	}
	n, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return NormalizeOrientation(n)
}

// NormalizeOrientation clamps an orientation value to a valid EXIF code.
// Codes outside 1-8 mean the identity transform, never an error.
func NormalizeOrientation(code int) int {
	if code < 1 || code > 8 {
		return 1
	}
	return code
}
