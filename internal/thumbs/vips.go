package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"photosphere/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// HEIFDecoder is the optional-capability seam for HEIF/AVIF decoding.
// When the capability is absent the stub implementation reports
// unavailable and the photo degrades to a placeholder thumbnail.
type HEIFDecoder interface {
	Available() bool
	Decode(path string) (image.Image, error)
}

// InitVips initializes libvips. Call once at startup; failure to
// initialize is a degraded capability, not a startup error.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Route vips logs through our logger, filtered by the app level.
	// Must be configured before Startup().
	var vipsLogLevel vips.LogLevel
	var logHandler func(string, vips.LogLevel, string)

	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			case vips.LogLevelMessage, vips.LogLevelInfo, vips.LogLevelDebug:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn, logging.LevelError:
		vipsLogLevel = vips.LogLevelError
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		vipsLogLevel = vips.LogLevelWarning
		logHandler = func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	}

	vips.LoggingSettings(logHandler, vipsLogLevel)

	// Conservative memory settings; thumbnail decode is bursty and the
	// import pipeline already parallelizes above this layer.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether libvips is initialized.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsDecoder decodes HEIF/AVIF through libvips.
type VipsDecoder struct{}

// NewHEIFDecoder probes the libvips capability and returns the decoder
// to wire into the generator: the vips-backed one when libvips came up,
// the stub otherwise.
func NewHEIFDecoder() HEIFDecoder {
	if IsVipsAvailable() {
		return &VipsDecoder{}
	}
	logging.Warn("HEIF/AVIF capability absent; HEIF photos will use placeholder thumbnails")
	return &StubDecoder{}
}

func (d *VipsDecoder) Available() bool { return IsVipsAvailable() }

// Decode loads a HEIF/AVIF file and returns raw pixels. The pixels come
// back as stored; orientation correction happens in the caller against
// the cataloged orientation code, so metadata is stripped here to keep
// the intermediate JPEG from being auto-rotated a second time.
func (d *VipsDecoder) Decode(path string) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	logging.Debug("vips decoding %s", filepath.Base(path))

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// StubDecoder is the absent-capability implementation.
type StubDecoder struct{}

func (d *StubDecoder) Available() bool { return false }

func (d *StubDecoder) Decode(path string) (image.Image, error) {
	return nil, fmt.Errorf("HEIF/AVIF decoding capability not available for %s", filepath.Base(path))
}
