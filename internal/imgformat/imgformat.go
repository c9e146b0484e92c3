package imgformat

import (
	"os"
	"path/filepath"
	"strings"
)

// Format identifies an image container format.
type Format string

const (
	// JPEG is the JPEG/JFIF format.
	JPEG Format = "jpeg"
	// PNG is the Portable Network Graphics format.
	PNG Format = "png"
	// GIF is the Graphics Interchange Format.
	GIF Format = "gif"
	// BMP is the Windows bitmap format.
	BMP Format = "bmp"
	// TIFF is the Tagged Image File Format.
	TIFF Format = "tiff"
	// WebP is Google's WebP format.
	WebP Format = "webp"
	// HEIF is the High Efficiency Image Format (HEIC/HEIX brands).
	HEIF Format = "heif"
	// AVIF is the AV1 Image File Format.
	AVIF Format = "avif"
	// Unknown is anything that does not sniff as a supported image.
	Unknown Format = "unknown"
)

// ImageExtensions maps lowercase file extensions to whether the catalog
// treats them as image files at all. Entries here that the decoders cannot
// handle (e.g. .heic without the capability module) still import with a
// placeholder thumbnail.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// MimeTypes maps a Format to its MIME type.
var MimeTypes = map[Format]string{
	JPEG: "image/jpeg",
	PNG:  "image/png",
	GIF:  "image/gif",
	BMP:  "image/bmp",
	TIFF: "image/tiff",
	WebP: "image/webp",
	HEIF: "image/heif",
	AVIF: "image/avif",
}

// HasImageExtension reports whether the path carries a known image
// extension (case-insensitive).
func HasImageExtension(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// MimeType returns the MIME type for a format, or application/octet-stream
// for Unknown.
func MimeType(f Format) string {
	if mime, ok := MimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// NeedsCapability reports whether decoding the format requires the
// optional HEIF capability module rather than the base decoder set.
func NeedsCapability(f Format) bool {
	return f == HEIF || f == AVIF
}

// sniffLen is how many leading bytes Detect inspects.
const sniffLen = 32

// Detect sniffs the format from the first bytes of file content.
// It never returns an error: unrecognized content is simply Unknown.
func Detect(header []byte) Format {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return JPEG

	case len(header) >= 8 && header[0] == 0x89 && header[1] == 0x50 && header[2] == 0x4E && header[3] == 0x47:
		return PNG

	case len(header) >= 4 && header[0] == 0x47 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x38:
		return GIF

	case len(header) >= 12 && header[0] == 0x52 && header[1] == 0x49 && header[2] == 0x46 && header[3] == 0x46 &&
		header[8] == 0x57 && header[9] == 0x45 && header[10] == 0x42 && header[11] == 0x50:
		return WebP

	case len(header) >= 2 && header[0] == 0x42 && header[1] == 0x4D:
		return BMP

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return TIFF

	case len(header) >= 12 && header[4] == 0x66 && header[5] == 0x74 && header[6] == 0x79 && header[7] == 0x70:
		// ISO-BMFF "ftyp" box: distinguish by brand
		brand := string(header[8:12])
		switch brand {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return HEIF
		case "avif", "avis":
			return AVIF
		}
		return Unknown
	}

	return Unknown
}

// DetectFile sniffs the format of a file on disk. I/O errors are returned
// as-is so callers can distinguish an unreadable file from an unrecognized
// one.
func DetectFile(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return Unknown, err
	}
	defer file.Close()

	header := make([]byte, sniffLen)
	n, err := file.Read(header)
	if err != nil && n == 0 {
		return Unknown, err
	}

	return Detect(header[:n]), nil
}
