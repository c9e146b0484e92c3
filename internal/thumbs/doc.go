// Package thumbs renders and caches photo thumbnails.
//
// The generator decodes the base formats (JPEG, PNG, GIF, BMP, TIFF,
// WebP) unconditionally and HEIF/AVIF only when the libvips capability
// is present. The cache stores one JPEG per photo, named by photo id
// plus a source-file fingerprint, and never blocks a caller on
// generation: a miss returns the placeholder immediately while the real
// thumbnail is produced in the background.
package thumbs
