// Package orient maps EXIF orientation codes to geometric transforms.
// The same transform is applied when thumbnailing and when serving a
// full preview, so displayed pixels always match the EXIF intent no
// matter how the decoder laid them out.
package orient
