// Package imgformat classifies image files by extension and by content
// sniffing. Extensions decide what the catalog is willing to import;
// magic-byte detection decides which decoder (base set or the optional
// HEIF capability) can actually produce pixels, and whether a file that
// claims to be an image is in fact corrupt.
package imgformat
