// Package exif extracts embedded EXIF and GPS metadata from image byte
// streams and normalizes it into a flat attribute record.
//
// The extractor is deliberately forgiving: malformed or absent EXIF data
// is a degraded success, not a failure. Callers always get a record with
// at least the filesystem-derived attributes populated, and each EXIF
// field is resolved independently so one bad tag cannot poison the rest.
package exif
