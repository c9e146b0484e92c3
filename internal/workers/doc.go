// Package workers calculates worker pool sizes from the CPUs actually
// available to the process. Both the import pipeline and the thumbnail
// cache size their pools through it, so a single IMPORT_WORKERS override
// tunes the whole background plane.
package workers
