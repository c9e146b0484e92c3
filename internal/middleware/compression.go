package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
}

// DefaultCompressionConfig returns sensible defaults for a JSON API.
// Thumbnails are already JPEG and never recompressed.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// gzipWriterPool reduces allocations by reusing gzip writers
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter buffers the response until it can decide whether
// compression is worthwhile (content type and minimum size).
type gzipResponseWriter struct {
	http.ResponseWriter
	config     CompressionConfig
	buffer     []byte
	statusCode int
	flushed    bool
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	w.buffer = append(w.buffer, b...)
	return len(b), nil
}

func (w *gzipResponseWriter) compressible() bool {
	if len(w.buffer) < w.config.MinSize {
		return false
	}
	contentType := w.Header().Get("Content-Type")
	for _, t := range w.config.CompressibleTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func (w *gzipResponseWriter) finish() error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	if !w.compressible() {
		w.ResponseWriter.WriteHeader(w.statusCode)
		_, err := w.ResponseWriter.Write(w.buffer)
		return err
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.statusCode)

	gz := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(gz)
	gz.Reset(w.ResponseWriter)

	if _, err := gz.Write(w.buffer); err != nil {
		return err
	}
	return gz.Close()
}

// Compression returns a middleware that gzips compressible responses
// when the client advertises support.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &gzipResponseWriter{
				ResponseWriter: w,
				config:         config,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(wrapped, r)

			if err := wrapped.finish(); err != nil {
				// The response is already partially written; nothing
				// useful can be sent to the client at this point.
				return
			}
		})
	}
}
