// Package handlers is the HTTP JSON surface over the catalog engine.
// Handlers are glue only: they parse requests, call into the catalog,
// importer, and thumbnail packages, and shape responses. No catalog
// logic lives here.
package handlers
