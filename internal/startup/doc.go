// Package startup owns process bring-up: configuration from environment
// variables (with .env support), data/cache directory validation with
// write probing, build information, and the structured startup/shutdown
// log sections.
package startup
