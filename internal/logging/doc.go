// Package logging provides leveled logging on top of the standard
// library logger. The level is read once from the LOG_LEVEL environment
// variable (or DEBUG=true for debug output) and applies process-wide.
package logging
