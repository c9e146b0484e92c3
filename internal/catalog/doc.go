// Package catalog is the relational source of truth: photos, tags, and
// their associations in a single SQLite file, plus the tag-aware query
// engine over them. Writes are serialized; everything derived (the
// thumbnail cache) reconciles against this store, never the reverse.
package catalog
