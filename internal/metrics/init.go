package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Database storage files ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "insert_photo", "get_photo", "delete_photo",
		"path_exists", "photo_ids", "photo_file", "replace_metadata", "query_photos",
		"get_or_create_tag", "delete_tag", "list_tags", "assign_tags", "remove_tags",
		"database_info", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	// --- Import pipeline ---
	for _, state := range []string{"completed", "cancelled", "aborted"} {
		ImportBatchesTotal.WithLabelValues(state)
	}
	for _, outcome := range []string{"imported", "duplicate", "unreadable", "unsupported",
		"corrupt", "constraint", "storage_unavailable", "cancelled"} {
		ImportFilesTotal.WithLabelValues(outcome)
	}

	// --- Thumbnail generation ---
	for _, trigger := range []string{"warm", "lazy"} {
		ThumbnailGenerationsTotal.WithLabelValues(trigger, "success")
		ThumbnailGenerationsTotal.WithLabelValues(trigger, "placeholder")
	}
}
