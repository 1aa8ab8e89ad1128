package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mode := range []string{"cbr", "search", "palette"} {
		format := "mp4"
		if mode == "palette" {
			format = "gif"
		}
		for _, status := range sessionStatuses {
			EncodeSessionsTotal.WithLabelValues(format, mode, status)
		}
		EncodeSessionDuration.WithLabelValues(mode)
	}

	for _, format := range []string{"mp4", "gif"} {
		EncodeOutputBytes.WithLabelValues(format)
	}

	for _, outcome := range []string{"fit", "fallback", "fallback_oversized", "exhausted"} {
		SearchOutcomesTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"cbr", "crf", "palettegen", "paletteuse", "probe", "frame"} {
		EncoderInvocationsTotal.WithLabelValues(stage, "success")
		EncoderInvocationsTotal.WithLabelValues(stage, "error")
		EncoderInvocationDuration.WithLabelValues(stage)
	}

	for _, status := range []string{"success", "error"} {
		StorageUploadsTotal.WithLabelValues(status)
		EncodeSessionsRecorded.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "record_session", "list_sessions", "get_session",
		"session_stats", "delete_sessions_before", "set_storage_url"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open", "readdir", "remove"} {
		for _, volume := range []string{"outputs", "uploads", "scratch"} {
			FilesystemRetryAttempts.WithLabelValues(op, volume)
			FilesystemRetryFailures.WithLabelValues(op, volume)
			FilesystemStaleErrors.WithLabelValues(op, volume)
		}
	}
}
