/*
Package streaming sends finished artifacts to HTTP clients without letting a
slow or vanished client pin a handler goroutine.

[TimeoutWriter] wraps an http.ResponseWriter with a per-write timeout, an
idle timeout between successful writes, an optional cap on total duration,
and chunked writes that flush as they go. [ServeArtifact] opens a file,
sets attachment headers with an exact Content-Length, and copies it through
a TimeoutWriter.

	n, err := streaming.ServeArtifact(r.Context(), w, streaming.Artifact{
		Path:         res.Artifact.Path(),
		DownloadName: "trimmed_video.mp4",
	}, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		return
	}

# Errors

  - [ErrWriteTimeout]: a write or the whole stream exceeded its limit
  - [ErrClientGone]: the request context ended
  - [ErrStreamCanceled]: the writer was closed or went idle
*/
package streaming
